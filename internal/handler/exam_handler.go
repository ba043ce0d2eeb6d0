package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-lifecycle/internal/middleware"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/response"
	"github.com/stemsi/exstem-lifecycle/internal/service"
	"github.com/stemsi/exstem-lifecycle/internal/validator"
)

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	examService    *service.ExamService
	sessionService *service.ExamSessionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, sessionService *service.ExamSessionService) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		sessionService: sessionService,
	}
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates an unpublished exam and registers its boundary timers.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam := req.ToExam()
	if err := h.examService.Create(c.Request.Context(), exam); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:exam_id
// Returns the exam with its status reconciled against the current time.
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateSchedule godoc
// PUT /api/v1/admin/exams/:exam_id/schedule
// Replaces the exam windows and re-registers its timers.
func (h *ExamHandler) UpdateSchedule(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.UpdateScheduleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.UpdateSchedule(c.Request.Context(), examID, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// PublishExam godoc
// POST /api/v1/admin/exams/:exam_id/publish
// Publishes an exam so its status starts following the windows.
func (h *ExamHandler) PublishExam(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.Publish(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// AddQuestions godoc
// POST /api/v1/admin/exams/:exam_id/questions
// Appends questions to an exam that has not started.
func (h *ExamHandler) AddQuestions(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.AddQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.examService.AddQuestions(c.Request.Context(), examID, req.Questions)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"questions": questions})
}

// ListResults godoc
// GET /api/v1/admin/exams/:exam_id/results
// Lists every session of the exam with its grading outcome.
func (h *ExamHandler) ListResults(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	sessions, err := h.sessionService.ListResults(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": sessions})
}

// GetResultDetail godoc
// GET /api/v1/admin/exams/:exam_id/results/:student_id
// Returns the graded answers of one student's session.
func (h *ExamHandler) GetResultDetail(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil || studentID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessionService.GetResult(c.Request.Context(), examID, studentID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetResultStats godoc
// GET /api/v1/admin/exams/:exam_id/results/stats
// Summarizes submitted, auto-completed and in-progress sessions.
func (h *ExamHandler) GetResultStats(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	stats, err := h.sessionService.ResultStats(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
