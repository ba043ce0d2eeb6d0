package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-lifecycle/internal/middleware"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/response"
	"github.com/stemsi/exstem-lifecycle/internal/service"
	"github.com/stemsi/exstem-lifecycle/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints (registration and
// exam taking).
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	examService    *service.ExamService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.ExamSessionService,
	examService *service.ExamService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		examService:    examService,
	}
}

// GetExam godoc
// GET /api/v1/student/exams/:exam_id
// Returns a published exam with its reconciled status.
func (h *StudentPortalHandler) GetExam(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err)
		return
	}
	if !exam.IsPublished {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// Register godoc
// POST /api/v1/student/exams/:exam_id/register
// Registers the student while registration is open (idempotent).
func (h *StudentPortalHandler) Register(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	reg, err := h.examService.Register(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"registration": reg})
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/start
// Opens a timed session. Starting again returns the same session.
func (h *StudentPortalHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	participant := model.Participant{ID: claims.UserID, IsAdmin: claims.IsAdmin()}
	session, err := h.sessionService.StartSession(c.Request.Context(), examID, participant)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the questions while the student's session is open.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	questions, err := h.sessionService.GetPaper(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// SaveAnswer godoc
// PUT /api/v1/student/exams/:exam_id/answers
// Autosaves one answer of an open session.
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.SaveAnswer(c.Request.Context(), examID, claims.UserID, req.QuestionID, req.SelectedOption); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// SubmitSession godoc
// POST /api/v1/student/exams/:exam_id/submit
// Grades the submitted answers and closes the session.
func (h *StudentPortalHandler) SubmitSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.SubmitSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.SubmitSession(c.Request.Context(), examID, claims.UserID, req.ToAnswers())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetTimeRemaining godoc
// GET /api/v1/student/exams/:exam_id/time
// Returns the session deadline and the whole seconds left.
func (h *StudentPortalHandler) GetTimeRemaining(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	remaining, err := h.sessionService.TimeRemaining(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, remaining)
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
// Returns the student's own graded result once the session is closed.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	result, err := h.sessionService.GetResult(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
