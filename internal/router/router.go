package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/handler"
	"github.com/stemsi/exstem-lifecycle/internal/middleware"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/response"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

// autosaveRate is the number of answer saves a student may make per minute.
const autosaveRate = 120

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentPortal *handler.StudentPortalHandler
	Exam          *handler.ExamHandler
	WS            *handler.WSHandler
	System        *handler.SystemHandler

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	clock clockwork.Clock,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware(log))
	router.Use(middleware.RequestLogger())

	router.GET("/health", handlers.System.Health)
	if handlers.Metrics != nil {
		router.GET("/metrics", gin.WrapH(handlers.Metrics))
	}

	// Autosave fires on every answer change; cap it per student.
	autosaveLimiter := middleware.NewRateLimiter(autosaveRate, time.Minute, clock)

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireParticipantJWT(authService), middleware.NoStore())
	{
		studentAPI.GET("/exams/:exam_id", handlers.StudentPortal.GetExam)
		studentAPI.POST("/exams/:exam_id/register", middleware.RequireStudentJWT(authService), handlers.StudentPortal.Register)
		studentAPI.POST("/exams/:exam_id/start", handlers.StudentPortal.StartSession)
		studentAPI.GET("/exams/:exam_id/paper", handlers.StudentPortal.GetExamPaper)
		studentAPI.PUT("/exams/:exam_id/answers", autosaveLimiter.Middleware(), handlers.StudentPortal.SaveAnswer)
		studentAPI.POST("/exams/:exam_id/submit", handlers.StudentPortal.SubmitSession)
		studentAPI.GET("/exams/:exam_id/time", handlers.StudentPortal.GetTimeRemaining)
		studentAPI.GET("/exams/:exam_id/result", handlers.StudentPortal.GetResult)
	}

	// ─── 2. WebSocket Group (WS Auth) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/student/exams/:exam_id/events", handlers.WS.ExamEventStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Exam management
		adminAPI.POST("/exams",
			middleware.RequirePermission(string(model.PermissionExamsWrite)),
			handlers.Exam.CreateExam,
		)
		adminAPI.GET("/exams/:exam_id",
			middleware.RequireAnyPermission(string(model.PermissionExamsRead), string(model.PermissionExamsWrite)),
			handlers.Exam.GetExam,
		)
		adminAPI.PUT("/exams/:exam_id/schedule",
			middleware.RequirePermission(string(model.PermissionExamsWrite)),
			handlers.Exam.UpdateSchedule,
		)
		adminAPI.POST("/exams/:exam_id/publish",
			middleware.RequirePermission(string(model.PermissionExamsPublish)),
			handlers.Exam.PublishExam,
		)
		adminAPI.POST("/exams/:exam_id/questions",
			middleware.RequirePermission(string(model.PermissionExamsWrite)),
			handlers.Exam.AddQuestions,
		)

		// Results
		adminAPI.GET("/exams/:exam_id/results",
			middleware.RequirePermission(string(model.PermissionResultsRead)),
			handlers.Exam.ListResults,
		)
		adminAPI.GET("/exams/:exam_id/results/stats",
			middleware.RequirePermission(string(model.PermissionResultsRead)),
			handlers.Exam.GetResultStats,
		)
		adminAPI.GET("/exams/:exam_id/results/:student_id",
			middleware.RequirePermission(string(model.PermissionResultsRead)),
			handlers.Exam.GetResultDetail,
		)

		// System
		adminAPI.GET("/system/scheduler",
			middleware.RequirePermission(string(model.PermissionSystemRead)),
			handlers.System.SchedulerStatusSSE,
		)
	}

	return router
}
