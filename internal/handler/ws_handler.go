package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/cache"
	"github.com/stemsi/exstem-lifecycle/internal/middleware"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/service"
	ws "github.com/stemsi/exstem-lifecycle/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// EventSubscriber opens a live stream of one exam's lifecycle events.
type EventSubscriber interface {
	Subscribe(ctx context.Context, examID uuid.UUID) (*cache.Subscription, error)
}

// WSHandler streams exam lifecycle events to connected clients.
type WSHandler struct {
	events      EventSubscriber
	examService *service.ExamService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(events EventSubscriber, examService *service.ExamService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		events:      events,
		examService: examService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// ExamEventStream godoc
// WS /ws/v1/student/exams/:exam_id/events
// Sends the current status, then every status change and the student's own
// session finalization as they happen.
func (h *WSHandler) ExamEventStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := h.events.Subscribe(ctx, examID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Event subscription failed")
		conn.WriteError("event stream unavailable")
		return
	}
	defer sub.Close()

	if err := conn.WriteTyped(ws.SnapshotResponse{Event: ws.EventSnapshot, Exam: exam, Status: exam.Status}); err != nil {
		return
	}
	wsLog.Info().Msg("Client connected")

	go h.readLoop(ctx, cancel, conn, wsLog)

	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Client disconnected")
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if !visibleTo(event, claims) {
				continue
			}
			if err := conn.WriteTyped(ws.ExamEventResponse{Event: ws.EventExam, Data: event}); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}
		}
	}
}

// readLoop answers pings and cancels the stream once the client goes away.
func (h *WSHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *ws.Conn, wsLog zerolog.Logger) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// visibleTo hides other students' session events from student connections.
func visibleTo(event model.ExamEvent, claims *service.Claims) bool {
	if event.Type != model.EventSessionFinalized || claims.IsAdmin() {
		return true
	}
	return event.StudentID == claims.UserID
}
