package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/middleware"
	"github.com/stemsi/exstem-lifecycle/internal/response"
)

const (
	statusInterval = 7 * time.Second
	healthTimeout  = 2 * time.Second
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// TimerLister exposes the pending boundary timers.
type TimerLister interface {
	Pending() []string
}

// SystemHandler reports process health and scheduler state.
type SystemHandler struct {
	checks    map[string]HealthCheck
	timers    TimerLister
	clock     clockwork.Clock
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. timers may be nil.
func NewSystemHandler(checks map[string]HealthCheck, timers TimerLister, clock clockwork.Clock, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:    checks,
		timers:    timers,
		clock:     clock,
		startTime: clock.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Pings every dependency; any failure turns the response into a 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			healthy = false
			continue
		}
		deps[name] = "ok"
	}

	if !healthy {
		h.log.Warn().Interface("dependencies", deps).Msg("Health check failed")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrUnavailable,
			gin.H{"status": "degraded", "dependencies": deps})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok", "dependencies": deps})
}

type schedulerStatus struct {
	Timestamp     int64    `json:"timestamp"`
	Uptime        string   `json:"uptime"`
	PendingTimers int      `json:"pending_timers"`
	Timers        []string `json:"timers"`
	Goroutines    int      `json:"goroutines"`
	GoVersion     string   `json:"go_version"`
}

// SchedulerStatusSSE godoc
// GET /api/v1/admin/system/scheduler
// Streams the pending boundary timers via SSE.
func (h *SystemHandler) SchedulerStatusSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to scheduler SSE")

	ticker := h.clock.NewTicker(statusInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeStatus(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from scheduler SSE")
			return
		case <-ticker.Chan():
			h.writeStatus(c)
		}
	}
}

func (h *SystemHandler) writeStatus(c *gin.Context) {
	data, err := json.Marshal(h.collect())
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect() schedulerStatus {
	now := h.clock.Now()
	s := schedulerStatus{
		Timestamp:  now.Unix(),
		Uptime:     formatDuration(now.Sub(h.startTime)),
		Timers:     []string{},
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	}
	if h.timers != nil {
		s.Timers = h.timers.Pending()
		sort.Strings(s.Timers)
	}
	s.PendingTimers = len(s.Timers)
	return s
}

// ---------- Helpers ----------

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
