package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-lifecycle/internal/handler"
	"github.com/stemsi/exstem-lifecycle/internal/middleware"
	"github.com/stemsi/exstem-lifecycle/internal/response"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, res.code)

	var deps map[string]string
	res.decode(t, "dependencies", &deps)
	assert.Equal(t, map[string]string{"redis": "ok"}, deps)
}

func TestHealth_Degraded(t *testing.T) {
	s := newTestServer(t, withHealthCheck("postgres", func(context.Context) error { return errDown }))

	res := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, res.code)
	assert.Equal(t, response.ErrUnavailable, res.errCode())

	var status string
	res.decode(t, "status", &status)
	assert.Equal(t, "degraded", status)

	var deps map[string]string
	res.decode(t, "dependencies", &deps)
	assert.Equal(t, "connection refused", deps["postgres"])
	assert.Equal(t, "ok", deps["redis"])
}

type staticTimers []string

func (s staticTimers) Pending() []string { return append([]string(nil), s...) }

func TestSchedulerStatusSSE(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	h := handler.NewSystemHandler(nil, staticTimers{"exam_b_end", "exam_a_start"}, clock, zerolog.Nop())

	engine := gin.New()
	engine.GET("/sse", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeAdmin, UserID: 1})
		c.Next()
	}, h.SchedulerStatusSSE)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.ServeHTTP(rec, req)
	}()

	clock.BlockUntil(1)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the client left")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "data: "), body)

	var status struct {
		PendingTimers int      `json:"pending_timers"`
		Timers        []string `json:"timers"`
		Uptime        string   `json:"uptime"`
	}
	line := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(body, "\n\n", 2)[0], "data: "))
	require.NoError(t, json.Unmarshal([]byte(line), &status))
	assert.Equal(t, 2, status.PendingTimers)
	assert.Equal(t, []string{"exam_a_start", "exam_b_end"}, status.Timers)
	assert.Equal(t, "0m 0s", status.Uptime)
}
