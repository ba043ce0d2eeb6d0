package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/metrics"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// TimerCallbackTimeout bounds the work done when a boundary timer fires.
const TimerCallbackTimeout = 30 * time.Second

// StatusSyncer re-derives and applies exam statuses.
type StatusSyncer interface {
	Sync(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	ReconcileAll(ctx context.Context) (int, error)
	ExamsNeedingScheduling(ctx context.Context) ([]model.Exam, error)
}

type boundaryTimer struct {
	timer clockwork.Timer
	gen   uint64
}

// StatusScheduler keeps one timer per future exam boundary. Timers are only a
// wake-up hint: a firing timer asks the syncer to re-derive the exam's status
// from its windows and the current time, so late or out-of-order firings
// still converge. The timer table is rebuilt from the store on start.
type StatusScheduler struct {
	status   StatusSyncer
	clock    clockwork.Clock
	interval time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu      sync.Mutex
	timers  map[uuid.UUID]map[string]*boundaryTimer
	gen     uint64
	stopped bool
}

// NewStatusScheduler creates a scheduler. interval is the period of the
// reconciliation sweep run by Start; zero disables it.
func NewStatusScheduler(status StatusSyncer, clock clockwork.Clock, interval time.Duration, m *metrics.Metrics, log zerolog.Logger) *StatusScheduler {
	return &StatusScheduler{
		status:   status,
		clock:    clock,
		interval: interval,
		metrics:  m,
		log:      log.With().Str("component", config.WorkerKey.StatusScheduler).Logger(),
		timers:   make(map[uuid.UUID]map[string]*boundaryTimer),
	}
}

// Schedule (re)registers the boundary timers of an exam. Pending timers of
// the exam are stopped and replaced under the same keys; boundaries that are
// not in the future are skipped rather than fired late.
func (w *StatusScheduler) Schedule(e *model.Exam) {
	now := w.clock.Now()

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.cancelLocked(e.ID)

	examID := e.ID
	scheduled := make(map[string]*boundaryTimer, 4)
	for _, b := range e.Boundaries() {
		if !b.At.After(now) {
			continue
		}

		key := config.WorkerKey.BoundaryTimerKey(examID.String(), string(b.Name))
		w.gen++
		gen := w.gen
		boundary := b
		t := w.clock.AfterFunc(b.At.Sub(now), func() {
			w.fire(examID, key, gen, boundary)
		})
		scheduled[key] = &boundaryTimer{timer: t, gen: gen}
	}
	if len(scheduled) > 0 {
		w.timers[examID] = scheduled
	}
	pending := w.pendingLocked()
	w.mu.Unlock()

	w.metrics.SetPendingTimers(pending)
	w.log.Debug().
		Str("exam_id", examID.String()).
		Int("timers", len(scheduled)).
		Msg("Exam boundaries scheduled")
}

// Cancel stops every pending timer of an exam.
func (w *StatusScheduler) Cancel(examID uuid.UUID) {
	w.mu.Lock()
	w.cancelLocked(examID)
	pending := w.pendingLocked()
	w.mu.Unlock()
	w.metrics.SetPendingTimers(pending)
}

// Pending returns the keys of the timers that have not fired yet.
func (w *StatusScheduler) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, 0, w.pendingLocked())
	for _, byKey := range w.timers {
		for key := range byKey {
			keys = append(keys, key)
		}
	}
	return keys
}

// Rebuild reconciles every unsettled exam and then recreates the timers of
// all exams with a boundary still ahead. Called once at process start.
func (w *StatusScheduler) Rebuild(ctx context.Context) (int, error) {
	if n, err := w.status.ReconcileAll(ctx); err != nil {
		w.log.Warn().Err(err).Int("exams", n).Msg("Startup reconcile had failures")
	}

	exams, err := w.status.ExamsNeedingScheduling(ctx)
	if err != nil {
		return 0, err
	}
	for i := range exams {
		w.Schedule(&exams[i])
	}

	w.log.Info().Int("exams", len(exams)).Int("timers", len(w.Pending())).Msg("Boundary timers rebuilt")
	return len(exams), nil
}

// Start runs the reconciliation sweep until ctx is cancelled, then stops all
// timers.
func (w *StatusScheduler) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("StatusScheduler started")
	defer w.Stop()

	if w.interval <= 0 {
		<-ctx.Done()
		w.log.Info().Msg("StatusScheduler stopping")
		return
	}

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("StatusScheduler stopping")
			return
		case <-ticker.Chan():
			n, err := w.status.ReconcileAll(ctx)
			if err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Int("exams", n).Msg("Status reconcile had failures")
				continue
			}
			w.log.Debug().Int("exams", n).Msg("Status reconcile done")
		}
	}
}

// Stop cancels every timer and rejects further scheduling.
func (w *StatusScheduler) Stop() {
	w.mu.Lock()
	w.stopped = true
	for examID := range w.timers {
		w.cancelLocked(examID)
	}
	w.mu.Unlock()
	w.metrics.SetPendingTimers(0)
}

func (w *StatusScheduler) fire(examID uuid.UUID, key string, gen uint64, b model.BoundaryPoint) {
	w.mu.Lock()
	if byKey, ok := w.timers[examID]; ok {
		if cur, ok := byKey[key]; ok && cur.gen == gen {
			delete(byKey, key)
			if len(byKey) == 0 {
				delete(w.timers, examID)
			}
		}
	}
	pending := w.pendingLocked()
	w.mu.Unlock()
	w.metrics.SetPendingTimers(pending)

	log := w.log.With().Str("timer", key).Str("exam_id", examID.String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			w.metrics.TimerFailed()
			log.Error().Interface("panic", r).Msg("Boundary timer panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), TimerCallbackTimeout)
	defer cancel()

	exam, err := w.status.Sync(ctx, examID)
	if err != nil {
		w.metrics.TimerFailed()
		log.Error().Err(err).Stringer("boundary_target", b.Target).Msg("Boundary sync failed")
		return
	}

	log.Info().
		Stringer("boundary_target", b.Target).
		Stringer("status", exam.Status).
		Msg("Boundary timer fired")
}

func (w *StatusScheduler) cancelLocked(examID uuid.UUID) {
	for _, bt := range w.timers[examID] {
		bt.timer.Stop()
	}
	delete(w.timers, examID)
}

func (w *StatusScheduler) pendingLocked() int {
	n := 0
	for _, byKey := range w.timers {
		n += len(byKey)
	}
	return n
}
