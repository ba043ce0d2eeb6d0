package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository/memstore"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

type countingFinalizer struct {
	mu     sync.Mutex
	calls  int
	report service.SweepReport
	err    error
}

func (f *countingFinalizer) FinalizeExpired(context.Context) (service.SweepReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.report, f.err
}

func (f *countingFinalizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubLocker struct {
	ok       bool
	err      error
	key      string
	released bool
}

func (l *stubLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.key = key
	if l.err != nil || !l.ok {
		return nil, false, l.err
	}
	return func() { l.released = true }, true, nil
}

func TestRunOnce_WithoutLocker(t *testing.T) {
	fin := &countingFinalizer{report: service.SweepReport{Scanned: 2, Finalized: 2}}
	w := NewFinalizerWorker(fin, nil, clockwork.NewFakeClockAt(epoch), time.Minute, zerolog.Nop())

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Finalized)
	assert.Equal(t, 1, fin.Calls())
}

func TestRunOnce_HoldsLockForSweep(t *testing.T) {
	fin := &countingFinalizer{}
	lock := &stubLocker{ok: true}
	w := NewFinalizerWorker(fin, lock, clockwork.NewFakeClockAt(epoch), time.Minute, zerolog.Nop())

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fin.Calls())
	assert.Equal(t, config.WorkerKey.FinalizerLock, lock.key)
	assert.True(t, lock.released)
}

func TestRunOnce_SkipsWhileLockHeldElsewhere(t *testing.T) {
	fin := &countingFinalizer{report: service.SweepReport{Scanned: 1}}
	w := NewFinalizerWorker(fin, &stubLocker{ok: false}, clockwork.NewFakeClockAt(epoch), time.Minute, zerolog.Nop())

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report)
	assert.Zero(t, fin.Calls())
}

func TestRunOnce_SweepsWhenLockUnavailable(t *testing.T) {
	fin := &countingFinalizer{}
	w := NewFinalizerWorker(fin, &stubLocker{err: errors.New("dial tcp: connection refused")}, clockwork.NewFakeClockAt(epoch), time.Minute, zerolog.Nop())

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fin.Calls())
}

func TestRunOnce_ReturnsSweepFailures(t *testing.T) {
	sweepErr := errors.New("session x: persistence failure")
	fin := &countingFinalizer{report: service.SweepReport{Scanned: 3, Finalized: 2, Failed: 1}, err: sweepErr}
	w := NewFinalizerWorker(fin, nil, clockwork.NewFakeClockAt(epoch), time.Minute, zerolog.Nop())

	report, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, sweepErr)
	assert.Equal(t, 1, report.Failed)
}

func TestFinalizerWorker_SweepsEveryInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	fin := &countingFinalizer{}
	w := NewFinalizerWorker(fin, nil, clock, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return fin.Calls() == 1 }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return fin.Calls() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestFinalizerWorker_ClosesExpiredSessions(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := memstore.New()
	log := zerolog.Nop()

	finalizer := service.NewSessionFinalizer(store, store, nil, clock, nil, log)
	status := service.NewStatusService(store, finalizer, nil, clock, nil, log)
	exams := service.NewExamService(store, store, store, status, nil, clock, log)
	sessions := service.NewExamSessionService(status, store, store, store, finalizer, clock, nil, log)

	exam := &model.Exam{Title: "Ujian", ExamStart: epoch, ExamEnd: epoch.Add(time.Hour), DurationMinutes: 10}
	require.NoError(t, exams.Create(ctx, exam))
	_, err := exams.Publish(ctx, exam.ID)
	require.NoError(t, err)
	_, err = sessions.StartSession(ctx, exam.ID, model.Participant{ID: 4})
	require.NoError(t, err)

	w := NewFinalizerWorker(finalizer, nil, clock, time.Minute, log)

	clock.Advance(9 * time.Minute)
	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)

	clock.Advance(2 * time.Minute)
	report, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Finalized)

	s, err := store.GetSession(ctx, exam.ID, 4)
	require.NoError(t, err)
	assert.True(t, s.AutoCompleted)
}
