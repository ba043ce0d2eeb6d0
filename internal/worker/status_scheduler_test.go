package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository/memstore"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

var epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeSyncer struct {
	mu         sync.Mutex
	synced     []uuid.UUID
	panicOn    map[uuid.UUID]bool
	reconciles int
	upcoming   []model.Exam
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{panicOn: make(map[uuid.UUID]bool)}
}

func (f *fakeSyncer) Sync(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	boom := f.panicOn[id]
	if !boom {
		f.synced = append(f.synced, id)
	}
	f.mu.Unlock()
	if boom {
		panic("sync exploded")
	}
	return &model.Exam{ID: id, Status: model.ExamStatusExamActive}, nil
}

func (f *fakeSyncer) ReconcileAll(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciles++
	return len(f.upcoming), nil
}

func (f *fakeSyncer) ExamsNeedingScheduling(context.Context) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Exam(nil), f.upcoming...), nil
}

func (f *fakeSyncer) Synced() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.synced...)
}

func (f *fakeSyncer) Reconciles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconciles
}

func examAt(start, end time.Time) *model.Exam {
	return &model.Exam{ID: uuid.New(), ExamStart: start, ExamEnd: end, IsPublished: true}
}

func timerKey(e *model.Exam, b model.Boundary) string {
	return config.WorkerKey.BoundaryTimerKey(e.ID.String(), string(b))
}

func TestSchedule_CreatesTimerPerFutureBoundary(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	w := NewStatusScheduler(newFakeSyncer(), clock, 0, nil, zerolog.Nop())
	defer w.Stop()

	regStart := epoch.Add(time.Hour)
	regEnd := epoch.Add(2 * time.Hour)
	e := examAt(epoch.Add(3*time.Hour), epoch.Add(4*time.Hour))
	e.RequiresRegistration = true
	e.RegistrationStart = &regStart
	e.RegistrationEnd = &regEnd

	w.Schedule(e)

	assert.ElementsMatch(t, []string{
		timerKey(e, model.BoundaryRegistrationStart),
		timerKey(e, model.BoundaryRegistrationEnd),
		timerKey(e, model.BoundaryExamStart),
		timerKey(e, model.BoundaryExamEnd),
	}, w.Pending())
}

func TestSchedule_SkipsPastBoundaries(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	syncer := newFakeSyncer()
	w := NewStatusScheduler(syncer, clock, 0, nil, zerolog.Nop())
	defer w.Stop()

	e := examAt(epoch.Add(-time.Hour), epoch.Add(time.Hour))
	w.Schedule(e)

	assert.Equal(t, []string{timerKey(e, model.BoundaryExamEnd)}, w.Pending())
	assert.Empty(t, syncer.Synced(), "past boundaries are not fired late")

	ended := examAt(epoch.Add(-2*time.Hour), epoch.Add(-time.Hour))
	w.Schedule(ended)
	assert.Len(t, w.Pending(), 1)
}

func TestSchedule_ReplacesTimersUnderSameKey(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	syncer := newFakeSyncer()
	w := NewStatusScheduler(syncer, clock, 0, nil, zerolog.Nop())
	defer w.Stop()

	e := examAt(epoch.Add(time.Minute), epoch.Add(time.Hour))
	w.Schedule(e)

	moved := *e
	moved.ExamStart = epoch.Add(10 * time.Minute)
	w.Schedule(&moved)
	require.Len(t, w.Pending(), 2)

	clock.Advance(2 * time.Minute)
	assert.Never(t, func() bool { return len(syncer.Synced()) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"the replaced timer must not fire")

	clock.Advance(8 * time.Minute)
	assert.Eventually(t, func() bool { return len(syncer.Synced()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{timerKey(e, model.BoundaryExamEnd)}, w.Pending())
}

func TestFire_RecoversFromPanic(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	syncer := newFakeSyncer()
	w := NewStatusScheduler(syncer, clock, 0, nil, zerolog.Nop())
	defer w.Stop()

	bad := examAt(epoch.Add(time.Minute), epoch.Add(time.Hour))
	good := examAt(epoch.Add(time.Minute), epoch.Add(time.Hour))
	syncer.panicOn[bad.ID] = true

	w.Schedule(bad)
	w.Schedule(good)

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool {
		synced := syncer.Synced()
		return len(synced) == 1 && synced[0] == good.ID
	}, time.Second, 5*time.Millisecond)

	clock.Advance(time.Hour)
	assert.Eventually(t, func() bool { return len(syncer.Synced()) == 2 }, time.Second, 5*time.Millisecond,
		"later timers keep firing after a panic")
	assert.Empty(t, w.Pending())
}

func TestCancel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	syncer := newFakeSyncer()
	w := NewStatusScheduler(syncer, clock, 0, nil, zerolog.Nop())
	defer w.Stop()

	e := examAt(epoch.Add(time.Minute), epoch.Add(time.Hour))
	w.Schedule(e)
	w.Cancel(e.ID)
	assert.Empty(t, w.Pending())

	clock.Advance(2 * time.Hour)
	assert.Never(t, func() bool { return len(syncer.Synced()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestRebuild(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	syncer := newFakeSyncer()
	syncer.upcoming = []model.Exam{
		*examAt(epoch.Add(time.Hour), epoch.Add(2*time.Hour)),
		*examAt(epoch.Add(-time.Hour), epoch.Add(time.Hour)),
	}
	w := NewStatusScheduler(syncer, clock, 0, nil, zerolog.Nop())
	defer w.Stop()

	n, err := w.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, syncer.Reconciles())
	assert.Len(t, w.Pending(), 3)
}

func TestStop_RejectsFurtherScheduling(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	w := NewStatusScheduler(newFakeSyncer(), clock, 0, nil, zerolog.Nop())

	w.Schedule(examAt(epoch.Add(time.Minute), epoch.Add(time.Hour)))
	w.Stop()
	assert.Empty(t, w.Pending())

	w.Schedule(examAt(epoch.Add(time.Minute), epoch.Add(time.Hour)))
	assert.Empty(t, w.Pending())
}

func TestStart_RunsReconcileSweep(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	syncer := newFakeSyncer()
	w := NewStatusScheduler(syncer, clock, time.Minute, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return syncer.Reconciles() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Empty(t, w.Pending())
}

func TestStatusScheduler_DrivesStoredStatus(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := memstore.New()
	log := zerolog.Nop()

	finalizer := service.NewSessionFinalizer(store, store, nil, clock, nil, log)
	status := service.NewStatusService(store, finalizer, nil, clock, nil, log)
	w := NewStatusScheduler(status, clock, 0, nil, log)
	defer w.Stop()
	exams := service.NewExamService(store, store, store, status, w, clock, log)

	exam := &model.Exam{Title: "Ujian", ExamStart: epoch.Add(time.Minute), ExamEnd: epoch.Add(time.Hour)}
	require.NoError(t, exams.Create(ctx, exam))
	_, err := exams.Publish(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, w.Pending(), 2)

	storedStatus := func() model.ExamStatus {
		e, err := store.GetExam(ctx, exam.ID)
		if err != nil {
			return model.ExamStatusUnpublished
		}
		return e.Status
	}
	assert.Equal(t, model.ExamStatusRegistrationPending, storedStatus())

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return storedStatus() == model.ExamStatusExamActive }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Hour)
	assert.Eventually(t, func() bool { return storedStatus() == model.ExamStatusCompleted }, time.Second, 5*time.Millisecond)
	assert.Empty(t, w.Pending())
}
