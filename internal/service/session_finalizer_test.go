package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

// flakySessions fails the terminal write of selected sessions.
type flakySessions struct {
	service.SessionStore

	mu   sync.Mutex
	fail map[uuid.UUID]bool
}

func (s *flakySessions) UpdateSessionIfNotCompleted(ctx context.Context, sess *model.ExamSession, answers model.Answers) (bool, error) {
	s.mu.Lock()
	failing := s.fail[sess.ID]
	s.mu.Unlock()
	if failing {
		return false, errors.New("connection reset by peer")
	}
	return s.SessionStore.UpdateSessionIfNotCompleted(ctx, sess, answers)
}

func (s *flakySessions) setFailing(id uuid.UUID, failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[id] = failing
}

func TestFinalizeExpired_GradesOrphanedSession(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.openExam(t, 1, 2, 3)
	ctx := context.Background()

	_, err := f.sessions.StartSession(ctx, exam.ID, student(1))
	require.NoError(t, err)

	f.clock.Advance(32 * time.Minute)
	report, err := f.finalizer.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.SweepReport{Scanned: 1, Finalized: 1}, report)

	stored, err := f.store.GetSession(ctx, exam.ID, 1)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.True(t, stored.AutoCompleted)
	assert.Zero(t, stored.CorrectCount)
	assert.Zero(t, stored.IncorrectCount)
	require.NotNil(t, stored.ScorePercentage)
	assert.Zero(t, *stored.ScorePercentage)
	assert.Equal(t, model.SessionStatusAutoCompleted, stored.Status())

	report, err = f.finalizer.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned, "completed sessions are not picked up again")
}

func TestFinalizeExpired_GradesAutosavedAnswers(t *testing.T) {
	f := newFixture(t)
	exam, qs := f.openExam(t, 1, 2, 3, 4)
	ctx := context.Background()

	_, err := f.sessions.StartSession(ctx, exam.ID, student(1))
	require.NoError(t, err)
	require.NoError(t, f.sessions.SaveAnswer(ctx, exam.ID, 1, qs[0].ID, 1))
	require.NoError(t, f.sessions.SaveAnswer(ctx, exam.ID, 1, qs[1].ID, 5))

	f.clock.Advance(31 * time.Minute)
	_, err = f.finalizer.FinalizeExpired(ctx)
	require.NoError(t, err)

	res, err := f.sessions.GetResult(ctx, exam.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 1, res.IncorrectCount)
	assert.Equal(t, 25.0, res.ScorePercentage)
	assert.True(t, res.Session.AutoCompleted)
}

func TestFinalizeExpired_LeavesRunningSessions(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.openExam(t, 1)
	ctx := context.Background()

	_, err := f.sessions.StartSession(ctx, exam.ID, student(1))
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)
	_, err = f.sessions.StartSession(ctx, exam.ID, student(2))
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	report, err := f.finalizer.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Finalized)

	running, err := f.store.GetSession(ctx, exam.ID, 2)
	require.NoError(t, err)
	assert.False(t, running.Completed)
}

func TestFinalizeExpired_ContinuesPastFailures(t *testing.T) {
	var flaky *flakySessions
	f := newFixtureWithSessions(t, func(s service.SessionStore) service.SessionStore {
		flaky = &flakySessions{SessionStore: s, fail: make(map[uuid.UUID]bool)}
		return flaky
	})
	exam, _ := f.openExam(t, 1)
	ctx := context.Background()

	var broken *model.ExamSession
	for id := 1; id <= 3; id++ {
		s, err := f.sessions.StartSession(ctx, exam.ID, student(id))
		require.NoError(t, err)
		if id == 2 {
			broken = s
		}
	}
	flaky.setFailing(broken.ID, true)

	f.clock.Advance(31 * time.Minute)
	report, err := f.finalizer.FinalizeExpired(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrPersistence)
	assert.Equal(t, service.SweepReport{Scanned: 3, Finalized: 2, Failed: 1}, report)

	stored, err := f.store.GetSession(ctx, exam.ID, 3)
	require.NoError(t, err)
	assert.True(t, stored.Completed)

	flaky.setFailing(broken.ID, false)
	report, err = f.finalizer.FinalizeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.SweepReport{Scanned: 1, Finalized: 1}, report)
}

func TestFinalizeSession_RacesSubmitWithSingleWinner(t *testing.T) {
	const rounds = 1000

	f := newFixture(t)
	exam, qs := f.openExam(t, 1)
	ctx := context.Background()

	for id := 1; id <= rounds; id++ {
		_, err := f.sessions.StartSession(ctx, exam.ID, student(id))
		require.NoError(t, err)
	}

	// Exactly at the deadline both paths are allowed to close the session.
	f.clock.Advance(30 * time.Minute)
	answers := model.Answers{qs[0].ID: 1}

	submitted, swept := 0, 0
	for id := 1; id <= rounds; id++ {
		open, err := f.store.GetSession(ctx, exam.ID, id)
		require.NoError(t, err)
		require.False(t, open.Completed, "round %d: session closed before the race", id)

		var (
			wg          sync.WaitGroup
			submitErr   error
			finalized   bool
			finalizeErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, submitErr = f.sessions.SubmitSession(ctx, exam.ID, id, answers)
		}()
		go func() {
			defer wg.Done()
			finalized, finalizeErr = f.finalizer.FinalizeSession(ctx, open)
		}()
		wg.Wait()

		require.NoError(t, finalizeErr)
		stored, err := f.store.GetSession(ctx, exam.ID, id)
		require.NoError(t, err)
		require.True(t, stored.Completed)

		if submitErr == nil {
			submitted++
			require.False(t, finalized, "round %d: both paths won", id)
			require.False(t, stored.AutoCompleted)
			require.Equal(t, 1, stored.CorrectCount)
		} else {
			swept++
			require.ErrorIs(t, submitErr, service.ErrAlreadyCompleted)
			require.True(t, finalized, "round %d: no path won", id)
			require.True(t, stored.AutoCompleted)
			require.Zero(t, stored.CorrectCount)
		}
		require.Zero(t, stored.IncorrectCount)
	}
	assert.Equal(t, rounds, submitted+swept)
}

func TestFinalizeExpired_RacesSubmitWithSingleWinner(t *testing.T) {
	const rounds = 200
	ctx := context.Background()

	for round := 1; round <= rounds; round++ {
		f := newFixture(t)
		exam, qs := f.openExam(t, 1)
		_, err := f.sessions.StartSession(ctx, exam.ID, student(1))
		require.NoError(t, err)
		f.clock.Advance(30 * time.Minute)

		var (
			wg        sync.WaitGroup
			submitErr error
			report    service.SweepReport
			sweepErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, submitErr = f.sessions.SubmitSession(ctx, exam.ID, 1, model.Answers{qs[0].ID: 1})
		}()
		go func() {
			defer wg.Done()
			report, sweepErr = f.finalizer.FinalizeExpired(ctx)
		}()
		wg.Wait()

		require.NoError(t, sweepErr)
		stored, err := f.store.GetSession(ctx, exam.ID, 1)
		require.NoError(t, err)
		require.True(t, stored.Completed)

		if submitErr == nil {
			require.Zero(t, report.Finalized, "round %d: both paths won", round)
			require.False(t, stored.AutoCompleted)
		} else {
			require.ErrorIs(t, submitErr, service.ErrAlreadyCompleted)
			require.Equal(t, 1, report.Finalized, "round %d: no path won", round)
			require.True(t, stored.AutoCompleted)
		}
	}
}

func TestCloseExam_ClosesSessionsBeforeTheirDeadline(t *testing.T) {
	f := newFixture(t)
	exam, qs := f.openExam(t, 1)
	ctx := context.Background()

	f.clock.Advance(45 * time.Minute)
	s, err := f.sessions.StartSession(ctx, exam.ID, student(1))
	require.NoError(t, err)
	require.Equal(t, epoch.Add(75*time.Minute), s.Deadline)

	f.clock.Advance(16 * time.Minute)
	got, err := f.exams.Get(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamStatusCompleted, got.Status)

	stored, err := f.store.GetSession(ctx, exam.ID, 1)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.True(t, stored.AutoCompleted)

	_, err = f.sessions.SubmitSession(ctx, exam.ID, 1, model.Answers{qs[0].ID: 1})
	assert.ErrorIs(t, err, service.ErrAlreadyCompleted)
}

func TestCloseExam_SkipsAlreadyCompleted(t *testing.T) {
	f := newFixture(t)
	exam, qs := f.openExam(t, 1)
	ctx := context.Background()

	for id := 1; id <= 2; id++ {
		_, err := f.sessions.StartSession(ctx, exam.ID, student(id))
		require.NoError(t, err)
	}
	_, err := f.sessions.SubmitSession(ctx, exam.ID, 1, model.Answers{qs[0].ID: 1})
	require.NoError(t, err)

	report, err := f.finalizer.CloseExam(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, service.SweepReport{Scanned: 1, Finalized: 1}, report)

	first, err := f.store.GetSession(ctx, exam.ID, 1)
	require.NoError(t, err)
	assert.False(t, first.AutoCompleted)
	assert.Equal(t, 1, first.CorrectCount)
}
