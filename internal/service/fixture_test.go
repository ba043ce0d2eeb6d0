package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository/memstore"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

var epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memstore.Store
	clock     *clockwork.FakeClock
	scheduler *recordingScheduler
	finalizer *service.SessionFinalizer
	status    *service.StatusService
	exams     *service.ExamService
	sessions  *service.ExamSessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithSessions(t, nil)
}

// newFixtureWithSessions lets a test wrap the session store, e.g. to inject
// failures. A nil wrap uses the memstore directly.
func newFixtureWithSessions(t *testing.T, wrap func(service.SessionStore) service.SessionStore) *fixture {
	t.Helper()

	store := memstore.New()
	clock := clockwork.NewFakeClockAt(epoch)
	log := zerolog.Nop()

	var sessions service.SessionStore = store
	if wrap != nil {
		sessions = wrap(store)
	}

	f := &fixture{store: store, clock: clock, scheduler: &recordingScheduler{}}
	f.finalizer = service.NewSessionFinalizer(sessions, store, nil, clock, nil, log)
	f.status = service.NewStatusService(store, f.finalizer, nil, clock, nil, log)
	f.exams = service.NewExamService(store, store, store, f.status, f.scheduler, clock, log)
	f.sessions = service.NewExamSessionService(f.status, sessions, store, store, f.finalizer, clock, nil, log)
	return f
}

// openExam creates and publishes an exam without registration that is
// active from epoch for an hour, with a 30 minute session duration.
func (f *fixture) openExam(t *testing.T, correct ...int) (*model.Exam, []model.Question) {
	t.Helper()
	ctx := context.Background()

	exam := &model.Exam{
		Title:           "Ujian Matematika",
		ExamStart:       epoch,
		ExamEnd:         epoch.Add(time.Hour),
		DurationMinutes: 30,
	}
	require.NoError(t, f.exams.Create(ctx, exam))

	questions := f.addQuestions(t, exam.ID, correct...)

	published, err := f.exams.Publish(ctx, exam.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExamStatusExamActive, published.Status)
	return published, questions
}

func (f *fixture) addQuestions(t *testing.T, examID uuid.UUID, correct ...int) []model.Question {
	t.Helper()
	if len(correct) == 0 {
		return nil
	}
	reqs := make([]model.AddQuestionRequest, len(correct))
	for i, c := range correct {
		reqs[i] = model.AddQuestionRequest{
			Text:            "Soal",
			Options:         []string{"A", "B", "C", "D", "E"},
			CorrectOptionID: c,
		}
	}
	questions, err := f.exams.AddQuestions(context.Background(), examID, reqs)
	require.NoError(t, err)
	return questions
}

func student(id int) model.Participant {
	return model.Participant{ID: id}
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
	cancelled []uuid.UUID
}

func (r *recordingScheduler) Schedule(e *model.Exam) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, e.ID)
}

func (r *recordingScheduler) Cancel(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, id)
}

func (r *recordingScheduler) Scheduled() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.scheduled...)
}
