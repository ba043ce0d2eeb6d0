package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository"
)

// ExamService handles exam definitions, publishing and registration.
type ExamService struct {
	exams         ExamRegistry
	questions     QuestionStore
	registrations RegistrationStore
	status        *StatusService
	scheduler     Scheduler
	clock         clockwork.Clock
	log           zerolog.Logger
}

// NewExamService creates a new ExamService. A nil scheduler disables timers;
// status then advances through reads and the reconcile sweep only.
func NewExamService(
	exams ExamRegistry,
	questions QuestionStore,
	registrations RegistrationStore,
	status *StatusService,
	scheduler Scheduler,
	clock clockwork.Clock,
	log zerolog.Logger,
) *ExamService {
	if scheduler == nil {
		scheduler = nopScheduler{}
	}
	return &ExamService{
		exams:         exams,
		questions:     questions,
		registrations: registrations,
		status:        status,
		scheduler:     scheduler,
		clock:         clock,
		log:           log.With().Str("component", "exam_service").Logger(),
	}
}

// Create validates and stores a new exam, then registers its boundary timers.
// An invalid window is rejected before anything is stored or scheduled.
func (s *ExamService) Create(ctx context.Context, e *model.Exam) error {
	e.NormalizeUTC()
	if err := e.ValidateWindows(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWindow, err)
	}

	e.Status = model.ExamStatusRegistrationPending
	if err := s.exams.CreateExam(ctx, e); err != nil {
		return persistence("create exam", err)
	}

	s.scheduler.Schedule(e)

	s.log.Info().
		Str("exam_id", e.ID.String()).
		Bool("requires_registration", e.RequiresRegistration).
		Time("exam_start", e.ExamStart).
		Time("exam_end", e.ExamEnd).
		Msg("Exam created")
	return nil
}

// Get returns an exam with its status reconciled against the current time.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.status.Sync(ctx, id)
}

// Publish makes the exam visible and lets its status follow the windows.
func (s *ExamService) Publish(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !e.IsPublished {
		if err := s.exams.SetPublished(ctx, id, true); err != nil {
			return nil, persistence("publish exam", err)
		}
		e.IsPublished = true
	}

	if err := s.status.SyncExam(ctx, e); err != nil {
		return nil, err
	}
	s.scheduler.Schedule(e)

	s.log.Info().Str("exam_id", id.String()).Stringer("status", e.Status).Msg("Exam published")
	return e, nil
}

// UpdateSchedule replaces the windows of an exam that has not completed yet.
// Timers are re-registered under the same keys, dropping the stale ones. The
// status is never moved backward even if the new windows start later.
func (s *ExamService) UpdateSchedule(ctx context.Context, id uuid.UUID, req *model.UpdateScheduleRequest) (*model.Exam, error) {
	e, err := s.status.Sync(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, ErrNotActive
	}

	updated := *e
	req.Apply(&updated)
	updated.NormalizeUTC()
	if err := updated.ValidateWindows(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWindow, err)
	}

	if err := s.exams.UpdateSchedule(ctx, &updated); err != nil {
		return nil, persistence("update exam schedule", err)
	}
	if err := s.status.SyncExam(ctx, &updated); err != nil {
		return nil, err
	}
	s.scheduler.Schedule(&updated)

	s.log.Info().Str("exam_id", id.String()).Msg("Exam schedule updated")
	return &updated, nil
}

// AddQuestions appends questions to an exam that has not started yet.
func (s *ExamService) AddQuestions(ctx context.Context, examID uuid.UUID, reqs []model.AddQuestionRequest) ([]model.Question, error) {
	e, err := s.status.Sync(ctx, examID)
	if err != nil {
		return nil, err
	}
	if e.Status >= model.ExamStatusExamActive {
		return nil, ErrNotActive
	}

	questions := make([]model.Question, len(reqs))
	for i, r := range reqs {
		questions[i] = model.Question{
			Text:            r.Text,
			Options:         r.Options,
			CorrectOptionID: r.CorrectOptionID,
		}
	}

	if err := s.questions.AddQuestions(ctx, examID, questions); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistence("add questions", err)
	}
	return questions, nil
}

// Register signs a student up for an exam while its registration is open.
// Registering twice returns the same outcome.
func (s *ExamService) Register(ctx context.Context, examID uuid.UUID, studentID int) (*model.Registration, error) {
	e, err := s.status.Sync(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !e.RequiresRegistration {
		return nil, ErrRegistrationNotRequired
	}
	if e.Status != model.ExamStatusRegistrationOpen {
		return nil, ErrNotActive
	}

	reg := &model.Registration{
		ExamID:       examID,
		StudentID:    studentID,
		RegisteredAt: s.clock.Now().UTC(),
	}
	created, err := s.registrations.CreateRegistration(ctx, reg)
	if err != nil {
		return nil, persistence("create registration", err)
	}
	if created {
		s.log.Info().Str("exam_id", examID.String()).Int("student_id", studentID).Msg("Student registered")
	}
	return reg, nil
}

func (s *ExamService) load(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := s.exams.GetExam(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistence("get exam", err)
	}
	return e, nil
}
