package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/metrics"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository"
)

// StatusService applies derived exam statuses. Timers, the reconcile sweep
// and read paths all go through Sync, which re-derives from the exam's
// windows and the current time instead of trusting whoever triggered it.
type StatusService struct {
	exams     ExamRegistry
	finalizer *SessionFinalizer
	events    EventPublisher
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewStatusService creates a new StatusService.
func NewStatusService(
	exams ExamRegistry,
	finalizer *SessionFinalizer,
	events EventPublisher,
	clock clockwork.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
) *StatusService {
	if events == nil {
		events = nopPublisher{}
	}
	return &StatusService{
		exams:     exams,
		finalizer: finalizer,
		events:    events,
		clock:     clock,
		metrics:   m,
		log:       log.With().Str("component", "status_service").Logger(),
	}
}

// Sync loads an exam and brings its status up to date.
func (s *StatusService) Sync(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistence("get exam", err)
	}
	if err := s.SyncExam(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SyncExam applies DeriveStatus(e, now) to e if it is ahead of the stored
// status, and closes the exam's open sessions once it is completed. e.Status
// is updated in place. Calling it repeatedly is harmless.
func (s *StatusService) SyncExam(ctx context.Context, e *model.Exam) error {
	target := model.DeriveStatus(e, s.clock.Now())

	if target > e.Status {
		if err := s.advance(ctx, e, target); err != nil {
			return err
		}
	}

	if e.Status.IsTerminal() {
		report, err := s.finalizer.CloseExam(ctx, e.ID)
		if report.Finalized > 0 {
			s.log.Info().
				Str("exam_id", e.ID.String()).
				Int("closed", report.Finalized).
				Msg("Closed open sessions of completed exam")
		}
		if err != nil {
			return fmt.Errorf("close sessions of exam %s: %w", e.ID, err)
		}
	}
	return nil
}

func (s *StatusService) advance(ctx context.Context, e *model.Exam, target model.ExamStatus) error {
	if !model.CanTransition(e.Status, target, e.RequiresRegistration) {
		s.log.Warn().
			Str("exam_id", e.ID.String()).
			Stringer("from", e.Status).
			Stringer("to", target).
			Msg("Refusing status transition outside the exam's path")
		return nil
	}

	advanced, err := s.exams.UpdateExamStatus(ctx, e.ID, target)
	if err != nil {
		return persistence("update exam status", err)
	}

	if !advanced {
		// Another writer moved it first; take whatever is stored now.
		fresh, err := s.exams.GetExam(ctx, e.ID)
		if err != nil {
			return persistence("reload exam", err)
		}
		e.Status = fresh.Status
		return nil
	}

	from := e.Status
	e.Status = target
	s.metrics.StatusTransition(target.String())
	s.log.Info().
		Str("exam_id", e.ID.String()).
		Stringer("from", from).
		Stringer("to", target).
		Msg("Exam status changed")

	if err := s.events.Publish(ctx, model.ExamEvent{
		Type:   model.EventStatusChanged,
		ExamID: e.ID,
		Status: target,
		At:     s.clock.Now().UTC(),
	}); err != nil {
		s.log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Publish status event failed")
	}
	return nil
}

// ReconcileAll re-derives every exam that has not completed yet. Used as a
// safety net for missed timers; one failing exam does not stop the rest.
func (s *StatusService) ReconcileAll(ctx context.Context) (int, error) {
	exams, err := s.exams.ListUnsettledExams(ctx)
	if err != nil {
		return 0, persistence("list unsettled exams", err)
	}

	var errs []error
	for i := range exams {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.SyncExam(ctx, &exams[i]); err != nil {
			errs = append(errs, fmt.Errorf("exam %s: %w", exams[i].ID, err))
		}
	}
	return len(exams), errors.Join(errs...)
}

// ExamsNeedingScheduling lists exams with a boundary still ahead.
func (s *StatusService) ExamsNeedingScheduling(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.exams.ListExamsNeedingScheduling(ctx, s.clock.Now().UTC())
	if err != nil {
		return nil, persistence("list exams needing scheduling", err)
	}
	return exams, nil
}
