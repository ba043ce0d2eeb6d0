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
)

// SweepReport summarizes one pass over open sessions.
type SweepReport struct {
	Scanned   int `json:"scanned"`
	Finalized int `json:"finalized"`
	// Skipped counts sessions another writer completed first.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SessionFinalizer owns the terminal write of a session. Manual submission,
// the expiry sweep and exam completion all close sessions through it, so the
// compare-and-set on the completed flag decides a single winner.
type SessionFinalizer struct {
	sessions  SessionStore
	questions QuestionLookup
	events    EventPublisher
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewSessionFinalizer creates a new SessionFinalizer.
func NewSessionFinalizer(
	sessions SessionStore,
	questions QuestionLookup,
	events EventPublisher,
	clock clockwork.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
) *SessionFinalizer {
	if events == nil {
		events = nopPublisher{}
	}
	return &SessionFinalizer{
		sessions:  sessions,
		questions: questions,
		events:    events,
		clock:     clock,
		metrics:   m,
		log:       log.With().Str("component", "session_finalizer").Logger(),
	}
}

// complete grades answers and attempts the terminal write. won is false when
// another writer completed the session first; s is left untouched then.
func (f *SessionFinalizer) complete(ctx context.Context, s *model.ExamSession, questions []model.Question, answers model.Answers, auto bool) (*model.SubmissionResult, bool, error) {
	grade := Grade(questions, answers)
	now := f.clock.Now().UTC()
	score := grade.Score

	done := *s
	done.Completed = true
	done.AutoCompleted = auto
	done.CorrectCount = grade.Correct
	done.IncorrectCount = grade.Incorrect
	done.ScorePercentage = &score
	done.FinishedAt = &now

	won, err := f.sessions.UpdateSessionIfNotCompleted(ctx, &done, grade.Graded)
	if err != nil {
		return nil, false, persistence("complete session", err)
	}
	if !won {
		f.metrics.FinalizeConflict()
		return nil, false, nil
	}

	*s = done
	f.metrics.SessionCompleted(auto)

	sessionID := s.ID
	if err := f.events.Publish(ctx, model.ExamEvent{
		Type:          model.EventSessionFinalized,
		ExamID:        s.ExamID,
		StudentID:     s.StudentID,
		SessionID:     &sessionID,
		AutoCompleted: auto,
		At:            now,
	}); err != nil {
		f.log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("Publish finalize event failed")
	}

	return &model.SubmissionResult{
		Session:         s,
		TotalQuestions:  grade.Total,
		CorrectCount:    grade.Correct,
		IncorrectCount:  grade.Incorrect,
		ScorePercentage: grade.Score,
		Review:          grade.Review,
	}, true, nil
}

// FinalizeSession grades an open session from its stored answers and closes
// it as auto-completed. Reports false if the session was already completed.
func (f *SessionFinalizer) FinalizeSession(ctx context.Context, s *model.ExamSession) (bool, error) {
	answers, err := f.sessions.GetAnswers(ctx, s.ID)
	if err != nil {
		return false, persistence("load answers", err)
	}
	questions, err := f.questions.GetQuestionsForExam(ctx, s.ExamID)
	if err != nil {
		return false, persistence("load questions", err)
	}

	_, won, err := f.complete(ctx, s, questions, answers, true)
	return won, err
}

// FinalizeExpired closes every open session whose deadline has passed. A
// failure on one session is recorded and the sweep moves on; the joined
// failures are returned alongside the report and retried on the next sweep.
func (f *SessionFinalizer) FinalizeExpired(ctx context.Context) (SweepReport, error) {
	started := f.clock.Now()
	defer func() { f.metrics.ObserveSweep(f.clock.Since(started).Seconds()) }()

	expired, err := f.sessions.ListOpenSessionsPastDeadline(ctx, started.UTC())
	if err != nil {
		return SweepReport{}, persistence("list expired sessions", err)
	}

	report, err := f.finalizeAll(ctx, expired)
	f.metrics.SweepFailed(report.Failed)
	return report, err
}

// CloseExam closes every session of an exam that is still open, regardless of
// its own deadline. Used when the exam itself completes.
func (f *SessionFinalizer) CloseExam(ctx context.Context, examID uuid.UUID) (SweepReport, error) {
	open, err := f.sessions.ListOpenSessionsForExam(ctx, examID)
	if err != nil {
		return SweepReport{}, persistence("list open sessions", err)
	}
	return f.finalizeAll(ctx, open)
}

func (f *SessionFinalizer) finalizeAll(ctx context.Context, sessions []model.ExamSession) (SweepReport, error) {
	report := SweepReport{Scanned: len(sessions)}
	var errs []error

	for i := range sessions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		s := &sessions[i]
		won, err := f.FinalizeSession(ctx, s)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
			f.log.Error().Err(err).
				Str("session_id", s.ID.String()).
				Str("exam_id", s.ExamID.String()).
				Int("student_id", s.StudentID).
				Msg("Finalize session failed")
			continue
		}
		if !won {
			report.Skipped++
			continue
		}

		report.Finalized++
		f.log.Info().
			Str("exam_id", s.ExamID.String()).
			Int("student_id", s.StudentID).
			Int("correct", s.CorrectCount).
			Int("incorrect", s.IncorrectCount).
			Msg("Session auto-finalized")
	}

	return report, errors.Join(errs...)
}
