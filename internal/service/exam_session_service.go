package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/metrics"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository"
)

// ExamSessionService opens, times and closes student sessions.
type ExamSessionService struct {
	status        *StatusService
	sessions      SessionStore
	registrations RegistrationStore
	questions     QuestionLookup
	finalizer     *SessionFinalizer
	clock         clockwork.Clock
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	status *StatusService,
	sessions SessionStore,
	registrations RegistrationStore,
	questions QuestionLookup,
	finalizer *SessionFinalizer,
	clock clockwork.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		status:        status,
		sessions:      sessions,
		registrations: registrations,
		questions:     questions,
		finalizer:     finalizer,
		clock:         clock,
		metrics:       m,
		log:           log.With().Str("component", "exam_session_service").Logger(),
	}
}

// SessionClock reports how much time a session has left.
type SessionClock struct {
	Deadline         time.Time           `json:"deadline"`
	RemainingSeconds int64               `json:"remaining_seconds"`
	Status           model.SessionStatus `json:"status"`
	Expired          bool                `json:"expired"`
}

// StartSession opens a session for the participant. Starting again returns
// the stored session unchanged, so reloading never extends the deadline.
func (s *ExamSessionService) StartSession(ctx context.Context, examID uuid.UUID, p model.Participant) (*model.ExamSession, error) {
	exam, err := s.status.Sync(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusExamActive {
		return nil, ErrNotActive
	}

	if exam.RequiresRegistration && !p.IsAdmin {
		registered, err := s.registrations.HasRegistration(ctx, examID, p.ID)
		if err != nil {
			return nil, persistence("check registration", err)
		}
		if !registered {
			return nil, ErrRegistrationRequired
		}
	}

	existing, err := s.sessions.GetSession(ctx, examID, p.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, persistence("check existing session", err)
	}

	now := s.clock.Now().UTC()
	session := &model.ExamSession{
		ExamID:    examID,
		StudentID: p.ID,
		StartedAt: now,
		Deadline:  now.Add(exam.SessionDuration()),
	}

	created, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return nil, persistence("create session", err)
	}
	if !created {
		// Concurrent start won the insert; session now holds its row.
		return session, nil
	}

	s.metrics.SessionStarted()
	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", p.ID).
		Time("deadline", session.Deadline).
		Msg("Session started")

	// Freeze the answer key for this exam before anyone can submit.
	if _, err := s.questions.GetQuestionsForExam(ctx, examID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Question snapshot warmup failed")
	}

	return session, nil
}

// SubmitSession grades the student's answers and closes the session. Checks
// run in a fixed order so a repeated call with unchanged state fails the
// same way: not started, past deadline, already completed.
func (s *ExamSessionService) SubmitSession(ctx context.Context, examID uuid.UUID, studentID int, answers model.Answers) (*model.SubmissionResult, error) {
	// A completed exam closes open sessions before the checks below see them.
	if _, err := s.status.Sync(ctx, examID); err != nil {
		return nil, err
	}

	session, err := s.openSession(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return nil, persistence("load questions", err)
	}
	if unknown := Grade(questions, answers).Unknown; len(unknown) > 0 {
		return nil, ErrUnknownQuestion
	}

	result, won, err := s.finalizer.complete(ctx, session, questions, answers, false)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrAlreadyCompleted
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Int("correct", result.CorrectCount).
		Int("incorrect", result.IncorrectCount).
		Float64("score", result.ScorePercentage).
		Msg("Session submitted")
	return result, nil
}

// GetPaper returns the questions of an open session. The answer key is not
// serialized.
func (s *ExamSessionService) GetPaper(ctx context.Context, examID uuid.UUID, studentID int) ([]model.Question, error) {
	if _, err := s.openSession(ctx, examID, studentID); err != nil {
		return nil, err
	}
	questions, err := s.questions.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return nil, persistence("load questions", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// SaveAnswer stores a single answer of an open session so that an expired
// session can still be graded from partial work.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, examID uuid.UUID, studentID int, questionID uuid.UUID, option int) error {
	session, err := s.openSession(ctx, examID, studentID)
	if err != nil {
		return err
	}

	questions, err := s.questions.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return persistence("load questions", err)
	}
	if !containsQuestion(questions, questionID) {
		return ErrUnknownQuestion
	}

	saved, err := s.sessions.SaveAnswer(ctx, session.ID, questionID, option, s.clock.Now().UTC())
	if err != nil {
		return persistence("save answer", err)
	}
	if !saved {
		return ErrAlreadyCompleted
	}
	return nil
}

// TimeRemaining reports the session's deadline and the whole seconds left.
func (s *ExamSessionService) TimeRemaining(ctx context.Context, examID uuid.UUID, studentID int) (*SessionClock, error) {
	session, err := s.getSession(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	remaining := int64(0)
	if !session.Completed && !session.Expired(now) {
		remaining = int64(math.Floor(session.Deadline.Sub(now).Seconds()))
	}
	return &SessionClock{
		Deadline:         session.Deadline,
		RemainingSeconds: remaining,
		Status:           session.Status(),
		Expired:          session.Expired(now),
	}, nil
}

// GetResult returns the graded outcome of a completed session, rebuilt from
// the stored answers.
func (s *ExamSessionService) GetResult(ctx context.Context, examID uuid.UUID, studentID int) (*model.SubmissionResult, error) {
	session, err := s.getSession(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if !session.Completed {
		return nil, ErrNotCompleted
	}

	questions, err := s.questions.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return nil, persistence("load questions", err)
	}
	answers, err := s.sessions.GetAnswers(ctx, session.ID)
	if err != nil {
		return nil, persistence("load answers", err)
	}

	grade := Grade(questions, answers)
	score := 0.0
	if session.ScorePercentage != nil {
		score = *session.ScorePercentage
	}
	return &model.SubmissionResult{
		Session:         session,
		TotalQuestions:  grade.Total,
		CorrectCount:    session.CorrectCount,
		IncorrectCount:  session.IncorrectCount,
		ScorePercentage: score,
		Review:          grade.Review,
	}, nil
}

// ListResults returns every session of an exam.
func (s *ExamSessionService) ListResults(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	if _, err := s.status.Sync(ctx, examID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListSessionsForExam(ctx, examID)
	if err != nil {
		return nil, persistence("list sessions", err)
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}
	return sessions, nil
}

// ResultStats summarizes the sessions of an exam. Averages only cover
// completed sessions.
func (s *ExamSessionService) ResultStats(ctx context.Context, examID uuid.UUID) (*model.ResultStats, error) {
	sessions, err := s.ListResults(ctx, examID)
	if err != nil {
		return nil, err
	}

	stats := &model.ResultStats{ExamID: examID, TotalSessions: len(sessions)}
	var sum float64
	graded := 0
	for _, sess := range sessions {
		switch sess.Status() {
		case model.SessionStatusInProgress:
			stats.InProgress++
			continue
		case model.SessionStatusAutoCompleted:
			stats.AutoCompleted++
		default:
			stats.Completed++
		}

		score := 0.0
		if sess.ScorePercentage != nil {
			score = *sess.ScorePercentage
		}
		if graded == 0 || score > stats.HighestScore {
			stats.HighestScore = score
		}
		if graded == 0 || score < stats.LowestScore {
			stats.LowestScore = score
		}
		sum += score
		graded++
	}
	if graded > 0 {
		stats.AverageScore = math.Round(sum/float64(graded)*100) / 100
	}
	return stats, nil
}

// openSession loads a session that may still accept answers.
func (s *ExamSessionService) openSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	session, err := s.getSession(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.clock.Now()) {
		return nil, ErrDeadlineExceeded
	}
	if session.Completed {
		return nil, ErrAlreadyCompleted
	}
	return session, nil
}

func (s *ExamSessionService) getSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	session, err := s.sessions.GetSession(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotStarted
		}
		return nil, persistence("get session", err)
	}
	return session, nil
}

func containsQuestion(questions []model.Question, id uuid.UUID) bool {
	for _, q := range questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
