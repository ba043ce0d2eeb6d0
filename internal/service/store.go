package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// ExamRegistry is the durable store of exam definitions.
type ExamRegistry interface {
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	CreateExam(ctx context.Context, e *model.Exam) error
	// UpdateExamStatus only ever moves the status forward and reports
	// whether the stored row advanced.
	UpdateExamStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) (bool, error)
	SetPublished(ctx context.Context, id uuid.UUID, published bool) error
	UpdateSchedule(ctx context.Context, e *model.Exam) error
	ListExamsNeedingScheduling(ctx context.Context, now time.Time) ([]model.Exam, error)
	ListUnsettledExams(ctx context.Context) ([]model.Exam, error)
}

// QuestionLookup returns the ordered questions of an exam.
type QuestionLookup interface {
	GetQuestionsForExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// QuestionStore adds write access for the admin question endpoint.
type QuestionStore interface {
	QuestionLookup
	AddQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) error
}

// SessionStore is the durable store of sessions and their answers.
type SessionStore interface {
	GetSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error)
	// CreateSession reports false and loads the stored row into s when a
	// session for the pair already exists.
	CreateSession(ctx context.Context, s *model.ExamSession) (bool, error)
	// UpdateSessionIfNotCompleted is the compare-and-set on the completed
	// flag. A nil answers map leaves stored answers untouched.
	UpdateSessionIfNotCompleted(ctx context.Context, s *model.ExamSession, answers model.Answers) (bool, error)
	SaveAnswer(ctx context.Context, sessionID, questionID uuid.UUID, option int, at time.Time) (bool, error)
	GetAnswers(ctx context.Context, sessionID uuid.UUID) (model.Answers, error)
	ListOpenSessionsPastDeadline(ctx context.Context, now time.Time) ([]model.ExamSession, error)
	ListOpenSessionsForExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error)
	ListSessionsForExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error)
}

// RegistrationStore records and checks exam registrations.
type RegistrationStore interface {
	CreateRegistration(ctx context.Context, r *model.Registration) (bool, error)
	HasRegistration(ctx context.Context, examID uuid.UUID, studentID int) (bool, error)
}

// EventPublisher broadcasts lifecycle events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event model.ExamEvent) error
}

// Scheduler keeps boundary timers for exams.
type Scheduler interface {
	Schedule(e *model.Exam)
	Cancel(examID uuid.UUID)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.ExamEvent) error { return nil }

type nopScheduler struct{}

func (nopScheduler) Schedule(*model.Exam) {}
func (nopScheduler) Cancel(uuid.UUID) {}
