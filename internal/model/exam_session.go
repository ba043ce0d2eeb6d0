package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the externally visible state of a session. It is derived
// from the completion flags rather than stored.
type SessionStatus string

const (
	SessionStatusInProgress    SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted     SessionStatus = "COMPLETED"
	SessionStatusAutoCompleted SessionStatus = "AUTO_COMPLETED"
)

// ExamSession is one student's timed attempt at one exam.
type ExamSession struct {
	ID              uuid.UUID  `json:"id"`
	ExamID          uuid.UUID  `json:"exam_id"`
	StudentID       int        `json:"student_id"`
	StartedAt       time.Time  `json:"started_at"`
	Deadline        time.Time  `json:"deadline"`
	Completed       bool       `json:"completed"`
	AutoCompleted   bool       `json:"auto_completed"`
	CorrectCount    int        `json:"correct_count"`
	IncorrectCount  int        `json:"incorrect_count"`
	ScorePercentage *float64   `json:"score_percentage,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Status reports the derived session state.
func (s *ExamSession) Status() SessionStatus {
	switch {
	case !s.Completed:
		return SessionStatusInProgress
	case s.AutoCompleted:
		return SessionStatusAutoCompleted
	default:
		return SessionStatusCompleted
	}
}

// Expired reports whether the session's own deadline has passed at now.
// The deadline instant itself still belongs to the session.
func (s *ExamSession) Expired(now time.Time) bool {
	return now.After(s.Deadline)
}

// Answers maps a question to the option id the student selected.
type Answers map[uuid.UUID]int

// ─── Request Models ─────────────────────────────────────────────────

// SubmitSessionRequest is the payload for a student's final submission.
// A null option marks the question as unanswered.
type SubmitSessionRequest struct {
	Answers map[uuid.UUID]*int `json:"answers" binding:"required"`
}

// ToAnswers drops unanswered entries.
func (r *SubmitSessionRequest) ToAnswers() Answers {
	out := make(Answers, len(r.Answers))
	for qID, opt := range r.Answers {
		if opt != nil {
			out[qID] = *opt
		}
	}
	return out
}

// SaveAnswerRequest is the payload for autosaving a single answer.
type SaveAnswerRequest struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption int       `json:"selected_option" binding:"required"`
}
