package model

import (
	"time"

	"github.com/google/uuid"
)

// Registration records that a student signed up for an exam that requires it.
type Registration struct {
	ExamID       uuid.UUID `json:"exam_id"`
	StudentID    int       `json:"student_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Participant is the caller acting on a session. Admins bypass registration.
type Participant struct {
	ID      int
	IsAdmin bool
}
