package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamEventType identifies a lifecycle event broadcast to connected clients.
type ExamEventType string

const (
	EventStatusChanged    ExamEventType = "status_changed"
	EventSessionFinalized ExamEventType = "session_finalized"
)

// ExamEvent is published whenever an exam advances or a session is closed.
type ExamEvent struct {
	Type          ExamEventType `json:"type"`
	ExamID        uuid.UUID     `json:"exam_id"`
	Status        ExamStatus    `json:"status,omitempty"`
	StudentID     int           `json:"student_id,omitempty"`
	SessionID     *uuid.UUID    `json:"session_id,omitempty"`
	AutoCompleted bool          `json:"auto_completed,omitempty"`
	At            time.Time     `json:"at"`
}
