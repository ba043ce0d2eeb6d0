package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Window validation errors. They are wrapped into service.ErrInvalidWindow by
// the caller so the API can report the exact reason.
var (
	ErrExamStartRequired      = errors.New("exam_start is required")
	ErrExamEndBeforeStart     = errors.New("exam_end is before exam_start")
	ErrRegistrationAfterStart = errors.New("registration_end is after exam_start")
	ErrRegistrationInverted   = errors.New("registration_start is after registration_end")
)

// Exam represents an exam definition together with its lifecycle status.
// All timestamps are stored and compared in UTC.
type Exam struct {
	ID                   uuid.UUID  `json:"id"`
	Title                string     `json:"title"`
	RequiresRegistration bool       `json:"requires_registration"`
	RegistrationStart    *time.Time `json:"registration_start,omitempty"`
	RegistrationEnd      *time.Time `json:"registration_end,omitempty"`
	ExamStart            time.Time  `json:"exam_start"`
	ExamEnd              time.Time  `json:"exam_end"`
	DurationMinutes      int        `json:"duration_minutes"`
	Status               ExamStatus `json:"status"`
	IsPublished          bool       `json:"is_published"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ValidateWindows checks the configured windows. Invalid input is rejected,
// never clamped.
func (e *Exam) ValidateWindows() error {
	if e.ExamStart.IsZero() {
		return ErrExamStartRequired
	}
	if e.ExamEnd.Before(e.ExamStart) {
		return ErrExamEndBeforeStart
	}
	if !e.RequiresRegistration {
		return nil
	}
	if e.RegistrationEnd != nil && e.RegistrationEnd.After(e.ExamStart) {
		return ErrRegistrationAfterStart
	}
	if e.RegistrationStart != nil && e.RegistrationEnd != nil && e.RegistrationStart.After(*e.RegistrationEnd) {
		return ErrRegistrationInverted
	}
	return nil
}

// NormalizeUTC converts every configured timestamp to UTC in place.
func (e *Exam) NormalizeUTC() {
	e.ExamStart = e.ExamStart.UTC()
	e.ExamEnd = e.ExamEnd.UTC()
	if e.RegistrationStart != nil {
		t := e.RegistrationStart.UTC()
		e.RegistrationStart = &t
	}
	if e.RegistrationEnd != nil {
		t := e.RegistrationEnd.UTC()
		e.RegistrationEnd = &t
	}
}

// SessionDuration is the time granted to each student once they start. The
// configured duration wins; without one the exam window length is used,
// never less than a minute.
func (e *Exam) SessionDuration() time.Duration {
	if e.DurationMinutes > 0 {
		return time.Duration(e.DurationMinutes) * time.Minute
	}
	d := e.ExamEnd.Sub(e.ExamStart)
	if d < time.Minute {
		d = time.Minute
	}
	return d
}

// registrationClose is the instant registration stops accepting students.
// Without an explicit end, registration stays open until the exam starts.
func (e *Exam) registrationClose() time.Time {
	if e.RegistrationEnd != nil {
		return *e.RegistrationEnd
	}
	return e.ExamStart
}

// ─── Request Models ─────────────────────────────────────────────────

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title                string     `json:"title" binding:"required,min=1,max=255"`
	RequiresRegistration bool       `json:"requires_registration"`
	RegistrationStart    *time.Time `json:"registration_start"`
	RegistrationEnd      *time.Time `json:"registration_end"`
	ExamStart            time.Time  `json:"exam_start" binding:"required"`
	ExamEnd              time.Time  `json:"exam_end" binding:"required"`
	DurationMinutes      int        `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
}

// ToExam converts the request into an unsaved Exam.
func (r *CreateExamRequest) ToExam() *Exam {
	return &Exam{
		Title:                r.Title,
		RequiresRegistration: r.RequiresRegistration,
		RegistrationStart:    r.RegistrationStart,
		RegistrationEnd:      r.RegistrationEnd,
		ExamStart:            r.ExamStart,
		ExamEnd:              r.ExamEnd,
		DurationMinutes:      r.DurationMinutes,
	}
}

// UpdateScheduleRequest replaces the windows of an existing exam.
type UpdateScheduleRequest struct {
	RequiresRegistration bool       `json:"requires_registration"`
	RegistrationStart    *time.Time `json:"registration_start"`
	RegistrationEnd      *time.Time `json:"registration_end"`
	ExamStart            time.Time  `json:"exam_start" binding:"required"`
	ExamEnd              time.Time  `json:"exam_end" binding:"required"`
	DurationMinutes      int        `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
}

// Apply copies the schedule onto e.
func (r *UpdateScheduleRequest) Apply(e *Exam) {
	e.RequiresRegistration = r.RequiresRegistration
	e.RegistrationStart = r.RegistrationStart
	e.RegistrationEnd = r.RegistrationEnd
	e.ExamStart = r.ExamStart
	e.ExamEnd = r.ExamEnd
	e.DurationMinutes = r.DurationMinutes
}
