package model

import "time"

// DeriveStatus returns the status an exam should hold at now, based only on
// its configured windows. The first matching rule wins:
//
//   - unpublished exams stay unpublished
//   - before exam_start (or registration_start) the exam is pending
//   - while registration accepts students it is open
//   - between registration close and exam_start it is closed
//   - from exam_start through exam_end (inclusive) it is active
//   - afterwards it is completed
//
// The result never decreases as now increases.
func DeriveStatus(e *Exam, now time.Time) ExamStatus {
	if !e.IsPublished {
		return ExamStatusUnpublished
	}

	if !e.RequiresRegistration {
		switch {
		case now.Before(e.ExamStart):
			return ExamStatusRegistrationPending
		case !now.After(e.ExamEnd):
			return ExamStatusExamActive
		default:
			return ExamStatusCompleted
		}
	}

	switch {
	case e.RegistrationStart != nil && now.Before(*e.RegistrationStart):
		return ExamStatusRegistrationPending
	case !now.After(e.registrationClose()) && now.Before(e.ExamStart):
		return ExamStatusRegistrationOpen
	case now.Before(e.ExamStart):
		return ExamStatusRegistrationClosed
	case !now.After(e.ExamEnd):
		return ExamStatusExamActive
	default:
		return ExamStatusCompleted
	}
}

// Boundary names one of the instants at which an exam changes status.
type Boundary string

const (
	BoundaryRegistrationStart Boundary = "reg_start"
	BoundaryRegistrationEnd   Boundary = "reg_end"
	BoundaryExamStart         Boundary = "start"
	BoundaryExamEnd           Boundary = "end"
)

// BoundaryPoint is a scheduled boundary with the status it introduces.
type BoundaryPoint struct {
	Name   Boundary
	At     time.Time
	Target ExamStatus
}

// Boundaries lists the instants at which the exam's derived status changes.
// The registration pair is only present when registration is required.
func (e *Exam) Boundaries() []BoundaryPoint {
	points := make([]BoundaryPoint, 0, 4)
	if e.RequiresRegistration {
		if e.RegistrationStart != nil {
			points = append(points, BoundaryPoint{BoundaryRegistrationStart, *e.RegistrationStart, ExamStatusRegistrationOpen})
		}
		if e.RegistrationEnd != nil {
			// Registration stays open through the end instant itself.
			points = append(points, BoundaryPoint{BoundaryRegistrationEnd, e.RegistrationEnd.Add(time.Nanosecond), ExamStatusRegistrationClosed})
		}
	}
	points = append(points,
		BoundaryPoint{BoundaryExamStart, e.ExamStart, ExamStatusExamActive},
		BoundaryPoint{BoundaryExamEnd, e.ExamEnd.Add(time.Nanosecond), ExamStatusCompleted},
	)
	return points
}
