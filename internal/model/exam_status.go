package model

import (
	"fmt"
)

// ExamStatus is the lifecycle position of an exam. The numeric value is the
// position on the lifecycle sequence and is what gets persisted, so ordering
// comparisons are meaningful.
type ExamStatus int16

const (
	ExamStatusUnpublished ExamStatus = iota
	ExamStatusRegistrationPending
	ExamStatusRegistrationOpen
	ExamStatusRegistrationClosed
	ExamStatusExamActive
	ExamStatusCompleted
)

var examStatusNames = [...]string{
	ExamStatusUnpublished:         "unpublished",
	ExamStatusRegistrationPending: "registration_pending",
	ExamStatusRegistrationOpen:    "registration_open",
	ExamStatusRegistrationClosed:  "registration_closed",
	ExamStatusExamActive:          "exam_active",
	ExamStatusCompleted:           "completed",
}

// ParseExamStatus converts the wire name of a status back into an ExamStatus.
func ParseExamStatus(s string) (ExamStatus, error) {
	for i, name := range examStatusNames {
		if name == s {
			return ExamStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown exam status %q", s)
}

// IsValid reports whether s is one of the declared statuses.
func (s ExamStatus) IsValid() bool {
	return s >= ExamStatusUnpublished && s <= ExamStatusCompleted
}

// IsTerminal reports whether no further transition can leave s.
func (s ExamStatus) IsTerminal() bool {
	return s == ExamStatusCompleted
}

func (s ExamStatus) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("ExamStatus(%d)", int16(s))
	}
	return examStatusNames[s]
}

// MarshalText encodes the status by name so JSON payloads stay readable.
func (s ExamStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid exam status %d", int16(s))
	}
	return []byte(examStatusNames[s]), nil
}

func (s *ExamStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseExamStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CanTransition reports whether an exam may move from one status to another
// in a single applied step. Skipping forward is allowed because a missed
// timer is caught up by re-deriving; moving backward never is. withRegistration
// selects whether the registration states belong to the exam's path at all.
func CanTransition(from, to ExamStatus, withRegistration bool) bool {
	if !from.IsValid() || !to.IsValid() || to <= from {
		return false
	}

	switch to {
	case ExamStatusUnpublished:
		return false
	case ExamStatusRegistrationPending:
		return from == ExamStatusUnpublished
	case ExamStatusRegistrationOpen, ExamStatusRegistrationClosed:
		return withRegistration
	case ExamStatusExamActive, ExamStatusCompleted:
		return true
	default:
		return false
	}
}
