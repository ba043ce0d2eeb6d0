package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamStatus_Text(t *testing.T) {
	for s := ExamStatusUnpublished; s <= ExamStatusCompleted; s++ {
		raw, err := s.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, s.String(), string(raw))

		parsed, err := ParseExamStatus(string(raw))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ExamStatus(9).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "ExamStatus(9)", ExamStatus(9).String())

	var s ExamStatus
	assert.Error(t, s.UnmarshalText([]byte("archived")))
}

func TestExamStatus_JSON(t *testing.T) {
	raw, err := json.Marshal(map[string]ExamStatus{"status": ExamStatusRegistrationClosed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"registration_closed"}`, string(raw))

	var out struct {
		Status ExamStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"exam_active"}`), &out))
	assert.Equal(t, ExamStatusExamActive, out.Status)
	assert.False(t, out.Status.IsTerminal())
	assert.True(t, ExamStatusCompleted.IsTerminal())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to         ExamStatus
		withRegistration bool
		want             bool
	}{
		{ExamStatusUnpublished, ExamStatusRegistrationPending, false, true},
		{ExamStatusRegistrationPending, ExamStatusExamActive, false, true},
		{ExamStatusRegistrationPending, ExamStatusCompleted, false, true},
		{ExamStatusRegistrationPending, ExamStatusRegistrationOpen, false, false},
		{ExamStatusRegistrationPending, ExamStatusRegistrationOpen, true, true},
		{ExamStatusRegistrationOpen, ExamStatusRegistrationClosed, true, true},
		{ExamStatusRegistrationOpen, ExamStatusExamActive, true, true},
		{ExamStatusRegistrationClosed, ExamStatusRegistrationOpen, true, false},
		{ExamStatusExamActive, ExamStatusRegistrationPending, false, false},
		{ExamStatusExamActive, ExamStatusExamActive, false, false},
		{ExamStatusCompleted, ExamStatusExamActive, true, false},
		{ExamStatusCompleted, ExamStatus(6), true, false},
		{ExamStatusRegistrationPending, ExamStatusUnpublished, false, false},
	}

	for _, tt := range tests {
		got := CanTransition(tt.from, tt.to, tt.withRegistration)
		assert.Equal(t, tt.want, got, "%s -> %s (registration=%v)", tt.from, tt.to, tt.withRegistration)
	}
}

func TestValidateWindows(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Exam)
		want   error
	}{
		{"valid", func(e *Exam) {}, nil},
		{"missing start", func(e *Exam) { e.ExamStart = time.Time{} }, ErrExamStartRequired},
		{"end before start", func(e *Exam) { e.ExamEnd = at(2 * time.Hour) }, ErrExamEndBeforeStart},
		{"zero length exam", func(e *Exam) { e.ExamEnd = e.ExamStart }, nil},
		{"registration ends after start", func(e *Exam) { e.RegistrationEnd = ptr(at(3*time.Hour + time.Second)) }, ErrRegistrationAfterStart},
		{"registration ends at start", func(e *Exam) { e.RegistrationEnd = ptr(at(3 * time.Hour)) }, nil},
		{"registration inverted", func(e *Exam) { e.RegistrationStart = ptr(at(150 * time.Minute)) }, ErrRegistrationInverted},
		{"registration windows ignored when not required", func(e *Exam) {
			e.RequiresRegistration = false
			e.RegistrationEnd = ptr(at(5 * time.Hour))
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := registrationExam()
			tt.mutate(exam)
			assert.ErrorIs(t, exam.ValidateWindows(), tt.want)
		})
	}
}

func TestNormalizeUTC(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	exam := &Exam{
		RegistrationStart: ptr(time.Date(2026, 3, 2, 15, 0, 0, 0, jakarta)),
		ExamStart:         time.Date(2026, 3, 2, 17, 0, 0, 0, jakarta),
		ExamEnd:           time.Date(2026, 3, 2, 18, 0, 0, 0, jakarta),
	}

	exam.NormalizeUTC()

	assert.Equal(t, time.UTC, exam.ExamStart.Location())
	assert.Equal(t, epoch.Add(2*time.Hour), exam.ExamStart)
	assert.Equal(t, epoch, *exam.RegistrationStart)
	assert.Nil(t, exam.RegistrationEnd)
}

func TestSessionDuration(t *testing.T) {
	exam := &Exam{ExamStart: epoch, ExamEnd: at(45 * time.Minute)}
	assert.Equal(t, 45*time.Minute, exam.SessionDuration())

	exam.DurationMinutes = 90
	assert.Equal(t, 90*time.Minute, exam.SessionDuration(), "configured duration wins even past the window")

	exam.DurationMinutes = 0
	exam.ExamEnd = at(10 * time.Second)
	assert.Equal(t, time.Minute, exam.SessionDuration())
}

func TestExamSession_StatusAndExpiry(t *testing.T) {
	s := &ExamSession{Deadline: at(30 * time.Minute)}
	assert.Equal(t, SessionStatusInProgress, s.Status())
	assert.False(t, s.Expired(at(30*time.Minute)), "the deadline instant still belongs to the session")
	assert.True(t, s.Expired(at(30*time.Minute+time.Nanosecond)))

	s.Completed = true
	assert.Equal(t, SessionStatusCompleted, s.Status())
	s.AutoCompleted = true
	assert.Equal(t, SessionStatusAutoCompleted, s.Status())
}

func TestSubmitSessionRequest_ToAnswers(t *testing.T) {
	answered, skipped := uuid.New(), uuid.New()
	var req SubmitSessionRequest
	raw := `{"answers":{"` + answered.String() + `":3,"` + skipped.String() + `":null}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	assert.Equal(t, Answers{answered: 3}, req.ToAnswers())
}

func TestParsePermission(t *testing.T) {
	p, ok := ParsePermission("results:read")
	assert.True(t, ok)
	assert.Equal(t, PermissionResultsRead, p)

	_, ok = ParsePermission("students:write")
	assert.False(t, ok)
}

func TestQuestion_HidesCorrectOption(t *testing.T) {
	raw, err := json.Marshal(Question{ID: uuid.New(), Options: []string{"A", "B", "C", "D", "E"}, CorrectOptionID: 2})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct")
}
