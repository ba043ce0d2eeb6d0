// Package memstore is an in-memory implementation of the exam, question,
// session and registration stores. It mirrors the conditional writes of the
// Postgres repositories so services behave the same against either.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/repository"
)

type sessionKey struct {
	examID    uuid.UUID
	studentID int
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu            sync.RWMutex
	exams         map[uuid.UUID]*model.Exam
	questions     map[uuid.UUID][]model.Question
	sessions      map[sessionKey]*model.ExamSession
	answers       map[uuid.UUID]model.Answers
	registrations map[sessionKey]model.Registration
}

func New() *Store {
	return &Store{
		exams:         make(map[uuid.UUID]*model.Exam),
		questions:     make(map[uuid.UUID][]model.Question),
		sessions:      make(map[sessionKey]*model.ExamSession),
		answers:       make(map[uuid.UUID]model.Answers),
		registrations: make(map[sessionKey]model.Registration),
	}
}

// ─── Exams ──────────────────────────────────────────────────────────

func (s *Store) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) CreateExam(_ context.Context, e *model.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	cp := *e
	s.exams[e.ID] = &cp
	return nil
}

func (s *Store) UpdateExamStatus(_ context.Context, id uuid.UUID, status model.ExamStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok || e.Status >= status {
		return false, nil
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) SetPublished(_ context.Context, id uuid.UUID, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.IsPublished = published
	return nil
}

func (s *Store) UpdateSchedule(_ context.Context, upd *model.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[upd.ID]
	if !ok {
		return repository.ErrNotFound
	}
	e.RequiresRegistration = upd.RequiresRegistration
	e.RegistrationStart = upd.RegistrationStart
	e.RegistrationEnd = upd.RegistrationEnd
	e.ExamStart = upd.ExamStart
	e.ExamEnd = upd.ExamEnd
	e.DurationMinutes = upd.DurationMinutes
	return nil
}

func (s *Store) ListExamsNeedingScheduling(_ context.Context, now time.Time) ([]model.Exam, error) {
	return s.filterExams(func(e *model.Exam) bool {
		return !e.ExamEnd.Before(now) && e.Status < model.ExamStatusCompleted
	}), nil
}

func (s *Store) ListUnsettledExams(_ context.Context) ([]model.Exam, error) {
	return s.filterExams(func(e *model.Exam) bool {
		return e.Status < model.ExamStatusCompleted
	}), nil
}

func (s *Store) filterExams(keep func(*model.Exam) bool) []model.Exam {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Exam
	for _, e := range s.exams {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamStart.Before(out[j].ExamStart) })
	return out
}

// ─── Questions ──────────────────────────────────────────────────────

func (s *Store) GetQuestionsForExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := s.questions[examID]
	out := make([]model.Question, len(qs))
	copy(out, qs)
	return out, nil
}

func (s *Store) AddQuestions(_ context.Context, examID uuid.UUID, questions []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[examID]; !ok {
		return repository.ErrNotFound
	}
	last := len(s.questions[examID])
	for i := range questions {
		q := &questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		q.ExamID = examID
		q.Position = last + i + 1
		s.questions[examID] = append(s.questions[examID], *q)
	}
	return nil
}

// ─── Sessions ───────────────────────────────────────────────────────

func (s *Store) GetSession(_ context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionKey{examID, studentID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) CreateSession(_ context.Context, sess *model.ExamSession) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{sess.ExamID, sess.StudentID}
	if existing, ok := s.sessions[key]; ok {
		*sess = *existing
		return false, nil
	}
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	cp := *sess
	s.sessions[key] = &cp
	return true, nil
}

func (s *Store) UpdateSessionIfNotCompleted(_ context.Context, sess *model.ExamSession, answers model.Answers) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sessionKey{sess.ExamID, sess.StudentID}]
	if !ok || stored.ID != sess.ID || stored.Completed {
		return false, nil
	}

	stored.Completed = true
	stored.AutoCompleted = sess.AutoCompleted
	stored.CorrectCount = sess.CorrectCount
	stored.IncorrectCount = sess.IncorrectCount
	stored.ScorePercentage = sess.ScorePercentage
	stored.FinishedAt = sess.FinishedAt

	if answers != nil {
		cp := make(model.Answers, len(answers))
		for k, v := range answers {
			cp[k] = v
		}
		s.answers[sess.ID] = cp
	}
	return true, nil
}

func (s *Store) SaveAnswer(_ context.Context, sessionID, questionID uuid.UUID, option int, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByID(sessionID)
	if sess == nil {
		return false, repository.ErrNotFound
	}
	if sess.Completed {
		return false, nil
	}
	if s.answers[sessionID] == nil {
		s.answers[sessionID] = make(model.Answers)
	}
	s.answers[sessionID][questionID] = option
	return true, nil
}

func (s *Store) GetAnswers(_ context.Context, sessionID uuid.UUID) (model.Answers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.Answers, len(s.answers[sessionID]))
	for k, v := range s.answers[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) ListOpenSessionsPastDeadline(_ context.Context, now time.Time) ([]model.ExamSession, error) {
	return s.filterSessions(func(sess *model.ExamSession) bool {
		if sess.Completed || sess.Deadline.After(now) {
			return false
		}
		e, ok := s.exams[sess.ExamID]
		return ok && (e.Status == model.ExamStatusExamActive || e.Status == model.ExamStatusCompleted)
	}), nil
}

func (s *Store) ListOpenSessionsForExam(_ context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	return s.filterSessions(func(sess *model.ExamSession) bool {
		return sess.ExamID == examID && !sess.Completed
	}), nil
}

func (s *Store) ListSessionsForExam(_ context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	return s.filterSessions(func(sess *model.ExamSession) bool {
		return sess.ExamID == examID
	}), nil
}

func (s *Store) filterSessions(keep func(*model.ExamSession) bool) []model.ExamSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ExamSession
	for _, sess := range s.sessions {
		if keep(sess) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func (s *Store) sessionByID(id uuid.UUID) *model.ExamSession {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// ─── Registrations ──────────────────────────────────────────────────

func (s *Store) CreateRegistration(_ context.Context, r *model.Registration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{r.ExamID, r.StudentID}
	if _, ok := s.registrations[key]; ok {
		return false, nil
	}
	s.registrations[key] = *r
	return true, nil
}

func (s *Store) HasRegistration(_ context.Context, examID uuid.UUID, studentID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registrations[sessionKey{examID, studentID}]
	return ok, nil
}
