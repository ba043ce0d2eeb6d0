package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

const sessionColumns = `es.id, es.exam_id, es.student_id, es.started_at, es.deadline, es.completed,
	es.auto_completed, es.correct_count, es.incorrect_count, es.score_percentage, es.finished_at`

// ExamSessionRepository handles exam session and answer data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row, s *model.ExamSession) error {
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.Deadline, &s.Completed,
		&s.AutoCompleted, &s.CorrectCount, &s.IncorrectCount, &s.ScorePercentage, &s.FinishedAt)
	if err != nil {
		return err
	}
	s.StartedAt = s.StartedAt.UTC()
	s.Deadline = s.Deadline.UTC()
	return nil
}

// GetSession retrieves the session of a specific exam-student combination.
func (r *ExamSessionRepository) GetSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions es
		 WHERE es.exam_id = $1 AND es.student_id = $2`, examID, studentID), s)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// CreateSession inserts a new session. When a session for the pair already
// exists the insert is skipped, s is overwritten with the stored row and
// created is false.
func (r *ExamSessionRepository) CreateSession(ctx context.Context, s *model.ExamSession) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, started_at, deadline)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id`,
		s.ExamID, s.StudentID, s.StartedAt, s.Deadline,
	).Scan(&s.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	// Concurrent start: another request created the row first.
	existing, err := r.GetSession(ctx, s.ExamID, s.StudentID)
	if err != nil {
		return false, fmt.Errorf("load concurrent session: %w", err)
	}
	*s = *existing
	return false, nil
}

// UpdateSessionIfNotCompleted is the single terminal write of a session. The
// row is only updated while completed is still false; when answers is not nil
// the stored answers are replaced in the same transaction. Reports whether
// this call performed the write.
func (r *ExamSessionRepository) UpdateSessionIfNotCompleted(ctx context.Context, s *model.ExamSession, answers model.Answers) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET completed = TRUE, auto_completed = $2, correct_count = $3, incorrect_count = $4,
		     score_percentage = $5, finished_at = $6
		 WHERE id = $1 AND completed = FALSE`,
		s.ID, s.AutoCompleted, s.CorrectCount, s.IncorrectCount, s.ScorePercentage, s.FinishedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if answers != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM session_answers WHERE session_id = $1`, s.ID); err != nil {
			return false, fmt.Errorf("clear answers: %w", err)
		}
		if len(answers) > 0 {
			answeredAt := time.Now().UTC()
			if s.FinishedAt != nil {
				answeredAt = *s.FinishedAt
			}
			rows := make([][]any, 0, len(answers))
			for qID, opt := range answers {
				rows = append(rows, []any{s.ID, qID, opt, answeredAt})
			}
			if _, err := tx.CopyFrom(ctx,
				pgx.Identifier{"session_answers"},
				[]string{"session_id", "question_id", "selected_option", "answered_at"},
				pgx.CopyFromRows(rows),
			); err != nil {
				return false, fmt.Errorf("store answers: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SaveAnswer upserts a single answer while the session is still open. The
// session row is share-locked so the answer cannot slip in after a concurrent
// terminal write has replaced the answer set. Reports whether it was stored.
func (r *ExamSessionRepository) SaveAnswer(ctx context.Context, sessionID, questionID uuid.UUID, option int, at time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var completed bool
	err = tx.QueryRow(ctx,
		`SELECT completed FROM exam_sessions WHERE id = $1 FOR SHARE`, sessionID,
	).Scan(&completed)
	if err != nil {
		return false, notFound(err)
	}
	if completed {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, selected_option, answered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET selected_option = EXCLUDED.selected_option, answered_at = EXCLUDED.answered_at`,
		sessionID, questionID, option, at); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// GetAnswers returns the stored answers of a session.
func (r *ExamSessionRepository) GetAnswers(ctx context.Context, sessionID uuid.UUID) (model.Answers, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_option FROM session_answers WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(model.Answers)
	for rows.Next() {
		var qID uuid.UUID
		var opt int
		if err := rows.Scan(&qID, &opt); err != nil {
			return nil, err
		}
		answers[qID] = opt
	}
	return answers, rows.Err()
}

// ListOpenSessionsPastDeadline returns every unfinished session whose deadline
// is at or before now and whose exam is active or already completed.
func (r *ExamSessionRepository) ListOpenSessionsPastDeadline(ctx context.Context, now time.Time) ([]model.ExamSession, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions es
		 JOIN exams e ON e.id = es.exam_id
		 WHERE es.completed = FALSE AND es.deadline <= $1 AND e.status IN ($2, $3)
		 ORDER BY es.deadline ASC`,
		now, int16(model.ExamStatusExamActive), int16(model.ExamStatusCompleted))
}

// ListOpenSessionsForExam returns every unfinished session of an exam.
func (r *ExamSessionRepository) ListOpenSessionsForExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions es
		 WHERE es.exam_id = $1 AND es.completed = FALSE
		 ORDER BY es.started_at ASC`, examID)
}

// ListSessionsForExam returns all sessions of an exam for result reporting.
func (r *ExamSessionRepository) ListSessionsForExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions es
		 WHERE es.exam_id = $1
		 ORDER BY es.student_id ASC`, examID)
}

func (r *ExamSessionRepository) list(ctx context.Context, query string, args ...any) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
