package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

const examColumns = `id, title, requires_registration, registration_start, registration_end,
	exam_start, exam_end, duration_minutes, status, is_published, created_at, updated_at`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	var status int16
	err := row.Scan(&e.ID, &e.Title, &e.RequiresRegistration, &e.RegistrationStart, &e.RegistrationEnd,
		&e.ExamStart, &e.ExamEnd, &e.DurationMinutes, &status, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = model.ExamStatus(status)
	e.NormalizeUTC()
	return e, nil
}

// GetExam retrieves an exam by its UUID.
func (r *ExamRepository) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// CreateExam inserts a new exam and fills in its generated fields.
func (r *ExamRepository) CreateExam(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, requires_registration, registration_start, registration_end,
		                    exam_start, exam_end, duration_minutes, status, is_published)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.RequiresRegistration, e.RegistrationStart, e.RegistrationEnd,
		e.ExamStart, e.ExamEnd, e.DurationMinutes, int16(e.Status), e.IsPublished,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// UpdateExamStatus moves an exam forward to status. The write only happens if
// the stored status is lower, so the status never regresses and repeating the
// same target is a no-op. Reports whether the row advanced.
func (r *ExamRepository) UpdateExamStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status < $2`, id, int16(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPublished toggles the visibility flag of an exam.
func (r *ExamRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET is_published = $2, updated_at = NOW() WHERE id = $1`, id, published)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSchedule replaces the windows and duration of an exam. Status is left
// to the scheduler.
func (r *ExamRepository) UpdateSchedule(ctx context.Context, e *model.Exam) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET requires_registration = $2, registration_start = $3, registration_end = $4,
		     exam_start = $5, exam_end = $6, duration_minutes = $7, updated_at = NOW()
		 WHERE id = $1`,
		e.ID, e.RequiresRegistration, e.RegistrationStart, e.RegistrationEnd,
		e.ExamStart, e.ExamEnd, e.DurationMinutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExamsNeedingScheduling returns exams that still have a boundary at or
// after now. Used to rebuild timers at process start.
func (r *ExamRepository) ListExamsNeedingScheduling(ctx context.Context, now time.Time) ([]model.Exam, error) {
	return r.list(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE exam_end >= $1 AND status < $2
		 ORDER BY exam_start ASC`, now, int16(model.ExamStatusCompleted))
}

// ListUnsettledExams returns every exam that has not reached completed.
func (r *ExamRepository) ListUnsettledExams(ctx context.Context) ([]model.Exam, error) {
	return r.list(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE status < $1
		 ORDER BY exam_start ASC`, int16(model.ExamStatusCompleted))
}

func (r *ExamRepository) list(ctx context.Context, query string, args ...any) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
