package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// RegistrationRepository handles exam registration data access.
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

// CreateRegistration records a registration. Registering twice is a no-op;
// created reports whether a new row was written.
func (r *RegistrationRepository) CreateRegistration(ctx context.Context, reg *model.Registration) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO exam_registrations (exam_id, student_id, registered_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		reg.ExamID, reg.StudentID, reg.RegisteredAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// HasRegistration reports whether the student registered for the exam.
func (r *RegistrationRepository) HasRegistration(ctx context.Context, examID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_registrations WHERE exam_id = $1 AND student_id = $2)`,
		examID, studentID,
	).Scan(&exists)
	return exists, err
}
