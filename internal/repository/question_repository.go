package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetQuestionsForExam returns the questions of an exam ordered by position.
func (r *QuestionRepository) GetQuestionsForExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, position, text, options, correct_option_id
		 FROM questions WHERE exam_id = $1
		 ORDER BY position ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var correct int16
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Position, &q.Text, &q.Options, &correct); err != nil {
			return nil, err
		}
		q.CorrectOptionID = int(correct)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AddQuestions appends questions after the exam's current last position.
// The exam row is locked so concurrent appends get distinct positions.
func (r *QuestionRepository) AddQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM exams WHERE id = $1 FOR UPDATE`, examID).Scan(&locked); err != nil {
		return notFound(err)
	}

	var last int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM questions WHERE exam_id = $1`, examID,
	).Scan(&last); err != nil {
		return fmt.Errorf("read last position: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		q.ExamID = examID
		q.Position = last + i + 1
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, position, text, options, correct_option_id)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			q.ExamID, q.Position, q.Text, q.Options, int16(q.CorrectOptionID),
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question %d: %w", q.Position, err)
		}
	}

	return tx.Commit(ctx)
}
