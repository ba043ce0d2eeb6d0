package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// QuestionSource is the durable question store behind the cache.
type QuestionSource interface {
	GetQuestionsForExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// snapshotQuestion carries the answer key, which model.Question hides from JSON.
type snapshotQuestion struct {
	ID              uuid.UUID `json:"id"`
	Position        int       `json:"position"`
	Text            string    `json:"text"`
	Options         []string  `json:"options"`
	CorrectOptionID int       `json:"correct_option_id"`
}

// QuestionCache freezes the question set of an exam in Redis the first time it
// is read. Later reads return the snapshot even if the store changes, so every
// grading of the exam uses the same answer key.
type QuestionCache struct {
	rdb    *redis.Client
	source QuestionSource
	ttl    time.Duration
	log    zerolog.Logger
}

// NewQuestionCache creates a new QuestionCache.
func NewQuestionCache(rdb *redis.Client, source QuestionSource, ttl time.Duration, log zerolog.Logger) *QuestionCache {
	return &QuestionCache{
		rdb:    rdb,
		source: source,
		ttl:    ttl,
		log:    log.With().Str("component", "question_cache").Logger(),
	}
}

// GetQuestionsForExam returns the frozen question set, creating it from the
// source on first use. When Redis is unavailable the source is read directly.
func (c *QuestionCache) GetQuestionsForExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	key := config.CacheKey.ExamQuestionSnapshotKey(examID.String())

	if questions, err := c.read(ctx, key, examID); err == nil {
		return questions, nil
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Snapshot read failed, using store")
		return c.source.GetQuestionsForExam(ctx, examID)
	}

	questions, err := c.source.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		// Nothing to freeze yet.
		return questions, nil
	}

	payload, err := encodeSnapshot(questions)
	if err != nil {
		return nil, err
	}

	stored, err := c.rdb.SetNX(ctx, key, payload, c.ttl).Result()
	if err != nil {
		c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Snapshot write failed")
		return questions, nil
	}
	if !stored {
		// Another process froze the set first; use theirs.
		if winner, err := c.read(ctx, key, examID); err == nil {
			return winner, nil
		}
	}
	return questions, nil
}

func (c *QuestionCache) read(ctx context.Context, key string, examID uuid.UUID) ([]model.Question, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var snap []snapshotQuestion
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	questions := make([]model.Question, len(snap))
	for i, q := range snap {
		questions[i] = model.Question{
			ID:              q.ID,
			ExamID:          examID,
			Position:        q.Position,
			Text:            q.Text,
			Options:         q.Options,
			CorrectOptionID: q.CorrectOptionID,
		}
	}
	return questions, nil
}

func encodeSnapshot(questions []model.Question) ([]byte, error) {
	snap := make([]snapshotQuestion, len(questions))
	for i, q := range questions {
		snap[i] = snapshotQuestion{
			ID:              q.ID,
			Position:        q.Position,
			Text:            q.Text,
			Options:         q.Options,
			CorrectOptionID: q.CorrectOptionID,
		}
	}
	return json.Marshal(snap)
}
