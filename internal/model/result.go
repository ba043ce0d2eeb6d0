package model

import (
	"github.com/google/uuid"
)

// QuestionReview is the per-question detail shown after grading. Indexes are
// zero-based positions within Options.
type QuestionReview struct {
	QuestionID    uuid.UUID `json:"question_id"`
	Position      int       `json:"position"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectIndex  int       `json:"correct_index"`
	SelectedIndex *int      `json:"selected_index"`
	IsCorrect     bool      `json:"is_correct"`
}

// SubmissionResult is the graded outcome of a session.
type SubmissionResult struct {
	Session         *ExamSession     `json:"session"`
	TotalQuestions  int              `json:"total_questions"`
	CorrectCount    int              `json:"correct_count"`
	IncorrectCount  int              `json:"incorrect_count"`
	ScorePercentage float64          `json:"score_percentage"`
	Review          []QuestionReview `json:"review"`
}

// ResultStats summarizes graded sessions of one exam.
type ResultStats struct {
	ExamID        uuid.UUID `json:"exam_id"`
	TotalSessions int       `json:"total_sessions"`
	Completed     int       `json:"completed"`
	AutoCompleted int       `json:"auto_completed"`
	InProgress    int       `json:"in_progress"`
	AverageScore  float64   `json:"average_score"`
	HighestScore  float64   `json:"highest_score"`
	LowestScore   float64   `json:"lowest_score"`
}
