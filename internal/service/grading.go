package service

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// GradeResult is the outcome of grading one answer set.
type GradeResult struct {
	Correct   int
	Incorrect int
	Total     int
	Score     float64
	Review    []model.QuestionReview
	// Graded holds the answers that matched a question of the exam.
	Graded model.Answers
	// Unknown lists answered question ids that are not part of the exam.
	Unknown []uuid.UUID
}

// Grade scores answers against the exam's questions. An exact match on the
// correct option id is correct, any other value is incorrect, and unanswered
// questions count toward neither. The score is taken over all questions of
// the exam and is 0 when there are none.
func Grade(questions []model.Question, answers model.Answers) GradeResult {
	res := GradeResult{
		Total:  len(questions),
		Review: make([]model.QuestionReview, 0, len(questions)),
		Graded: make(model.Answers, len(answers)),
	}

	known := make(map[uuid.UUID]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}

		review := model.QuestionReview{
			QuestionID:   q.ID,
			Position:     q.Position,
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectOptionID - 1,
		}

		if selected, ok := answers[q.ID]; ok {
			idx := selected - 1
			review.SelectedIndex = &idx
			review.IsCorrect = selected == q.CorrectOptionID
			if review.IsCorrect {
				res.Correct++
			} else {
				res.Incorrect++
			}
			res.Graded[q.ID] = selected
		}

		res.Review = append(res.Review, review)
	}

	for qID := range answers {
		if _, ok := known[qID]; !ok {
			res.Unknown = append(res.Unknown, qID)
		}
	}

	if res.Total > 0 {
		res.Score = float64(res.Correct) / float64(res.Total) * 100
	}
	return res
}
