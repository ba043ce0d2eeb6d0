package model

import (
	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of options every question carries.
const OptionsPerQuestion = 5

// Question is a single multiple-choice question. CorrectOptionID is 1-based.
type Question struct {
	ID              uuid.UUID `json:"id"`
	ExamID          uuid.UUID `json:"exam_id"`
	Position        int       `json:"position"`
	Text            string    `json:"text"`
	Options         []string  `json:"options"`
	CorrectOptionID int       `json:"-"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Text            string   `json:"text" binding:"required,min=1,max=2000"`
	Options         []string `json:"options" binding:"required,len=5,dive,required,max=500"`
	CorrectOptionID int      `json:"correct_option_id" binding:"required,answer_option"`
}

// AddQuestionsRequest adds several questions in order.
type AddQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
