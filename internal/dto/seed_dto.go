package dto

import "time"

// SeedExamRequest imports an exam with its questions and finalized submissions.
// Answers reference questions by their position in the request.
type SeedExamRequest struct {
	ExamID      uint             `json:"exam_id" validate:"required"`
	Questions   []SeedQuestion   `json:"questions" validate:"required,min=1,dive"`
	Submissions []SeedSubmission `json:"submissions" validate:"omitempty,dive"`
}

// SeedQuestion describes one question of an imported exam.
type SeedQuestion struct {
	Position        int     `json:"position" validate:"required,gte=1"`
	Prompt          string  `json:"prompt" validate:"required"`
	Type            string  `json:"type" validate:"required,oneof=OBJECTIVE SUBJECTIVE"`
	Points          float64 `json:"points" validate:"gte=0"`
	CorrectChoice   *int    `json:"correct_choice" validate:"required_if=Type OBJECTIVE"`
	ReferenceAnswer string  `json:"reference_answer"`
}

// SeedSubmission describes one student's answers.
type SeedSubmission struct {
	StudentID   uint         `json:"student_id" validate:"required"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Answers     []SeedAnswer `json:"answers" validate:"dive"`
}

// SeedAnswer answers the question at Position.
type SeedAnswer struct {
	Position       int    `json:"position" validate:"required,gte=1"`
	SelectedChoice *int   `json:"selected_choice"`
	AnswerText     string `json:"answer_text"`
}

// SeedExamResponse reports the identifiers created by an import.
type SeedExamResponse struct {
	ExamID        uint   `json:"exam_id"`
	QuestionIDs   []uint `json:"question_ids"`
	SubmissionIDs []uint `json:"submission_ids"`
}
