package models

import (
	"errors"
	"time"
)

// ErrEmptyPaper возвращается для работы без вопросов.
var ErrEmptyPaper = errors.New("paper has no questions")

// QuestionType - формат вопроса.
type QuestionType string

const (
	QuestionMCQ             QuestionType = "Multiple Choice Question"
	QuestionAssertionReason QuestionType = "Assertion-Reason"
	QuestionVSA             QuestionType = "Very Short Answer"
	QuestionSA              QuestionType = "Short Answer"
	QuestionLA              QuestionType = "Long Answer"
	QuestionNumerical       QuestionType = "Numerical"
	QuestionCaseStudy       QuestionType = "Case Study Based"
	QuestionParagraph       QuestionType = "Paragraph Based"
	QuestionDiagram         QuestionType = "Diagram/Drawing"
)

// BlueprintItem - строка плана работы: глава, тема, тип и количество вопросов.
type BlueprintItem struct {
	ID                string       `json:"id" validate:"required"`
	Chapter           string       `json:"chapter" validate:"required"`
	Topic             string       `json:"topic"`
	Type              QuestionType `json:"type" validate:"required"`
	Count             int          `json:"count" validate:"required,gt=0"`
	MarksPerQuestion  int          `json:"marks_per_question" validate:"required,gt=0"`
	GenerateImage     bool         `json:"generate_image"`
	UserUploadedImage string       `json:"user_uploaded_image,omitempty"`
}

// GeneratedQuestion - вопрос, полученный от генератора.
type GeneratedQuestion struct {
	ID           string       `json:"id"`
	BlueprintID  string       `json:"blueprint_id,omitempty"`
	Type         QuestionType `json:"type"`
	Marks        int          `json:"marks"`
	QuestionText string       `json:"question_text"`
	Options      []string     `json:"options,omitempty"`
	AnswerKey    string       `json:"answer_key,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Section      string       `json:"section,omitempty"`
}

// PaperHeader - шапка экзаменационной работы.
type PaperHeader struct {
	SchoolName          string `json:"school_name"`
	Location            string `json:"location,omitempty"`
	ExamName            string `json:"exam_name"`
	ClassLevel          string `json:"class_level"`
	Subject             string `json:"subject"`
	TimeAllowed         string `json:"time_allowed"`
	MaxMarks            int    `json:"max_marks"`
	GeneralInstructions string `json:"general_instructions"`
}

// SavedPaper - работа в архиве пользователя.
type SavedPaper struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	UserName   string              `json:"user_name"`
	UserEmail  string              `json:"user_email"`
	CreatedAt  time.Time           `json:"created_at"`
	Header     *PaperHeader        `json:"header,omitempty"`
	Questions  []GeneratedQuestion `json:"questions"`
	Blueprint  []BlueprintItem     `json:"blueprint,omitempty"`
	ClassLevel string              `json:"class_level"`
	Subject    string              `json:"subject"`
}

// Validate проверяет структурную целостность сохранённой работы.
func (p SavedPaper) Validate() error {
	if len(p.Questions) == 0 {
		return ErrEmptyPaper
	}
	return nil
}

// OwnerRef возвращает ссылку на владельца работы.
func (p SavedPaper) OwnerRef() UserRef {
	return UserRef{ID: p.UserID, Email: p.UserEmail}
}

// TotalMarks считает сумму баллов по вопросам.
func TotalMarks(questions []GeneratedQuestion) int {
	total := 0
	for _, q := range questions {
		total += q.Marks
	}
	return total
}

// GenerationRequest - входные данные для генерации работы.
type GenerationRequest struct {
	Blueprint  []BlueprintItem `json:"blueprint" validate:"required,min=1,dive"`
	ClassLevel string          `json:"class_level" validate:"required"`
	Subject    string          `json:"subject" validate:"required"`
	Context    string          `json:"context,omitempty"`
	Header     PaperHeader     `json:"header"`
}
