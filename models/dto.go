package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	QuizQuestionCount = 5
	QuizOptionCount   = 4
)

// VideoStatus is one entry of the status polling response.
type VideoStatus struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// VideoResponse represents the API response
type VideoResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     Status `json:"status"`
	Transcript string `json:"transcript,omitempty"`
	VideoURL   string `json:"video_url,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// NewVideoResponse creates a response from a video model
func NewVideoResponse(v *Video, accessURL string) *VideoResponse {
	return &VideoResponse{
		ID:         v.ID,
		Title:      v.Title,
		Status:     v.Status,
		Transcript: v.TranscriptText(),
		VideoURL:   accessURL,
		CreatedAt:  v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

type QuestionRequest struct {
	Question string `json:"question"`
}

type Answer struct {
	Text       string    `json:"answer"`
	Timestamps []float64 `json:"timestamps"`
}

type QuizQuestion struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
}

type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

// ParseQuiz decodes a generated quiz and checks its shape. The payload may
// be a bare array of questions or an object with a "questions" field.
func ParseQuiz(raw string) (*Quiz, error) {
	raw = strings.TrimSpace(raw)
	var quiz Quiz
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &quiz.Questions); err != nil {
			return nil, fmt.Errorf("decode quiz: %w", err)
		}
	} else if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (q *Quiz) Validate() error {
	if len(q.Questions) != QuizQuestionCount {
		return fmt.Errorf("expected %d questions, got %d", QuizQuestionCount, len(q.Questions))
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Question) == "" {
			return fmt.Errorf("question %d has no text", i+1)
		}
		if len(question.Options) != QuizOptionCount {
			return fmt.Errorf("question %d: expected %d options, got %d", i+1, QuizOptionCount, len(question.Options))
		}
		if question.CorrectAnswer < 0 || question.CorrectAnswer >= QuizOptionCount {
			return fmt.Errorf("question %d: correct answer index %d out of range", i+1, question.CorrectAnswer)
		}
	}
	return nil
}
