package models

import "time"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

type ChatMessage struct {
	ID        int64     `json:"id" db:"id"`
	VideoID   string    `json:"video_id" db:"video_id"`
	Sender    Sender    `json:"sender" db:"sender"`
	Text      string    `json:"text" db:"text"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
