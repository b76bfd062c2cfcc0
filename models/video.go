package models

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CanTransition reports whether a record may move from s to next.
// pending -> processing -> {completed, failed}; terminal states never move.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Locator identifies where a video's bytes live. Exactly one of Path and
// Key is set.
type Locator struct {
	Path string `json:"path,omitempty"`
	Key  string `json:"key,omitempty"`
}

func LocalLocator(path string) Locator { return Locator{Path: path} }
func ObjectLocator(key string) Locator { return Locator{Key: key} }

func (l Locator) IsObject() bool { return l.Key != "" }

func (l Locator) Valid() bool {
	return (l.Path == "") != (l.Key == "")
}

func (l Locator) String() string {
	if l.IsObject() {
		return "s3://" + l.Key
	}
	return l.Path
}

// AIReference is the handle returned by the AI backend after it ingested
// the media.
type AIReference struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
}

type Video struct {
	ID         string       `json:"id"`
	OwnerID    int64        `json:"owner_id"`
	Title      string       `json:"title"`
	Filename   string       `json:"filename"`
	Locator    Locator      `json:"locator"`
	Status     Status       `json:"status"`
	Transcript *string      `json:"transcript,omitempty"`
	AIRef      *AIReference `json:"ai_ref,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (v *Video) IsPending() bool    { return v.Status == StatusPending }
func (v *Video) IsProcessing() bool { return v.Status == StatusProcessing }
func (v *Video) IsCompleted() bool  { return v.Status == StatusCompleted }
func (v *Video) IsFailed() bool     { return v.Status == StatusFailed }

func (v *Video) TranscriptText() string {
	if v.Transcript == nil {
		return ""
	}
	return *v.Transcript
}
