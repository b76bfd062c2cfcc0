package ai

import (
	"context"
	"io"

	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
)

// Schema names a structured response shape the backend should produce.
type Schema int

const (
	SchemaNone Schema = iota
	SchemaTranscript
	SchemaQuiz
)

type Media struct {
	Reader      io.Reader
	MIMEType    string
	DisplayName string
}

type GenerateRequest struct {
	Ref *models.AIReference
	// Parts are text parts sent after the media, in order.
	Parts  []string
	Schema Schema
}

// Backend is a multimodal model that can ingest a video once and answer
// prompts about it. Implementations return Transient errors for rate
// limiting and Terminal errors for everything else.
type Backend interface {
	RegisterMedia(ctx context.Context, media Media) (*models.AIReference, error)
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Unconfigured is used when no API key is set. Every call fails with a
// Configuration error.
type Unconfigured struct{}

func (Unconfigured) RegisterMedia(ctx context.Context, media Media) (*models.AIReference, error) {
	return nil, errors.Configuration("ai.RegisterMedia", nil, "AI backend is not configured")
}

func (Unconfigured) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return "", errors.Configuration("ai.Generate", nil, "AI backend is not configured")
}
