package repository

import (
	"context"

	"github.com/nijaru/vidqa/models"
)

type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	Get(ctx context.Context, id string) (*models.Video, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Video, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Video, error)
	// UpdateStatus moves a record to status in one transaction. transcript
	// and ref must both be set when status is completed and are ignored
	// otherwise. An illegal transition fails with a Conflict error.
	UpdateStatus(ctx context.Context, id string, status models.Status, transcript *string, ref *models.AIReference) error
	Ping(ctx context.Context) error
}

type ChatRepository interface {
	AppendChatMessage(ctx context.Context, videoID string, sender models.Sender, text string) (*models.ChatMessage, error)
	ListChatMessages(ctx context.Context, videoID string) ([]*models.ChatMessage, error)
}
