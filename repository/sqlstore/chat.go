package sqlstore

import (
	"context"
	"time"

	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
)

const (
	appendChatMessageQuery = `
        INSERT INTO chat_messages (video_id, sender, text, timestamp)
        VALUES (?, ?, ?, ?)
        RETURNING id
    `

	listChatMessagesQuery = `
        SELECT id, video_id, sender, text, timestamp
        FROM chat_messages
        WHERE video_id = ?
        ORDER BY timestamp, id
    `
)

func (s *Store) AppendChatMessage(ctx context.Context, videoID string, sender models.Sender, text string) (*models.ChatMessage, error) {
	const op = "sqlstore.AppendChatMessage"

	if !sender.Valid() {
		return nil, errors.InvalidInput(op, nil, "unknown message sender")
	}

	msg := &models.ChatMessage{
		VideoID:   videoID,
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}

	query := s.db.Rebind(appendChatMessageQuery)
	err := withLockRetry(ctx, func() error {
		return s.db.QueryRowxContext(ctx, query, msg.VideoID, string(msg.Sender), msg.Text, msg.Timestamp).Scan(&msg.ID)
	})
	if err != nil {
		return nil, errors.Storage(op, err, "Failed to save chat message")
	}
	return msg, nil
}

func (s *Store) ListChatMessages(ctx context.Context, videoID string) ([]*models.ChatMessage, error) {
	const op = "sqlstore.ListChatMessages"

	var messages []*models.ChatMessage
	if err := s.db.SelectContext(ctx, &messages, s.db.Rebind(listChatMessagesQuery), videoID); err != nil {
		return nil, errors.Storage(op, err, "Failed to list chat messages")
	}
	return messages, nil
}
