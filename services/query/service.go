package query

import (
	"context"

	"github.com/nijaru/vidqa/ai"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/logger"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/repository"
	"github.com/nijaru/vidqa/retry"
	"github.com/nijaru/vidqa/services/video"
	"github.com/nijaru/vidqa/transcription"
	"github.com/nijaru/vidqa/validation"
	"github.com/sirupsen/logrus"
)

const quizPrompt = `Generate a quiz with 5 multiple-choice questions based on this video.
Each question has exactly 4 options and correct_answer is the zero-based
index of the correct option (0-3).`

type Service interface {
	// Ask records the question, answers it from the video and records the
	// answer. A failed answer leaves the question in the log.
	Ask(ctx context.Context, ownerID int64, videoID, question string) (*models.Answer, error)
	GenerateQuiz(ctx context.Context, ownerID int64, videoID string) (*models.Quiz, error)
	History(ctx context.Context, ownerID int64, videoID string) ([]*models.ChatMessage, error)
}

type service struct {
	videos    repository.VideoRepository
	chats     repository.ChatRepository
	backend   ai.Backend
	retry     *retry.Executor
	validator *validation.Validator
	logger    *logrus.Entry
}

func NewService(
	videos repository.VideoRepository,
	chats repository.ChatRepository,
	backend ai.Backend,
	executor *retry.Executor,
	validator *validation.Validator,
	log *logrus.Logger,
) Service {
	return &service{
		videos:    videos,
		chats:     chats,
		backend:   backend,
		retry:     executor,
		validator: validator,
		logger:    log.WithField("component", "query"),
	}
}

// ready loads a completed video the owner may query.
func (s *service) ready(ctx context.Context, op string, ownerID int64, videoID string) (*models.Video, error) {
	v, err := video.Owned(ctx, s.videos, ownerID, videoID)
	if err != nil {
		return nil, err
	}
	if !v.IsCompleted() || v.AIRef == nil {
		return nil, errors.NotReady(op, nil, "Video is not ready yet")
	}
	return v, nil
}

func (s *service) Ask(ctx context.Context, ownerID int64, videoID, question string) (*models.Answer, error) {
	const op = "QueryService.Ask"

	if err := s.validator.ValidateQuestion(question); err != nil {
		return nil, err
	}

	v, err := s.ready(ctx, op, ownerID, videoID)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"video_id":   videoID,
		"request_id": logger.RequestID(ctx),
	})

	if _, err := s.chats.AppendChatMessage(ctx, videoID, models.SenderUser, question); err != nil {
		return nil, err
	}

	parts := make([]string, 0, 2)
	if transcript := v.TranscriptText(); transcript != "" {
		parts = append(parts, "Transcript: "+transcript)
	}
	parts = append(parts, "Question: "+question)

	text, err := retry.Do(ctx, s.retry, retry.Interactive, "ai.Ask", func(ctx context.Context) (string, error) {
		return s.backend.Generate(ctx, ai.GenerateRequest{Ref: v.AIRef, Parts: parts})
	})
	if err != nil {
		log.WithError(err).Error("Q&A failed")
		return nil, errors.Upstream(op, err)
	}

	if _, err := s.chats.AppendChatMessage(ctx, videoID, models.SenderAssistant, text); err != nil {
		return nil, err
	}

	cited := transcription.ExtractTimestamps(text)
	return &models.Answer{
		Text:       text,
		Timestamps: transcription.Grounded(cited, transcription.Parse(v.TranscriptText())),
	}, nil
}

func (s *service) GenerateQuiz(ctx context.Context, ownerID int64, videoID string) (*models.Quiz, error) {
	const op = "QueryService.GenerateQuiz"

	v, err := s.ready(ctx, op, ownerID, videoID)
	if err != nil {
		return nil, err
	}

	parts := []string{quizPrompt}
	if transcript := v.TranscriptText(); transcript != "" {
		parts = append(parts, "Transcript context: "+transcript)
	}

	raw, err := retry.Do(ctx, s.retry, retry.Default, "ai.GenerateQuiz", func(ctx context.Context) (string, error) {
		return s.backend.Generate(ctx, ai.GenerateRequest{
			Ref:    v.AIRef,
			Parts:  parts,
			Schema: ai.SchemaQuiz,
		})
	})
	if err != nil {
		s.logger.WithError(err).WithField("video_id", videoID).Error("Quiz generation failed")
		return nil, errors.Upstream(op, err)
	}

	quiz, err := models.ParseQuiz(raw)
	if err != nil {
		return nil, errors.Malformed(op, err, "Quiz response did not match the expected format")
	}
	return quiz, nil
}

func (s *service) History(ctx context.Context, ownerID int64, videoID string) ([]*models.ChatMessage, error) {
	if _, err := video.Owned(ctx, s.videos, ownerID, videoID); err != nil {
		return nil, err
	}
	return s.chats.ListChatMessages(ctx, videoID)
}
