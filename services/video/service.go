package video

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nijaru/vidqa/ai"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/logger"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/repository"
	"github.com/nijaru/vidqa/retry"
	"github.com/nijaru/vidqa/storage"
	"github.com/nijaru/vidqa/validation"
	"github.com/sirupsen/logrus"
)

type Repository = repository.VideoRepository

type service struct {
	repo       Repository
	storage    storage.Gateway
	backend    ai.Backend
	fetcher    Fetcher
	dispatcher Dispatcher
	retry      *retry.Executor
	validator  *validation.Validator
	config     Config
	logger     *logrus.Entry
}

func NewService(
	repo Repository,
	gateway storage.Gateway,
	backend ai.Backend,
	fetcher Fetcher,
	dispatcher Dispatcher,
	executor *retry.Executor,
	validator *validation.Validator,
	config Config,
	log *logrus.Logger,
) Service {
	return &service{
		repo:       repo,
		storage:    gateway,
		backend:    backend,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		retry:      executor,
		validator:  validator,
		config:     config,
		logger:     log.WithField("component", "video"),
	}
}

func (s *service) Upload(ctx context.Context, ownerID int64, filename string, r io.Reader) (*models.Video, error) {
	const op = "VideoService.Upload"

	name := validation.SanitizeFilename(filename)
	if name == "" {
		return nil, errors.InvalidInput(op, nil, "No selected file")
	}

	stored := uniqueName(name)
	loc, err := s.storage.Store(ctx, r, ownerID, stored)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, ownerID, name, stored, loc)
}

// uniqueName prefixes name with a random hex id so repeated uploads of the
// same file never share a locator.
func uniqueName(name string) string {
	return fmt.Sprintf("%s_%s", newHexID(), name)
}

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *service) FetchURL(ctx context.Context, ownerID int64, url string) (*models.Video, error) {
	const op = "VideoService.FetchURL"

	url = strings.TrimSpace(url)
	if err := s.validator.ValidateURL(url); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("youtube_%s.mp4", newHexID())
	dest := filepath.Join(s.config.TempDir, name)
	defer os.Remove(dest)

	if err := s.fetcher.Fetch(ctx, url, dest); err != nil {
		return nil, err
	}

	f, err := os.Open(dest)
	if err != nil {
		return nil, errors.Storage(op, err, "Failed to read downloaded video")
	}
	defer f.Close()

	loc, err := s.storage.Store(ctx, f, ownerID, name)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, ownerID, "YouTube: "+url, name, loc)
}

func (s *service) create(ctx context.Context, ownerID int64, title, filename string, loc models.Locator) (*models.Video, error) {
	video := &models.Video{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Title:    title,
		Filename: filename,
		Locator:  loc,
		Status:   models.StatusPending,
	}
	if err := s.repo.Create(ctx, video); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"video_id":   video.ID,
		"owner_id":   ownerID,
		"locator":    loc.String(),
		"request_id": logger.RequestID(ctx),
	}).Info("Video created, dispatching processing")

	s.dispatcher.Dispatch(ctx, video.ID)
	return video, nil
}

func (s *service) Statuses(ctx context.Context, ownerID int64) ([]models.VideoStatus, error) {
	videos, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.VideoStatus, 0, len(videos))
	for _, v := range videos {
		statuses = append(statuses, models.VideoStatus{ID: v.ID, Status: v.Status})
	}
	return statuses, nil
}

func (s *service) Get(ctx context.Context, ownerID int64, id string) (*models.Video, string, error) {
	video, err := Owned(ctx, s.repo, ownerID, id)
	if err != nil {
		return nil, "", err
	}
	return video, s.storage.ResolveAccessURL(ctx, video.Locator), nil
}

// Owned loads a video and checks that ownerID may access it.
func Owned(ctx context.Context, repo Repository, ownerID int64, id string) (*models.Video, error) {
	const op = "VideoService.Owned"

	if id == "" {
		return nil, errors.InvalidInput(op, nil, "ID is required")
	}

	video, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.OwnerID != ownerID {
		return nil, errors.Forbidden(op, nil, "Unauthorized")
	}
	return video, nil
}

func (s *service) Resume(ctx context.Context) error {
	stuck, err := s.repo.ListByStatus(ctx, models.StatusProcessing)
	if err != nil {
		return err
	}
	// Runs live only in this process, so nothing still in processing at
	// startup can finish.
	for _, v := range stuck {
		log := s.logger.WithField("video_id", v.ID)
		if err := s.repo.UpdateStatus(ctx, v.ID, models.StatusFailed, nil, nil); err != nil {
			log.WithError(err).Error("Failed to mark orphaned video as failed")
			continue
		}
		log.Warn("Marked orphaned video as failed")
	}

	pending, err := s.repo.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return err
	}
	for _, v := range pending {
		s.dispatcher.Dispatch(ctx, v.ID)
	}

	s.logger.WithField("pending", len(pending)).Info("Resumed pending videos")
	return nil
}
