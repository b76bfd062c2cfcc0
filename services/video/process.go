package video

import (
	"context"
	"fmt"
	"time"

	"github.com/nijaru/vidqa/ai"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/logger"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/retry"
	"github.com/nijaru/vidqa/storage"
	"github.com/nijaru/vidqa/transcription"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const transcriptPrompt = `Transcribe the spoken audio of this video.
Return every utterance as a segment with its start and end time in seconds
from the beginning of the video and the exact words spoken.`

const markFailedTimeout = 30 * time.Second

var (
	videoProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidqa_video_processing_duration_seconds",
		Help:    "Duration of video processing in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"status"})

	videosProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidqa_videos_processed_total",
		Help: "Total number of videos processed",
	}, []string{"status"})
)

func (s *service) Process(ctx context.Context, id string) (err error) {
	const op = "VideoService.Process"
	log := s.logger.WithFields(logrus.Fields{
		"video_id":   id,
		"request_id": logger.RequestID(ctx),
	})

	video, err := s.repo.Get(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to load video")
		return err
	}
	if !video.IsPending() {
		log.WithField("status", video.Status).Info("Video is not pending, skipping")
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, id, models.StatusProcessing, nil, nil); err != nil {
		if errors.Is(err, errors.KindConflict) {
			log.Info("Video already claimed by another run")
			return nil
		}
		log.WithError(err).Error("Failed to claim video")
		return err
	}

	start := time.Now()
	outcome := models.StatusFailed
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(op, fmt.Errorf("panic: %v", r), "Processing panicked")
		}
		if outcome != models.StatusCompleted {
			s.markFailed(id, log, err)
		}
		videoProcessingDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())
		videosProcessedTotal.WithLabelValues(string(outcome)).Inc()
	}()

	log.Info("Processing video")

	ref, err := s.register(ctx, video)
	if err != nil {
		log.WithError(err).Error("Media registration failed")
		return err
	}

	transcript, err := s.transcribe(ctx, ref)
	if err != nil {
		log.WithError(err).Error("Transcription failed")
		return err
	}

	if err := s.repo.UpdateStatus(ctx, id, models.StatusCompleted, &transcript, ref); err != nil {
		log.WithError(err).Error("Failed to save transcript")
		return err
	}

	outcome = models.StatusCompleted
	log.WithField("duration", time.Since(start).String()).Info("Video processing completed")
	return nil
}

// markFailed runs on a fresh context so a cancelled or timed out run still
// reaches a terminal status.
func (s *service) markFailed(id string, log *logrus.Entry, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), markFailedTimeout)
	defer cancel()

	if err := s.repo.UpdateStatus(ctx, id, models.StatusFailed, nil, nil); err != nil {
		log.WithError(err).Error("Failed to mark video as failed")
		return
	}
	log.WithError(cause).Warn("Video marked as failed")
}

func (s *service) register(ctx context.Context, video *models.Video) (*models.AIReference, error) {
	if video.AIRef != nil {
		return video.AIRef, nil
	}

	return retry.Do(ctx, s.retry, retry.Default, "ai.RegisterMedia", func(ctx context.Context) (*models.AIReference, error) {
		rc, err := s.storage.Open(ctx, video.Locator)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		return s.backend.RegisterMedia(ctx, ai.Media{
			Reader:      rc,
			MIMEType:    storage.ContentType(video.Filename),
			DisplayName: video.Title,
		})
	})
}

func (s *service) transcribe(ctx context.Context, ref *models.AIReference) (string, error) {
	const op = "VideoService.transcribe"

	raw, err := retry.Do(ctx, s.retry, retry.Default, "ai.Transcribe", func(ctx context.Context) (string, error) {
		return s.backend.Generate(ctx, ai.GenerateRequest{
			Ref:    ref,
			Parts:  []string{transcriptPrompt},
			Schema: ai.SchemaTranscript,
		})
	})
	if err != nil {
		return "", err
	}

	segments, err := transcription.DecodeSegments(raw)
	if err != nil {
		return "", errors.Malformed(op, err, "Invalid transcript response")
	}
	return transcription.Format(segments), nil
}
