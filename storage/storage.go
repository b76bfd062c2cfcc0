package storage

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/nijaru/vidqa/config"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/retry"
	"github.com/sirupsen/logrus"
)

const DefaultVideoContentType = "video/mp4"

// Gateway stores video blobs and hands out references to them.
type Gateway interface {
	// Store writes r for ownerID under name and returns where it landed.
	Store(ctx context.Context, r io.Reader, ownerID int64, name string) (models.Locator, error)
	// ResolveAccessURL returns a URL a client can fetch the video from, or
	// "" when none can be produced.
	ResolveAccessURL(ctx context.Context, loc models.Locator) string
	// Open streams the stored bytes back.
	Open(ctx context.Context, loc models.Locator) (io.ReadCloser, error)
}

// New picks the gateway once at startup: S3 when a bucket is configured,
// local disk otherwise.
func New(ctx context.Context, cfg config.StorageConfig, exec *retry.Executor, logger *logrus.Logger) (Gateway, error) {
	local := NewLocalGateway(cfg.UploadDir, cfg.UploadURLPrefix)
	if !cfg.UseObjectStore() {
		logger.WithField("dir", cfg.UploadDir).Info("Using local video storage")
		return local, nil
	}

	gw, err := NewS3Gateway(ctx, cfg, exec, local)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"bucket":   cfg.Bucket,
		"region":   cfg.Region,
		"endpoint": cfg.Endpoint,
	}).Info("Using S3 video storage")
	return gw, nil
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// ContentType guesses a MIME type from the file extension, falling back to
// video/mp4.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return DefaultVideoContentType
	}
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return DefaultVideoContentType
}
