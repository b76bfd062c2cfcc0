package video

import (
	"context"
	"io"

	"github.com/nijaru/vidqa/models"
)

type Service interface {
	// Upload stores an uploaded file and queues it for processing.
	Upload(ctx context.Context, ownerID int64, filename string, r io.Reader) (*models.Video, error)

	// FetchURL downloads a remote video and queues it for processing. A
	// failed download creates no record.
	FetchURL(ctx context.Context, ownerID int64, url string) (*models.Video, error)

	// Statuses lists the status of every video the owner has.
	Statuses(ctx context.Context, ownerID int64) ([]models.VideoStatus, error)

	// Get returns a video the owner may view and a URL to play it from.
	Get(ctx context.Context, ownerID int64, id string) (*models.Video, string, error)

	// Process runs the pipeline for one pending video. The record always
	// ends completed or failed; the error is informational.
	Process(ctx context.Context, id string) error

	// Resume runs once at startup, before anything is dispatched. It fails
	// every video left in processing and requeues pending ones.
	Resume(ctx context.Context) error
}

// Dispatcher schedules Process runs outside the caller's request.
type Dispatcher interface {
	Dispatch(ctx context.Context, id string)
}

// Fetcher downloads a remote video to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

type Config struct {
	// TempDir holds fetched videos until they are stored
	TempDir string `json:"temp_dir"`
}
