package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
	pkgerrors "github.com/pkg/errors"
)

const videoColumns = `id, owner_id, title, filename, file_path, s3_key, status, transcript,
       ai_file_name, ai_file_uri, ai_mime_type, created_at, updated_at`

const (
	createVideoQuery = `
        INSERT INTO videos (
            id, owner_id, title, filename, file_path, s3_key, status,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	getVideoQuery = `SELECT ` + videoColumns + ` FROM videos WHERE id = ?`

	listByOwnerQuery = `SELECT ` + videoColumns + ` FROM videos WHERE owner_id = ? ORDER BY created_at DESC`

	listByStatusQuery = `SELECT ` + videoColumns + ` FROM videos WHERE status = ? ORDER BY created_at`

	getStatusQuery = `SELECT status FROM videos WHERE id = ?`

	completeVideoQuery = `
        UPDATE videos SET
            status = ?,
            transcript = ?,
            ai_file_name = ?,
            ai_file_uri = ?,
            ai_mime_type = ?,
            updated_at = ?
        WHERE id = ? AND status = ?
    `

	setStatusQuery = `UPDATE videos SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
)

type videoRow struct {
	ID         string         `db:"id"`
	OwnerID    int64          `db:"owner_id"`
	Title      string         `db:"title"`
	Filename   string         `db:"filename"`
	FilePath   sql.NullString `db:"file_path"`
	S3Key      sql.NullString `db:"s3_key"`
	Status     string         `db:"status"`
	Transcript sql.NullString `db:"transcript"`
	AIFileName sql.NullString `db:"ai_file_name"`
	AIFileURI  sql.NullString `db:"ai_file_uri"`
	AIMIMEType sql.NullString `db:"ai_mime_type"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r *videoRow) toModel() *models.Video {
	video := &models.Video{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		Filename:  r.Filename,
		Locator:   models.Locator{Path: r.FilePath.String, Key: r.S3Key.String},
		Status:    models.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Transcript.Valid {
		transcript := r.Transcript.String
		video.Transcript = &transcript
	}
	if r.AIFileName.Valid {
		video.AIRef = &models.AIReference{
			Name:     r.AIFileName.String,
			URI:      r.AIFileURI.String,
			MIMEType: r.AIMIMEType.String,
		}
	}
	return video
}

func (s *Store) Create(ctx context.Context, video *models.Video) error {
	const op = "sqlstore.Create"

	if !video.Locator.Valid() {
		return errors.InvalidInput(op, nil, "exactly one of file path and object key must be set")
	}

	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now
	if video.Status == "" {
		video.Status = models.StatusPending
	}

	query := s.db.Rebind(createVideoQuery)
	err := withLockRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query,
			video.ID,
			video.OwnerID,
			video.Title,
			video.Filename,
			nullString(video.Locator.Path),
			nullString(video.Locator.Key),
			string(video.Status),
			video.CreatedAt,
			video.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return errors.Storage(op, err, "Failed to save video")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Video, error) {
	const op = "sqlstore.Get"

	var row videoRow
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(getVideoQuery), id).StructScan(&row)
	if pkgerrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(op, nil, "Video not found")
	}
	if err != nil {
		return nil, errors.Storage(op, err, "Failed to query video")
	}
	return row.toModel(), nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Video, error) {
	return s.list(ctx, "sqlstore.ListByOwner", listByOwnerQuery, ownerID)
}

func (s *Store) ListByStatus(ctx context.Context, status models.Status) ([]*models.Video, error) {
	return s.list(ctx, "sqlstore.ListByStatus", listByStatusQuery, string(status))
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]*models.Video, error) {
	var rows []videoRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Storage(op, err, "Failed to list videos")
	}
	videos := make([]*models.Video, 0, len(rows))
	for i := range rows {
		videos = append(videos, rows[i].toModel())
	}
	return videos, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status, transcript *string, ref *models.AIReference) error {
	const op = "sqlstore.UpdateStatus"

	if status == models.StatusCompleted && (transcript == nil || ref == nil) {
		return errors.InvalidInput(op, nil, "completed videos need both a transcript and an AI reference")
	}

	return withLockRetry(ctx, func() error {
		return WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
			var current string
			err := tx.GetContext(ctx, &current, tx.Rebind(getStatusQuery), id)
			if pkgerrors.Is(err, sql.ErrNoRows) {
				return errors.NotFound(op, nil, "Video not found")
			}
			if err != nil {
				return errors.Storage(op, err, "Failed to read video status")
			}

			from := models.Status(current)
			if !from.CanTransition(status) {
				return errors.Conflict(op, nil, fmt.Sprintf("cannot move video from %s to %s", from, status))
			}

			now := time.Now().UTC()
			var res sql.Result
			if status == models.StatusCompleted {
				res, err = tx.ExecContext(ctx, tx.Rebind(completeVideoQuery),
					string(status), *transcript, ref.Name, ref.URI, ref.MIMEType, now, id, current)
			} else {
				res, err = tx.ExecContext(ctx, tx.Rebind(setStatusQuery), string(status), now, id, current)
			}
			if err != nil {
				return errors.Storage(op, err, "Failed to update video status")
			}

			n, err := res.RowsAffected()
			if err != nil {
				return errors.Storage(op, err, "Failed to update video status")
			}
			if n == 0 {
				return errors.Conflict(op, nil, fmt.Sprintf("video changed status concurrently, expected %s", from))
			}
			return nil
		})
	})
}
