package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/nijaru/vidqa/config"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "data", "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newVideo(owner int64, loc models.Locator) *models.Video {
	return &models.Video{
		ID:       uuid.NewString(),
		OwnerID:  owner,
		Title:    "clip.mp4",
		Filename: "clip.mp4",
		Locator:  loc,
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := newVideo(7, models.LocalLocator("static/uploads/7/clip.mp4"))
	require.NoError(t, store.Create(ctx, video))

	got, err := store.Get(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(7), got.OwnerID)
	assert.Equal(t, "static/uploads/7/clip.mp4", got.Locator.Path)
	assert.Empty(t, got.Locator.Key)
	assert.Nil(t, got.Transcript)
	assert.Nil(t, got.AIRef)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateRejectsAmbiguousLocator(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Create(ctx, newVideo(1, models.Locator{Path: "a.mp4", Key: "uploads/1/a.mp4"}))
	assert.Equal(t, errors.KindBadRequest, errors.KindOf(err))

	err = store.Create(ctx, newVideo(1, models.Locator{}))
	assert.Equal(t, errors.KindBadRequest, errors.KindOf(err))
}

func TestSchemaEnforcesSingleLocator(t *testing.T) {
	store := newTestStore(t)

	_, err := store.db.Exec(`INSERT INTO videos (id, owner_id, title, filename, file_path, s3_key, status, created_at, updated_at)
        VALUES ('x', 1, 't', 'f', 'a', 'b', 'pending', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := newVideo(1, models.ObjectLocator("uploads/1/clip.mp4"))
	require.NoError(t, store.Create(ctx, video))

	// pending cannot jump to completed
	transcript := "[0.00s -> 2.50s] Hello world"
	ref := &models.AIReference{Name: "files/ref-A", URI: "https://example/ref-A", MIMEType: "video/mp4"}
	err := store.UpdateStatus(ctx, video.ID, models.StatusCompleted, &transcript, ref)
	assert.Equal(t, errors.KindConflict, errors.KindOf(err))

	require.NoError(t, store.UpdateStatus(ctx, video.ID, models.StatusProcessing, nil, nil))

	// second claim fails
	err = store.UpdateStatus(ctx, video.ID, models.StatusProcessing, nil, nil)
	assert.Equal(t, errors.KindConflict, errors.KindOf(err))

	// completion requires both fields
	err = store.UpdateStatus(ctx, video.ID, models.StatusCompleted, &transcript, nil)
	assert.Equal(t, errors.KindBadRequest, errors.KindOf(err))

	require.NoError(t, store.UpdateStatus(ctx, video.ID, models.StatusCompleted, &transcript, ref))

	got, err := store.Get(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.Transcript)
	assert.Equal(t, transcript, *got.Transcript)
	assert.Equal(t, ref, got.AIRef)
	assert.Equal(t, "uploads/1/clip.mp4", got.Locator.Key)

	err = store.UpdateStatus(ctx, video.ID, models.StatusFailed, nil, nil)
	assert.Equal(t, errors.KindConflict, errors.KindOf(err))
}

func TestUpdateStatusFailedLeavesFieldsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := newVideo(1, models.LocalLocator("a.mp4"))
	require.NoError(t, store.Create(ctx, video))
	require.NoError(t, store.UpdateStatus(ctx, video.ID, models.StatusProcessing, nil, nil))

	transcript := "ignored"
	require.NoError(t, store.UpdateStatus(ctx, video.ID, models.StatusFailed, &transcript, nil))

	got, err := store.Get(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Nil(t, got.Transcript)
	assert.Nil(t, got.AIRef)
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := newVideo(1, models.LocalLocator("a.mp4"))
	require.NoError(t, store.Create(ctx, video))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.UpdateStatus(ctx, video.ID, models.StatusProcessing, nil, nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestListByOwnerAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newVideo(1, models.LocalLocator("a.mp4"))
	b := newVideo(1, models.LocalLocator("b.mp4"))
	c := newVideo(2, models.LocalLocator("c.mp4"))
	for _, v := range []*models.Video{a, b, c} {
		require.NoError(t, store.Create(ctx, v))
	}
	require.NoError(t, store.UpdateStatus(ctx, b.ID, models.StatusProcessing, nil, nil))

	owned, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	pending, err := store.ListByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	ids := []string{}
	for _, v := range pending {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []string{a.ID, c.ID}, ids)

	none, err := store.ListByOwner(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChatMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := newVideo(1, models.LocalLocator("a.mp4"))
	require.NoError(t, store.Create(ctx, video))

	q, err := store.AppendChatMessage(ctx, video.ID, models.SenderUser, "What is said?")
	require.NoError(t, err)
	assert.NotZero(t, q.ID)

	_, err = store.AppendChatMessage(ctx, video.ID, models.SenderAssistant, "Hello world is said.")
	require.NoError(t, err)

	_, err = store.AppendChatMessage(ctx, video.ID, models.Sender("ai"), "x")
	assert.Equal(t, errors.KindBadRequest, errors.KindOf(err))

	messages, err := store.ListChatMessages(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.SenderUser, messages[0].Sender)
	assert.Equal(t, "What is said?", messages[0].Text)
	assert.Equal(t, models.SenderAssistant, messages[1].Sender)
	assert.False(t, messages[1].Timestamp.Before(messages[0].Timestamp))
}

func TestChatMessagesCascadeOnDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := newVideo(1, models.LocalLocator("a.mp4"))
	require.NoError(t, store.Create(ctx, video))
	_, err := store.AppendChatMessage(ctx, video.ID, models.SenderUser, "hi")
	require.NoError(t, err)

	_, err = store.db.Exec(`DELETE FROM videos WHERE id = ?`, video.ID)
	require.NoError(t, err)

	messages, err := store.ListChatMessages(ctx, video.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
