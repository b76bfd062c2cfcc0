package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/retry"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"clip.mp4", "video/mp4"},
		{"CLIP.MOV", "video/quicktime"},
		{"talk.webm", "video/webm"},
		{"noext", DefaultVideoContentType},
		{"weird.zzzunknown", DefaultVideoContentType},
		{"uploads/7/youtube_abc.mp4", "video/mp4"},
	}

	for _, tt := range tests {
		if got := ContentType(tt.name); got != tt.expected {
			t.Errorf("ContentType(%s) = %s, want %s", tt.name, got, tt.expected)
		}
	}
}

func TestLocalGatewayRoundTrip(t *testing.T) {
	root := t.TempDir()
	gw := NewLocalGateway(root, "/static/uploads/")
	ctx := context.Background()

	loc, err := gw.Store(ctx, strings.NewReader("video bytes"), 7, "clip.mp4")
	require.NoError(t, err)
	assert.True(t, loc.Valid())
	assert.False(t, loc.IsObject())
	assert.Equal(t, filepath.Join(root, "7", "clip.mp4"), loc.Path)

	assert.Equal(t, "/static/uploads/7/clip.mp4", gw.ResolveAccessURL(ctx, loc))
	assert.Equal(t, gw.ResolveAccessURL(ctx, loc), gw.ResolveAccessURL(ctx, loc))

	rc, err := gw.Open(ctx, loc)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))
}

func TestLocalGatewayStripsDirectories(t *testing.T) {
	root := t.TempDir()
	gw := NewLocalGateway(root, "/static/uploads")

	loc, err := gw.Store(context.Background(), strings.NewReader("x"), 1, "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "1", "passwd"), loc.Path)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("connection reset") }

func TestLocalGatewayWriteFailure(t *testing.T) {
	root := t.TempDir()
	gw := NewLocalGateway(root, "/static/uploads")

	_, err := gw.Store(context.Background(), failingReader{}, 1, "clip.mp4")
	assert.Equal(t, errors.KindStorage, errors.KindOf(err))
	_, statErr := os.Stat(filepath.Join(root, "1", "clip.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalGatewayOutsideRoot(t *testing.T) {
	gw := NewLocalGateway(t.TempDir(), "/static/uploads")
	assert.Empty(t, gw.ResolveAccessURL(context.Background(), models.LocalLocator("/elsewhere/a.mp4")))
	assert.Empty(t, gw.ResolveAccessURL(context.Background(), models.ObjectLocator("uploads/1/a.mp4")))
}

type mockObjectAPI struct {
	mock.Mock
	bodies []string
}

func (m *mockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(params.Body)
	m.bodies = append(m.bodies, string(data))
	args := m.Called(*params.Key, *params.ContentType)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(*params.Key)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

type mockPresigner struct {
	mock.Mock
}

func (m *mockPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	args := m.Called(*params.Key, *params.ResponseContentType, opts.Expires)
	req, _ := args.Get(0).(*v4.PresignedHTTPRequest)
	return req, args.Error(1)
}

func newTestS3Gateway(t *testing.T, api *mockObjectAPI, presigner *mockPresigner) *S3Gateway {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	exec := retry.New(logger,
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	gw := newS3Gateway(api, presigner, "videos", time.Hour, exec, NewLocalGateway(t.TempDir(), "/static/uploads"))
	gw.tempDir = t.TempDir()
	return gw
}

func TestS3GatewayStoreRetriesThrottling(t *testing.T) {
	api := &mockObjectAPI{}
	gw := newTestS3Gateway(t, api, &mockPresigner{})

	throttled := &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"}
	api.On("PutObject", "uploads/7/clip.mp4", "video/mp4").Return(nil, throttled).Once()
	api.On("PutObject", "uploads/7/clip.mp4", "video/mp4").Return(&s3.PutObjectOutput{}, nil).Once()

	// io.MultiReader hides Seek, forcing the temp-file spool.
	loc, err := gw.Store(context.Background(), io.MultiReader(strings.NewReader("video bytes")), 7, "clip.mp4")
	require.NoError(t, err)

	assert.Equal(t, models.ObjectLocator("uploads/7/clip.mp4"), loc)
	assert.Equal(t, []string{"video bytes", "video bytes"}, api.bodies)
	api.AssertExpectations(t)

	leftovers, err := os.ReadDir(gw.tempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestS3GatewayStoreTerminalFailure(t *testing.T) {
	api := &mockObjectAPI{}
	gw := newTestS3Gateway(t, api, &mockPresigner{})

	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	api.On("PutObject", "uploads/1/a.mp4", "video/mp4").Return(nil, denied).Once()

	_, err := gw.Store(context.Background(), bytes.NewReader([]byte("x")), 1, "a.mp4")
	assert.Equal(t, errors.KindStorage, errors.KindOf(err))
	api.AssertNumberOfCalls(t, "PutObject", 1)
}

func TestS3GatewayResolveAccessURL(t *testing.T) {
	presigner := &mockPresigner{}
	gw := newTestS3Gateway(t, &mockObjectAPI{}, presigner)
	ctx := context.Background()

	presigner.On("PresignGetObject", "uploads/1/a.mov", "video/quicktime", time.Hour).
		Return(&v4.PresignedHTTPRequest{URL: "https://videos.s3/uploads/1/a.mov?sig=1"}, nil)
	presigner.On("PresignGetObject", "uploads/1/broken.mp4", "video/mp4", time.Hour).
		Return(nil, fmt.Errorf("no credentials"))

	assert.Equal(t, "https://videos.s3/uploads/1/a.mov?sig=1", gw.ResolveAccessURL(ctx, models.ObjectLocator("uploads/1/a.mov")))
	assert.Empty(t, gw.ResolveAccessURL(ctx, models.ObjectLocator("uploads/1/broken.mp4")))
}

func TestS3GatewayFallsBackToLocal(t *testing.T) {
	gw := newTestS3Gateway(t, &mockObjectAPI{}, &mockPresigner{})
	ctx := context.Background()

	loc, err := gw.local.Store(ctx, strings.NewReader("old"), 3, "old.mp4")
	require.NoError(t, err)

	assert.Equal(t, "/static/uploads/3/old.mp4", gw.ResolveAccessURL(ctx, loc))
	rc, err := gw.Open(ctx, loc)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "old", string(data))
}

func TestS3GatewayOpen(t *testing.T) {
	api := &mockObjectAPI{}
	gw := newTestS3Gateway(t, api, &mockPresigner{})

	api.On("GetObject", "uploads/1/a.mp4").
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("remote"))}, nil)

	rc, err := gw.Open(context.Background(), models.ObjectLocator("uploads/1/a.mp4"))
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "remote", string(data))
}
