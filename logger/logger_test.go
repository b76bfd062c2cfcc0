package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, out, err := NewLogger(Options{Dir: dir, Level: "debug", Production: true})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log.WithField("video_id", "abc").Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"video_id":"abc"`)
}

func TestNewLoggerBadLevelDefaultsToInfo(t *testing.T) {
	log, _, err := NewLogger(Options{Dir: t.TempDir(), Level: "loud"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}
