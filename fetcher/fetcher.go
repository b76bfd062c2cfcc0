package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nijaru/vidqa/config"
	"github.com/nijaru/vidqa/errors"
	"github.com/sirupsen/logrus"
)

const (
	videoFormat  = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	cookieHeader = "# Netscape HTTP Cookie File"
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Runner executes a command and returns its stderr on failure.
type Runner func(ctx context.Context, name string, args ...string) error

// Fetcher downloads remote videos with yt-dlp.
type Fetcher struct {
	binaryPath string
	proxy      string
	cookies    string
	timeout    time.Duration
	tempDir    string
	run        Runner
	logger     *logrus.Entry
}

func New(cfg config.FetchConfig, tempDir string, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		binaryPath: cfg.YtDlpPath,
		proxy:      cfg.Proxy,
		cookies:    cfg.Cookies,
		timeout:    cfg.Timeout,
		tempDir:    tempDir,
		run:        runCommand,
		logger:     logger.WithField("component", "fetcher"),
	}
}

// WithRunner swaps the command runner, for tests.
func (f *Fetcher) WithRunner(r Runner) *Fetcher {
	f.run = r
	return f
}

// Fetch downloads url into dest. Any error means no file was produced.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	const op = "Fetcher.Fetch"

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	log := f.logger.WithField("url", url)

	args := []string{
		"-f", videoFormat,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-check-certificate",
		"--user-agent", userAgent,
		"-o", dest,
	}
	if f.proxy != "" {
		args = append(args, "--proxy", f.proxy)
		log.Info("Using proxy for video download")
	}

	if f.cookies != "" {
		cookieFile, err := f.writeCookies()
		if err != nil {
			log.WithError(err).Error("Failed to create cookie file")
		} else {
			defer os.Remove(cookieFile)
			args = append(args, "--cookies", cookieFile)
		}
	}

	args = append(args, url)

	log.Info("Starting video download")
	if err := f.run(ctx, f.binaryPath, args...); err != nil {
		log.WithError(err).Error("Video download failed")
		os.Remove(dest)
		return errors.InvalidInput(op, err, "Failed to download video")
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		os.Remove(dest)
		return errors.InvalidInput(op, err, "Failed to download video")
	}

	log.WithField("bytes", info.Size()).Info("Video download completed")
	return nil
}

func (f *Fetcher) writeCookies() (string, error) {
	if !strings.HasPrefix(f.cookies, cookieHeader) {
		f.logger.Warn("Cookies do not look like a Netscape cookie file")
	}

	file, err := os.CreateTemp(f.tempDir, "cookies-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := file.WriteString(f.cookies); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
