package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
)

// LocalGateway keeps videos on disk under root/{owner}/{name} and serves
// them from a static URL prefix.
type LocalGateway struct {
	root      string
	urlPrefix string
}

func NewLocalGateway(root, urlPrefix string) *LocalGateway {
	return &LocalGateway{
		root:      root,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}
}

func (g *LocalGateway) Store(ctx context.Context, r io.Reader, ownerID int64, name string) (models.Locator, error) {
	const op = "LocalGateway.Store"

	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return models.Locator{}, errors.InvalidInput(op, nil, "invalid file name")
	}

	dir := filepath.Join(g.root, fmt.Sprint(ownerID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.Locator{}, errors.Storage(op, err, "failed to create upload directory")
	}

	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return models.Locator{}, errors.Storage(op, err, "failed to create file")
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return models.Locator{}, errors.Storage(op, err, "failed to write file")
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return models.Locator{}, errors.Storage(op, err, "failed to write file")
	}

	return models.LocalLocator(dst), nil
}

func (g *LocalGateway) ResolveAccessURL(ctx context.Context, loc models.Locator) string {
	if loc.Path == "" {
		return ""
	}
	rel, err := filepath.Rel(g.root, loc.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return path.Join(g.urlPrefix, filepath.ToSlash(rel))
}

func (g *LocalGateway) Open(ctx context.Context, loc models.Locator) (io.ReadCloser, error) {
	const op = "LocalGateway.Open"

	if loc.Path == "" {
		return nil, errors.Storage(op, nil, "video is not stored locally")
	}
	f, err := os.Open(loc.Path)
	if err != nil {
		return nil, errors.Storage(op, err, "failed to open video file")
	}
	return f, nil
}
