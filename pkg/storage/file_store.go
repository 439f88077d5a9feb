package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the static path uploaded files are served under.
const URLPrefix = "/uploads"

// FileStore saves uploaded files to disk under a base directory and serves
// them back by path under the /uploads static prefix.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the directory files are written to.
func (f *FileStore) BasePath() string {
	return f.basePath
}

// Save writes the upload under a unique name and returns its serving path.
func (f *FileStore) Save(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(safeFilename(filename)))
	target := filepath.Join(f.basePath, name)

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return URLPrefix + "/" + name, nil
}

// Delete removes the file behind a serving path. Missing files are not an
// error.
func (f *FileStore) Delete(_ context.Context, url string) error {
	name := path.Base(strings.TrimSpace(url))
	if name == "" || name == "." || name == "/" {
		return fmt.Errorf("invalid file url %q", url)
	}
	target := filepath.Join(f.basePath, name)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	return name
}
