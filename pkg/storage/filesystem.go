package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStorage persists files on disk under a base directory. It backs team
// file uploads when Cloudinary is not configured.
type LocalStorage struct {
	baseDir string
	baseURL string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
// baseURL is the public prefix under which baseDir is served.
func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

// Upload copies from r into a uniquely named file under a dated sub directory.
func (s *LocalStorage) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := filepath.ToSlash(filepath.Join(
		time.Now().UTC().Format("2006/01/02"),
		uuid.NewString()+"-"+sanitizeName(filename),
	))
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	size, err := io.Copy(file, r)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload stream: %w", err)
	}
	return &Object{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
		Size:        size,
	}, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(key string) error {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

func sanitizeName(raw string) string {
	raw = filepath.Base(raw)
	if raw == "" || raw == "." || raw == "/" {
		return "file"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[len(result)-100:]
	}
	return result
}
