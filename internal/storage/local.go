package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when a stream exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds maximum upload size")

// ErrNotFound is returned when a stored file is missing.
var ErrNotFound = errors.New("stored file not found")

// FileStorage persists attachment bytes under server-generated names.
type FileStorage interface {
	// Save writes r and returns the stored name and byte count.
	Save(ctx context.Context, originalFilename string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, storedFilename string) (io.ReadCloser, error)
	Remove(ctx context.Context, storedFilename string) error
}

// LocalStorage keeps files in a single directory.
type LocalStorage struct {
	dir      string
	maxBytes int64
}

// NewLocalStorage creates dir when missing. maxBytes <= 0 disables the size limit.
func NewLocalStorage(dir string, maxBytes int64) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, maxBytes: maxBytes}, nil
}

// StoredName builds a collision-resistant name keeping the original extension.
func StoredName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalFilename)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func (s *LocalStorage) Save(ctx context.Context, originalFilename string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	name := StoredName(originalFilename)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", name, err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write %s: %w", name, err)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("close %s: %w", name, closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		_ = os.Remove(path)
		return "", 0, ErrTooLarge
	}
	return name, written, nil
}

func (s *LocalStorage) Open(_ context.Context, storedFilename string) (io.ReadCloser, error) {
	path, err := s.path(storedFilename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Remove deletes a stored file. Missing files are not an error.
func (s *LocalStorage) Remove(_ context.Context, storedFilename string) error {
	path, err := s.path(storedFilename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) path(storedFilename string) (string, error) {
	if storedFilename == "" || storedFilename != filepath.Base(storedFilename) || strings.HasPrefix(storedFilename, ".") {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, storedFilename), nil
}
