package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrInvalidName = errors.New("invalid stored file name")
)

// FileStore persists uploaded blobs under generated names.
type FileStore interface {
	// Store copies r into a new blob whose name ends with ext and returns that name.
	Store(ctx context.Context, ext string, r io.Reader) (string, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// LocalStore is a FileStore over an afero filesystem rooted at the upload directory.
type LocalStore struct {
	fs     afero.Fs
	logger *zap.Logger
}

// NewLocalStore creates a store writing to the root of fs.
func NewLocalStore(fs afero.Fs, logger *zap.Logger) *LocalStore {
	return &LocalStore{fs: fs, logger: logger}
}

// NewDiskStore creates a store rooted at dir on the local disk, creating dir if needed.
func NewDiskStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return NewLocalStore(afero.NewBasePathFs(osFs, dir), logger), nil
}

func (s *LocalStore) Store(ctx context.Context, ext string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	if err := validateName(name); err != nil {
		return "", err
	}

	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.discard(name)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		s.discard(name)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	s.logger.Debug("Stored file", zap.String("file", name))
	return name, nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := s.fs.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete file %s: %w", name, err)
	}

	s.logger.Debug("Deleted file", zap.String("file", name))
	return nil
}

// Handler serves stored files; mount it under the uploads prefix with http.StripPrefix.
func (s *LocalStore) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(s.fs))
}

func (s *LocalStore) discard(name string) {
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove partial file", zap.String("file", name), zap.Error(err))
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
