package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/lit-quorum-client/interfaces"
)

// FileStore keeps auth contexts as JSON files under a base directory.
type FileStore struct {
	baseDir string
	log     *slog.Logger
}

// NewFileStore creates the sessions directory under baseDir if it doesn't exist.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "sessions"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		log:     log,
	}, nil
}

// Load reads the auth context stored under name.
// Returns ErrSessionKeyNotFound if the file doesn't exist.
func (s *FileStore) Load(ctx context.Context, name string) (*interfaces.AuthContext, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	filePath := s.path(name)
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrSessionKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.log.Debug("Loaded session from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return decodeAuthContext(data)
}

// Store writes auth under name, replacing any previous value. The file is only
// readable by the current user since it holds the session secret key.
func (s *FileStore) Store(ctx context.Context, name string, auth *interfaces.AuthContext) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	data, err := encodeAuthContext(auth)
	if err != nil {
		return err
	}

	filePath := s.path(name)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	s.log.Debug("Stored session in file", slog.String("path", filePath))
	return nil
}

// Available checks that the base directory still exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(s.baseDir)
	if err != nil {
		s.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.baseDir, "sessions", name+".json")
}
