// Package store persists ordered JSON records under a cache directory.
// Writes go to a temp file first and land via rename, so a concurrent reader
// sees either the old or the new file, never a partial one.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store is a key -> JSON-array file store
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates the cache directory if needed and returns a store rooted there
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load reads the records for key into target. A missing or unreadable file
// leaves target untouched and returns nil: the store tolerates being empty
// on first run, and a corrupt file must not take the process down.
func (s *Store) Load(key string, target interface{}) error {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.logger.Warn("could not read store file", zap.String("key", key), zap.Error(err))
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		s.logger.Warn("could not decode store file", zap.String("key", key), zap.Error(err))
		return nil
	}
	return nil
}

// Save writes the records for key as a whole-file rewrite with atomic rename
func (s *Store) Save(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal records for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file for %s: %w", key, err)
	}
	return nil
}
