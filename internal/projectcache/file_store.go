package projectcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"recomo/internal/logging"
)

// FileStore keeps entries in a JSON object on disk. An empty path makes every
// operation a no-op.
type FileStore struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]string
}

// NewFileStore opens the store at path. The file is created lazily on first Set.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "projectcache")

	s := &FileStore{
		path:    path,
		logger:  logger,
		entries: make(map[string]string),
	}
	if path == "" {
		return s
	}

	if err := s.load(); err != nil {
		logging.WarnWithContext(logger, "failed to load project cache",
			"projectcache_load_failed",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "delete or repair the cache file"),
			logging.String(logging.FieldImpact, "templates will be re-uploaded for reconstruction"))
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, bool, error) {
	if s.path == "" {
		return "", false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	return value, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.entries[key]; ok && current == value {
		return nil
	}
	s.entries[key] = value
	if err := s.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

func (s *FileStore) Remove(key string) error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	if err := s.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// Entries returns a copy of all stored entries.
func (s *FileStore) Entries() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.entries), nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	for key, value := range entries {
		if strings.TrimSpace(key) != "" && strings.TrimSpace(value) != "" {
			s.entries[key] = value
		}
	}
	s.logger.Debug("loaded project cache",
		logging.Int("entry_count", len(s.entries)),
		logging.String("path", s.path))
	return nil
}

// save writes the cache atomically. encoding/json sorts map keys, so output is deterministic.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
