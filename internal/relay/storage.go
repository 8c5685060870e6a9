package relay

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recomo/internal/preflight"
)

// Storage writes uploaded files below a base directory, one subdirectory per UTC day.
type Storage struct {
	base string
	now  func() time.Time
}

// NewStorage returns storage rooted at base.
func NewStorage(base string, now func() time.Time) *Storage {
	if now == nil {
		now = time.Now
	}
	return &Storage{base: base, now: now}
}

// Base returns the storage root.
func (s *Storage) Base() string { return s.base }

// Preflight creates the storage root if needed and verifies it is a writable directory.
func (s *Storage) Preflight() error {
	if strings.TrimSpace(s.base) == "" {
		return errors.New("storage base path is empty")
	}
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	return preflight.CheckDirectoryAccess("storage root", s.base).Err()
}

// Dir returns today's target directory.
func (s *Storage) Dir() string {
	return filepath.Join(s.base, s.now().UTC().Format(time.DateOnly))
}

// Save copies one uploaded part into today's directory under its base name
// and returns the stored path.
func (s *Storage) Save(header *multipart.FileHeader) (string, error) {
	name := sanitizeFilename(header.Filename)
	if name == "" {
		return "", fmt.Errorf("invalid file name %q", header.Filename)
	}
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", name, err)
	}
	defer src.Close()

	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return target, nil
}

// sanitizeFilename keeps only the final path element of a client-supplied name.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	switch name {
	case ".", "..", "/", "":
		return ""
	}
	return name
}
