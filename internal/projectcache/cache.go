package projectcache

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"recomo/internal/logging"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "recomo_project_cache_"

// Cache maps template source keys to remote project ids.
type Cache struct {
	store  KeyValueStore
	logger *slog.Logger
}

// Entry is one cached mapping.
type Entry struct {
	SourceKey string `json:"source_key"`
	ProjectID string `json:"project_id"`
}

// New wraps store. A nil store behaves as an empty in-memory cache.
func New(store KeyValueStore, logger *slog.Logger) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cache{store: store, logger: logging.NewComponentLogger(logger, "projectcache")}
}

// Store returns the underlying store.
func (c *Cache) Store() KeyValueStore { return c.store }

// CacheKey returns the namespaced storage key for sourceKey.
func CacheKey(sourceKey string) string {
	return KeyPrefix + sourceKey
}

// GetProjectID returns the cached id for sourceKey. Store read failures are
// logged and reported as a miss.
func (c *Cache) GetProjectID(sourceKey string) (string, bool) {
	sourceKey = strings.TrimSpace(sourceKey)
	if sourceKey == "" {
		return "", false
	}
	id, ok, err := c.store.Get(CacheKey(sourceKey))
	if err != nil {
		logging.WarnWithContext(c.logger, "project cache read failed",
			"projectcache_read_failed",
			logging.String(logging.FieldSourceKey, sourceKey),
			logging.Error(err),
			logging.String(logging.FieldImpact, "treating template as uncached"))
		return "", false
	}
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SetProjectID records projectID for sourceKey. Empty values are ignored.
func (c *Cache) SetProjectID(sourceKey, projectID string) error {
	sourceKey = strings.TrimSpace(sourceKey)
	projectID = strings.TrimSpace(projectID)
	if sourceKey == "" || projectID == "" {
		return nil
	}
	if err := c.store.Set(CacheKey(sourceKey), projectID); err != nil {
		return fmt.Errorf("cache project id: %w", err)
	}
	c.logger.Debug("cached project id",
		logging.String(logging.FieldSourceKey, sourceKey),
		logging.String(logging.FieldProjectID, projectID))
	return nil
}

// ClearProjectID removes the entry for sourceKey.
func (c *Cache) ClearProjectID(sourceKey string) error {
	sourceKey = strings.TrimSpace(sourceKey)
	if sourceKey == "" {
		return nil
	}
	if err := c.store.Remove(CacheKey(sourceKey)); err != nil {
		return fmt.Errorf("clear cached project id: %w", err)
	}
	c.logger.Debug("cleared cached project id", logging.String(logging.FieldSourceKey, sourceKey))
	return nil
}

// List returns all namespaced entries sorted by source key. Stores that cannot
// enumerate return an error.
func (c *Cache) List() ([]Entry, error) {
	lister, ok := c.store.(Lister)
	if !ok {
		return nil, fmt.Errorf("cache store %T cannot list entries", c.store)
	}
	raw, err := lister.Entries()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		sourceKey, found := strings.CutPrefix(key, KeyPrefix)
		if !found {
			continue
		}
		entries = append(entries, Entry{SourceKey: sourceKey, ProjectID: raw[key]})
	}
	return entries, nil
}

// SourceKey picks the stable cache key for a template: its id, else its
// video URL, else its title.
func SourceKey(templateID, videoURL, title string) string {
	for _, candidate := range []string{templateID, videoURL, title} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
