package infra

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// JudgeCacheFileName is the default cache file name inside the data dir.
const JudgeCacheFileName = "judge_cache.json"

// FileJudgeCache implements domain.JudgeCache as a human-readable JSON object
// mapping "title||process" to {verdict, timestamp}.
// Every read loads the file; every write saves it. There is no cross-process
// lock, so two monitors sharing one file may lose each other's writes.
type FileJudgeCache struct {
	path   string
	ttl    time.Duration
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileJudgeCache creates a cache stored at path.
func NewFileJudgeCache(path string, ttl time.Duration, logger *zap.Logger) *FileJudgeCache {
	if ttl <= 0 {
		ttl = domain.JudgeCacheTTL
	}
	return &FileJudgeCache{path: path, ttl: ttl, logger: logger}
}

// Path returns the cache file location.
func (c *FileJudgeCache) Path() string {
	return c.path
}

// Load reads the persisted store. Missing or corrupt files yield an empty map.
func (c *FileJudgeCache) Load() map[string]domain.JudgeCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *FileJudgeCache) loadLocked() map[string]domain.JudgeCacheEntry {
	entries := make(map[string]domain.JudgeCacheEntry)

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read judge cache", zap.String("path", c.path), zap.Error(err))
		}
		return entries
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("judge cache is corrupt, starting empty", zap.String("path", c.path), zap.Error(err))
		return make(map[string]domain.JudgeCacheEntry)
	}
	// A hand-edited "null" decodes cleanly into a nil map.
	if entries == nil {
		entries = make(map[string]domain.JudgeCacheEntry)
	}
	return entries
}

// Save overwrites the persisted store. Errors are logged only.
func (c *FileJudgeCache) Save(entries map[string]domain.JudgeCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveLocked(entries)
}

func (c *FileJudgeCache) saveLocked(entries map[string]domain.JudgeCacheEntry) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		c.logger.Warn("failed to encode judge cache", zap.Error(err))
		return
	}
	if err := writeFileAtomic(c.path, data, 0600); err != nil {
		c.logger.Warn("failed to write judge cache", zap.String("path", c.path), zap.Error(err))
	}
}

// Get returns the entry if now - timestamp < ttl.
func (c *FileJudgeCache) Get(windowTitle, processName string, now time.Time) *domain.JudgeCacheEntry {
	entries := c.Load()
	entry, ok := entries[domain.JudgeCacheKey(windowTitle, processName)]
	if !ok || !c.fresh(entry, now) {
		return nil
	}
	return &entry
}

// Put records a verdict and persists the whole store.
func (c *FileJudgeCache) Put(windowTitle, processName string, entry domain.JudgeCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.loadLocked()
	entries[domain.JudgeCacheKey(windowTitle, processName)] = entry
	c.saveLocked(entries)
}

// Prune removes entries that are no longer fresh and returns how many went.
// Only the cache CLI calls this; the judge path never evicts.
func (c *FileJudgeCache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.loadLocked()
	removed := 0
	for key, entry := range entries {
		if !c.fresh(entry, now) {
			delete(entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.saveLocked(entries)
	}
	return removed
}

// Clear deletes the cache file.
func (c *FileJudgeCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *FileJudgeCache) fresh(entry domain.JudgeCacheEntry, now time.Time) bool {
	return now.UnixMilli()-entry.Timestamp < c.ttl.Milliseconds()
}

// Ensure FileJudgeCache implements domain.JudgeCache.
var _ domain.JudgeCache = (*FileJudgeCache)(nil)
