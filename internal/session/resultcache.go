package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/store"
)

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// ResultCache persists finished extraction output per archive/mode pair so a
// repeat request over the same archive skips the scan. Each cached entry is
// a DuckDB sample file plus a JSON sidecar holding the full result document.
// Windowed requests are never cached; the manager enforces that.
type ResultCache struct {
	dir string
	mu  sync.RWMutex
	// cache tracks finished entries (cache key -> duckdb path)
	cache map[string]string
}

// NewResultCache creates a result cache.
// Uses environment variable RESULT_CACHE_DIR for storage location, defaults to ./data/results
func NewResultCache() *ResultCache {
	dir := os.Getenv("RESULT_CACHE_DIR")
	if dir == "" {
		dir = "./data/results"
	}
	return NewResultCacheWithDir(dir)
}

// NewResultCacheWithDir creates a result cache rooted at a specific directory.
func NewResultCacheWithDir(dir string) *ResultCache {
	os.MkdirAll(dir, 0755)

	rc := &ResultCache{
		dir:   dir,
		cache: make(map[string]string),
	}
	rc.scanExisting()
	return rc
}

// scanExisting indexes cached entries left over from earlier runs. An entry
// counts only when both the database and the sidecar survive.
func (rc *ResultCache) scanExisting() {
	entries, err := os.ReadDir(rc.dir)
	if err != nil {
		fmt.Printf("[ResultCache] Warning: failed to scan cache directory: %v\n", err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".duckdb") {
			continue
		}
		key := strings.TrimSuffix(name, ".duckdb")
		if _, err := os.Stat(rc.sidecarPath(key)); err != nil {
			continue
		}
		rc.cache[key] = filepath.Join(rc.dir, name)
	}

	fmt.Printf("[ResultCache] Scanned %d existing cached results\n", len(rc.cache))
}

func cacheKey(archiveID, mode string) string {
	return archiveID + "_" + mode
}

func (rc *ResultCache) dbPath(key string) string {
	return filepath.Join(rc.dir, key+".duckdb")
}

func (rc *ResultCache) sidecarPath(key string) string {
	return filepath.Join(rc.dir, key+".result.json")
}

// Owns reports whether the given database path belongs to the cache, so job
// cleanup does not delete shared files.
func (rc *ResultCache) Owns(path string) bool {
	dir := filepath.Dir(path)
	return dir == rc.dir || dir == filepath.Clean(rc.dir)
}

// Open loads a cached result and its sample store. Returns ok=false when no
// complete entry exists for the pair.
func (rc *ResultCache) Open(archiveID, mode string) (*models.ExtractionResult, *store.SampleStore, bool) {
	key := cacheKey(archiveID, mode)

	rc.mu.RLock()
	dbPath, ok := rc.cache[key]
	rc.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}

	raw, err := os.ReadFile(rc.sidecarPath(key))
	if err != nil {
		rc.evict(key)
		return nil, nil, false
	}
	var res models.ExtractionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		fmt.Printf("[ResultCache] Corrupt sidecar for %s, evicting: %v\n", key, err)
		rc.evict(key)
		return nil, nil, false
	}

	ss, err := store.OpenSampleStore(dbPath)
	if err != nil {
		// Likely still locked by a live job; treat as a miss and rescan.
		fmt.Printf("[ResultCache] Failed to open cached DB for %s: %v\n", key, err)
		return nil, nil, false
	}

	fmt.Printf("[ResultCache] Hit for archive %s mode %s\n", shortID(archiveID), mode)
	return &res, ss, true
}

// Create stores a finished result, returning the populated sample store.
// The entry becomes visible to Open only after both files are complete.
func (rc *ResultCache) Create(archiveID, mode string, res *models.ExtractionResult) (*store.SampleStore, error) {
	key := cacheKey(archiveID, mode)
	dbPath := rc.dbPath(key)

	// Re-extraction replaces any stale entry.
	rc.evict(key)

	ss, err := store.NewSampleStoreAtPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create cached DB: %w", err)
	}
	ss.AddResult(res)
	if err := ss.Finalize(); err != nil {
		ss.Close()
		return nil, fmt.Errorf("failed to finalize cached DB: %w", err)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		ss.Close()
		return nil, fmt.Errorf("failed to encode result sidecar: %w", err)
	}
	if err := os.WriteFile(rc.sidecarPath(key), raw, 0644); err != nil {
		ss.Close()
		return nil, fmt.Errorf("failed to write result sidecar: %w", err)
	}

	rc.mu.Lock()
	rc.cache[key] = dbPath
	rc.mu.Unlock()

	fmt.Printf("[ResultCache] Stored result for archive %s mode %s\n", shortID(archiveID), mode)
	return ss, nil
}

// evict drops an entry and its files.
func (rc *ResultCache) evict(key string) {
	rc.mu.Lock()
	delete(rc.cache, key)
	rc.mu.Unlock()
	os.Remove(rc.dbPath(key))
	os.Remove(rc.sidecarPath(key))
}

// Delete removes every cached entry for an archive. Call when the archive
// itself is deleted.
func (rc *ResultCache) Delete(archiveID string) {
	rc.mu.Lock()
	var keys []string
	for key := range rc.cache {
		if strings.HasPrefix(key, archiveID+"_") {
			keys = append(keys, key)
		}
	}
	rc.mu.Unlock()

	for _, key := range keys {
		rc.evict(key)
	}
	if len(keys) > 0 {
		fmt.Printf("[ResultCache] Deleted %d cached results for archive %s\n", len(keys), shortID(archiveID))
	}
}

// Stats returns cache statistics for the health endpoint.
func (rc *ResultCache) Stats() map[string]interface{} {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	var totalSize int64
	for _, dbPath := range rc.cache {
		if info, err := os.Stat(dbPath); err == nil {
			totalSize += info.Size()
		}
	}
	return map[string]interface{}{
		"cachedCount": len(rc.cache),
		"totalSize":   totalSize,
		"cacheDir":    rc.dir,
	}
}

// CleanupOrphaned removes cached entries whose archive no longer exists.
// archiveIDs is the list of archives still present in storage.
func (rc *ResultCache) CleanupOrphaned(archiveIDs []string) int {
	valid := make(map[string]bool, len(archiveIDs))
	for _, id := range archiveIDs {
		valid[id] = true
	}

	rc.mu.Lock()
	var orphans []string
	for key := range rc.cache {
		i := strings.LastIndex(key, "_")
		if i < 0 || !valid[key[:i]] {
			orphans = append(orphans, key)
		}
	}
	rc.mu.Unlock()

	for _, key := range orphans {
		rc.evict(key)
	}
	if len(orphans) > 0 {
		fmt.Printf("[ResultCache] Cleaned up %d orphaned cached results\n", len(orphans))
	}
	return len(orphans)
}
