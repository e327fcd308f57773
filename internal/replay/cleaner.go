package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"parkrep/core/internal/logging"
)

// RetentionPolicy bounds how many replay files survive a sweep and for how long.
type RetentionPolicy struct {
	MaxReplays int
	MaxAge     time.Duration
}

// StorageStats summarises what a sweep left on disk.
type StorageStats struct {
	Replays   int
	Reports   int
	Bytes     int64
	Removed   int
	LastSweep time.Time
}

// Cleaner prunes old replays from the replay directory and old desync reports from the
// desync directory.
type Cleaner struct {
	mu        sync.RWMutex
	replayDir string
	desyncDir string
	policy    RetentionPolicy
	log       *logging.Logger
	now       func() time.Time
	stats     StorageStats
}

// NewCleaner constructs a cleaner. desyncDir may be empty.
func NewCleaner(replayDir, desyncDir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{replayDir: replayDir, desyncDir: desyncDir, policy: policy, log: logger, now: time.Now}
}

// Run sweeps on every interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.RunOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce()
		}
	}
}

// RunOnce performs a single sweep over both directories.
func (c *Cleaner) RunOnce() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	now := c.now()
	stats := StorageStats{LastSweep: now}
	replays := c.collect(c.replayDir, func(name string) bool { return strings.EqualFold(filepath.Ext(name), FileExtension) })
	kept, bytes, removed := c.prune(replays, now, c.policy.MaxReplays)
	stats.Replays, stats.Bytes, stats.Removed = kept, bytes, removed
	if c.desyncDir != "" {
		reports := c.collect(c.desyncDir, isDesyncReport)
		//1.- Reports follow the same limits as replays since each desync pairs with one playback.
		kept, bytes, removed := c.prune(reports, now, c.policy.MaxReplays)
		stats.Reports = kept
		stats.Bytes += bytes
		stats.Removed += removed
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
	return stats
}

// Stats returns the result of the last sweep.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type artefact struct {
	path    string
	size    int64
	modTime time.Time
}

func (c *Cleaner) collect(dir string, match func(string) bool) []artefact {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("replay retention scan failed", logging.Error(err), logging.String("directory", dir))
		}
		return nil
	}
	list := make([]artefact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			c.log.Warn("replay retention stat failed", logging.Error(err), logging.String("path", path))
			continue
		}
		list = append(list, artefact{path: path, size: info.Size(), modTime: info.ModTime()})
	}
	//1.- Newest first so the count limit keeps recent files.
	sort.Slice(list, func(i, j int) bool {
		if list[i].modTime.Equal(list[j].modTime) {
			return list[i].path > list[j].path
		}
		return list[i].modTime.After(list[j].modTime)
	})
	return list
}

func (c *Cleaner) prune(list []artefact, now time.Time, limit int) (kept int, bytes int64, removed int) {
	for _, art := range list {
		reason := c.removalReason(art, now, kept, limit)
		if reason == "" {
			kept++
			bytes += art.size
			continue
		}
		if err := os.Remove(art.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("replay retention removal failed", logging.Error(err), logging.String("path", art.path))
			kept++
			bytes += art.size
			continue
		}
		removed++
		c.log.Info("replay retention removed file", logging.String("path", art.path), logging.String("reason", reason))
	}
	return kept, bytes, removed
}

func (c *Cleaner) removalReason(art artefact, now time.Time, kept, limit int) string {
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && now.Sub(art.modTime) > c.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if limit > 0 && kept >= limit {
		reasons = append(reasons, fmt.Sprintf(">=%d files", limit))
	}
	return strings.Join(reasons, ", ")
}

func isDesyncReport(name string) bool {
	return strings.HasPrefix(name, "desync_") && strings.HasSuffix(name, ".txt")
}
