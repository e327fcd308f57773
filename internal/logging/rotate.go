package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"parkrep/core/internal/config"
)

const backupTimeFormat = "20060102T150405.000000000"

// rotatingFile appends to one log file and moves it aside once it would exceed
// limit bytes. Backups are named <path>.<timestamp>, gzip compressed on request, and
// pruned by count and age.
type rotatingFile struct {
	mu         sync.Mutex
	path       string
	limit      int64
	maxBackups int
	maxAge     time.Duration
	compress   bool
	now        func() time.Time

	file *os.File
	size int64
}

func openRotatingFile(cfg config.LoggingConfig) (*rotatingFile, error) {
	var problems []string
	if cfg.MaxSizeMB <= 0 {
		problems = append(problems, "PARKREP_LOG_MAX_SIZE_MB must be positive")
	}
	if cfg.MaxBackups < 0 {
		problems = append(problems, "PARKREP_LOG_MAX_BACKUPS must be non-negative")
	}
	if cfg.MaxAgeDays < 0 {
		problems = append(problems, "PARKREP_LOG_MAX_AGE_DAYS must be non-negative")
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	r := &rotatingFile{
		path:       cfg.Path,
		limit:      int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress:   cfg.Compress,
		now:        time.Now,
	}
	if err := r.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) open(mode int) error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		return errors.Join(err, file.Close())
	}
	r.file, r.size = file, info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	//1.- An empty file always takes the line, even one larger than the limit.
	if r.size > 0 && r.size+int64(len(p)) > r.limit {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate %s: %w", r.path, err)
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Sync()
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

func (r *rotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	backup := r.path + "." + r.now().UTC().Format(backupTimeFormat)
	if err := os.Rename(r.path, backup); err != nil {
		return err
	}
	if r.compress {
		//2.- A failed compression keeps the plain backup rather than losing lines.
		if err := gzipFile(backup); err == nil {
			_ = os.Remove(backup)
		}
	}
	r.prune()
	return r.open(os.O_TRUNC)
}

// prune removes backups beyond maxBackups (newest kept) and those older than maxAge.
func (r *rotatingFile) prune() {
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil {
		return
	}
	type backup struct {
		path string
		mod  time.Time
	}
	backups := make([]backup, 0, len(matches))
	for _, path := range matches {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			backups = append(backups, backup{path: path, mod: info.ModTime()})
		}
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].mod.After(backups[j].mod) })
	cutoff := r.now().Add(-r.maxAge)
	for i, b := range backups {
		tooMany := r.maxBackups > 0 && i >= r.maxBackups
		tooOld := r.maxAge > 0 && b.mod.Before(cutoff)
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}

func gzipFile(path string) (err error) {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path + ".gz")
		}
	}()
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}
