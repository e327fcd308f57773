package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"parkrep/core/internal/replay"
)

// ErrOutsideLibrary reports a name that resolves outside the replay directory.
var ErrOutsideLibrary = errors.New("storage: path outside replay directory")

// Library serves replays from one directory and keeps the index in step with it.
type Library struct {
	store *Store
	dir   string
}

// NewLibrary serves replays under dir. store may be nil, in which case listing is
// unavailable.
func NewLibrary(store *Store, dir string) *Library {
	return &Library{store: store, dir: dir}
}

// Dir is the directory replays are served from.
func (l *Library) Dir() string { return l.dir }

// Resolve maps a replay name to a path inside the library directory. Names without
// an extension get the replay extension.
func (l *Library) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("storage: empty replay name")
	}
	if filepath.Ext(name) == "" {
		name += replay.FileExtension
	}
	root, err := filepath.Abs(l.dir)
	if err != nil {
		return "", err
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", name, ErrOutsideLibrary)
	}
	return path, nil
}

// Info reads the header summary of the named replay.
func (l *Library) Info(name string) (replay.Info, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return replay.Info{}, err
	}
	return replay.ReadInfo(path)
}

// Entries lists indexed replays, newest first.
func (l *Library) Entries(limit int) ([]Entry, error) {
	if l.store == nil {
		return nil, fmt.Errorf("storage: no index configured")
	}
	return l.store.List(limit)
}

// Open opens the named replay for reading.
func (l *Library) Open(name string) (io.ReadCloser, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Scan indexes every replay in the directory and drops entries for deleted files.
// Unreadable replays are skipped and reported in the returned error.
func (l *Library) Scan() (int, error) {
	if l.store == nil {
		return 0, fmt.Errorf("storage: no index configured")
	}
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		_, err := l.store.Prune()
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	var (
		indexed int
		errs    []error
	)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != replay.FileExtension {
			continue
		}
		path, err := filepath.Abs(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := l.store.IndexFile(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		indexed++
	}
	if _, err := l.store.Prune(); err != nil {
		errs = append(errs, err)
	}
	return indexed, errors.Join(errs...)
}
