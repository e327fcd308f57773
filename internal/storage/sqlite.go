// Package storage indexes replay files in SQLite so they can be listed and searched
// without decoding every container. It uses the pure-Go modernc.org/sqlite driver.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"parkrep/core/internal/replay"
)

// ErrNotFound reports a path with no index entry.
var ErrNotFound = errors.New("storage: replay not indexed")

// Store wraps the index database.
type Store struct {
	db *sql.DB
}

// Entry is one indexed replay.
type Entry struct {
	Path           string    `json:"path"`
	Name           string    `json:"name"`
	Version        uint16    `json:"version"`
	NetworkVersion string    `json:"network_version"`
	RecordedAt     time.Time `json:"recorded_at"`
	TickStart      uint32    `json:"tick_start"`
	TickEnd        uint32    `json:"tick_end"`
	Commands       int       `json:"commands"`
	Checksums      int       `json:"checksums"`
	Snapshots      int       `json:"snapshots"`
	SizeBytes      int64     `json:"size_bytes"`
	// DesyncTick is set once a playback of this replay diverged.
	DesyncTick *uint32 `json:"desync_tick,omitempty"`
}

// EntryFromInfo builds an index entry from a replay summary.
func EntryFromInfo(info replay.Info, size int64) Entry {
	return Entry{
		Path:           info.FilePath,
		Name:           info.Name,
		Version:        info.Version,
		NetworkVersion: info.NetworkVersion,
		RecordedAt:     info.TimeRecorded,
		TickStart:      info.TickStart,
		TickEnd:        info.TickEnd,
		Commands:       info.Commands,
		Checksums:      info.Checksums,
		Snapshots:      info.Snapshots,
		SizeBytes:      size,
	}
}

// Open creates or opens the index at dbPath, creating parent directories and running
// migrations. ":memory:" opens a private in-memory index.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dbPath != "" && dbPath[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
			}
			dbPath = filepath.Join(home, dbPath[1:])
		}
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	//1.- One connection keeps in-memory databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS replays (
			path TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			network_version TEXT NOT NULL DEFAULT '',
			recorded_at INTEGER NOT NULL,
			tick_start INTEGER NOT NULL,
			tick_end INTEGER NOT NULL,
			commands INTEGER NOT NULL DEFAULT 0,
			checksums INTEGER NOT NULL DEFAULT 0,
			snapshots INTEGER NOT NULL DEFAULT 0,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			desync_tick INTEGER,
			indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_replays_recorded ON replays(recorded_at DESC);
		CREATE INDEX IF NOT EXISTS idx_replays_name ON replays(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts or refreshes an entry. Rewriting a replay clears its desync mark.
func (s *Store) Upsert(e Entry) error {
	if e.Path == "" {
		return fmt.Errorf("storage: entry without path")
	}
	_, err := s.db.Exec(
		`INSERT INTO replays (path, name, version, network_version, recorded_at, tick_start, tick_end,
			commands, checksums, snapshots, size_bytes, desync_tick)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			network_version = excluded.network_version,
			recorded_at = excluded.recorded_at,
			tick_start = excluded.tick_start,
			tick_end = excluded.tick_end,
			commands = excluded.commands,
			checksums = excluded.checksums,
			snapshots = excluded.snapshots,
			size_bytes = excluded.size_bytes,
			desync_tick = NULL,
			indexed_at = CURRENT_TIMESTAMP`,
		e.Path, e.Name, e.Version, e.NetworkVersion, e.RecordedAt.Unix(), e.TickStart, e.TickEnd,
		e.Commands, e.Checksums, e.Snapshots, e.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot index %s: %w", e.Path, err)
	}
	return nil
}

const selectColumns = `SELECT path, name, version, network_version, recorded_at, tick_start, tick_end,
	commands, checksums, snapshots, size_bytes, desync_tick FROM replays`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e        Entry
		recorded int64
		desync   sql.NullInt64
	)
	if err := row.Scan(&e.Path, &e.Name, &e.Version, &e.NetworkVersion, &recorded, &e.TickStart, &e.TickEnd,
		&e.Commands, &e.Checksums, &e.Snapshots, &e.SizeBytes, &desync); err != nil {
		return Entry{}, err
	}
	e.RecordedAt = time.Unix(recorded, 0).UTC()
	if desync.Valid {
		tick := uint32(desync.Int64)
		e.DesyncTick = &tick
	}
	return e, nil
}

// List returns the newest entries first. A zero limit means 50 and a negative one
// means no limit.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := s.db.Query(selectColumns+` ORDER BY recorded_at DESC, path ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query replays: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return entries, nil
}

// Get returns the entry for path.
func (s *Store) Get(path string) (Entry, error) {
	e, err := scanEntry(s.db.QueryRow(selectColumns+` WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("storage: cannot read %s: %w", path, err)
	}
	return e, nil
}

// MarkDesync records the first tick at which playback of path diverged.
func (s *Store) MarkDesync(path string, tick uint32) error {
	res, err := s.db.Exec(`UPDATE replays SET desync_tick = ? WHERE path = ?`, tick, path)
	if err != nil {
		return fmt.Errorf("storage: cannot mark %s: %w", path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil
}

// Delete removes the entry for path. Missing entries are not an error.
func (s *Store) Delete(path string) error {
	if _, err := s.db.Exec(`DELETE FROM replays WHERE path = ?`, path); err != nil {
		return fmt.Errorf("storage: cannot delete %s: %w", path, err)
	}
	return nil
}

// Prune drops entries whose files no longer exist and reports how many were removed.
func (s *Store) Prune() (int, error) {
	entries, err := s.List(-1)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if _, err := os.Stat(e.Path); errors.Is(err, os.ErrNotExist) {
			if err := s.Delete(e.Path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// IndexFile reads the replay at path and upserts its entry.
func (s *Store) IndexFile(path string) (Entry, error) {
	info, err := replay.ReadInfo(path)
	if err != nil {
		return Entry{}, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	e := EntryFromInfo(info, stat.Size())
	e.Path = path
	if err := s.Upsert(e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
