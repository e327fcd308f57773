// Package replaycatalog lists the replay files under a directory tree without an index.
package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"parkrep/core/internal/replay"
)

// Entry captures a replay summary alongside its path. Unreadable files keep their
// decode error instead of failing the whole listing.
type Entry struct {
	Path  string       `json:"path"`
	Info  *replay.Info `json:"info,omitempty"`
	Error string       `json:"error,omitempty"`
}

// List walks root and summarises every replay file, oldest recording first.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	//1.- Walk the tree and read the header of every replay file.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || filepath.Ext(d.Name()) != replay.FileExtension {
			return nil
		}
		summary, err := replay.ReadInfo(path)
		if err != nil {
			entries = append(entries, Entry{Path: path, Error: err.Error()})
			return nil
		}
		entries = append(entries, Entry{Path: path, Info: &summary})
		return nil
	})
	if err != nil {
		return nil, err
	}
	//2.- Broken files sort last; the rest by recording time, then path.
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Info == nil) != (b.Info == nil) {
			return a.Info != nil
		}
		if a.Info != nil && !a.Info.TimeRecorded.Equal(b.Info.TimeRecorded) {
			return a.Info.TimeRecorded.Before(b.Info.TimeRecorded)
		}
		return a.Path < b.Path
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
