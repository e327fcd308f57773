package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parkrep/core/internal/replay"
	"parkrep/core/internal/storage"
)

// cliDirs isolates one test from user configuration and shares its directories
// between invocations.
type cliDirs struct {
	replays string
	desyncs string
	index   string
}

func newCLIDirs(t *testing.T) cliDirs {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PARKREP_CONFIG", "")
	root := t.TempDir()
	return cliDirs{
		replays: filepath.Join(root, "replays"),
		desyncs: filepath.Join(root, "desyncs"),
		index:   filepath.Join(root, "index.db"),
	}
}

func (d cliDirs) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append(args, "--replay-dir", d.replays, "--desync-dir", d.desyncs, "--index", d.index, "--log-level", "warn"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (d cliDirs) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := d.run(t, args...)
	if err != nil {
		t.Fatalf("parkrep %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRecordPlayAndInfo(t *testing.T) {
	dirs := newCLIDirs(t)

	out := dirs.mustRun(t, "record", "demo", "--ticks", "60", "--actions", "12", "--seed", "4")
	if !strings.Contains(out, "recorded") || !strings.Contains(out, "60 ticks") {
		t.Fatalf("unexpected record output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dirs.replays, "demo"+replay.FileExtension)); err != nil {
		t.Fatalf("replay file missing: %v", err)
	}

	out = dirs.mustRun(t, "play", "demo")
	if !strings.Contains(out, "checksums match") {
		t.Fatalf("expected a clean playback, got %q", out)
	}

	out = dirs.mustRun(t, "info", "demo", "--json")
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("info --json is not JSON: %v\n%s", err, out)
	}
	if info["name"] != "demo" || info["ticks"] != float64(60) {
		t.Fatalf("unexpected info %v", info)
	}

	out = dirs.mustRun(t, "info", filepath.Join(dirs.replays, "demo.parkrep"))
	if !strings.Contains(out, "ticks:     ") || !strings.Contains(out, "demo (version") {
		t.Fatalf("unexpected text info %q", out)
	}

	if _, err := dirs.run(t, "info", "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestPlayFailsOnDesync(t *testing.T) {
	dirs := newCLIDirs(t)
	dirs.mustRun(t, "record", "tampered", "--ticks", "30", "--actions", "6")

	//1.- Corrupt the first checksum so verification fails on the opening tick.
	path := filepath.Join(dirs.replays, "tampered"+replay.FileExtension)
	rec, err := replay.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rec.Checksums) == 0 {
		t.Fatalf("recording carries no checksums")
	}
	rec.Checksums[0].Digest[0] ^= 0xFF
	if err := replay.WriteFile(path, rec, 3); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = dirs.run(t, "play", "tampered")
	if !errors.Is(err, errDesync) {
		t.Fatalf("expected a desync error, got %v", err)
	}
	reports, _ := filepath.Glob(filepath.Join(dirs.desyncs, "*"))
	if len(reports) == 0 {
		t.Fatalf("expected a desync report in %s", dirs.desyncs)
	}

	if out := dirs.mustRun(t, "play", "tampered", "--silent"); !strings.Contains(out, "checksums match") {
		t.Fatalf("silent playback skips verification, got %q", out)
	}
}

func TestNormaliseWritesReplay(t *testing.T) {
	dirs := newCLIDirs(t)
	dirs.mustRun(t, "record", "sparse", "--ticks", "80", "--actions", "5")

	out := dirs.mustRun(t, "normalise", "sparse", "dense")
	if !strings.Contains(out, "normalised sparse") {
		t.Fatalf("unexpected normalise output %q", out)
	}
	info, err := replay.ReadInfo(filepath.Join(dirs.replays, "dense"+replay.FileExtension))
	if err != nil {
		t.Fatalf("normalised replay unreadable: %v", err)
	}
	if info.Commands != 5 {
		t.Fatalf("expected every command to survive, got %d", info.Commands)
	}
	if info.Ticks >= 80 {
		t.Fatalf("expected idle ticks to be squeezed out, got %d ticks", info.Ticks)
	}
}

func TestCatalogScanListAndTree(t *testing.T) {
	dirs := newCLIDirs(t)
	dirs.mustRun(t, "record", "first", "--ticks", "20", "--actions", "2")
	dirs.mustRun(t, "record", "second", "--ticks", "20", "--actions", "2")

	if out := dirs.mustRun(t, "catalog", "scan"); !strings.Contains(out, "indexed 2 replays") {
		t.Fatalf("unexpected scan output %q", out)
	}
	out := dirs.mustRun(t, "catalog", "list", "--json")
	var entries []storage.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("catalog list --json is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	out = dirs.mustRun(t, "catalog", "tree", dirs.replays)
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("unexpected tree output %q", out)
	}
}

func TestDemoScriptIsDeterministic(t *testing.T) {
	a, b := demoScript(16, 3), demoScript(16, 3)
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("expected 16 actions, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Type() != b[i].Type() {
			t.Fatalf("action %d differs: %v vs %v", i, a[i].Type(), b[i].Type())
		}
	}
	if len(demoScript(-1, 3)) != 0 {
		t.Fatalf("negative counts must yield no actions")
	}
}
