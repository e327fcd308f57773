package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parkrep/core/internal/checksum"
	"parkrep/core/internal/snapshots"
)

// DesyncReportName builds the file name used for a desync report.
func DesyncReportName(at time.Time, tick uint32, suffix string) string {
	if suffix != "" {
		return fmt.Sprintf("desync_%d_%d_%s.txt", at.Unix(), tick, suffix)
	}
	return fmt.Sprintf("desync_%d_%d.txt", at.Unix(), tick)
}

// desyncReport describes a checksum mismatch found during playback.
type desyncReport struct {
	Replay   string
	File     string
	Tick     uint32
	Index    int
	Expected checksum.Digest
	Actual   checksum.Digest
	Live     *snapshots.Snapshot
}

// writeDesyncReport writes the mismatch and a dump of the live entities to path.
func writeDesyncReport(path string, report desyncReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "replay: %s\n", report.Replay)
	fmt.Fprintf(&b, "file: %s\n", report.File)
	fmt.Fprintf(&b, "tick: %d\n", report.Tick)
	fmt.Fprintf(&b, "checksum index: %d\n", report.Index)
	fmt.Fprintf(&b, "expected: %s\n", report.Expected)
	fmt.Fprintf(&b, "actual: %s\n", report.Actual)
	if report.Live != nil {
		fmt.Fprintf(&b, "srand0: %d\n", report.Live.Seed)
		entities := report.Live.Entities()
		fmt.Fprintf(&b, "entities: %d\n", len(entities))
		for _, entity := range entities {
			fmt.Fprintf(&b, "entity %d (%s)\n", entity.Index, entity.Kind)
			for _, field := range entity.Fields {
				fmt.Fprintf(&b, "  %s: %d\n", field.Name, field.Value)
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create desync dir: %w", err)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
