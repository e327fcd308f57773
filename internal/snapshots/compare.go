package snapshots

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DiffStatus classifies how an entity differs between two snapshots.
type DiffStatus int

const (
	// DiffChanged means the entity exists on both sides with differing fields.
	DiffChanged DiffStatus = iota
	// DiffOnlyLeft means the entity despawned (present only in the first snapshot).
	DiffOnlyLeft
	// DiffOnlyRight means the entity spawned (present only in the second snapshot).
	DiffOnlyRight
	// DiffKind means the slot holds a different entity kind.
	DiffKind
)

func (s DiffStatus) String() string {
	switch s {
	case DiffOnlyLeft:
		return "only in first"
	case DiffOnlyRight:
		return "only in second"
	case DiffKind:
		return "kind mismatch"
	default:
		return "changed"
	}
}

// FieldDiff is one differing field value.
type FieldDiff struct {
	Name  string
	Left  int64
	Right int64
}

// EntityDiff collects every difference for one entity slot.
type EntityDiff struct {
	Index  uint16
	Kind   string
	Status DiffStatus
	Fields []FieldDiff
}

// CompareData is the structural difference between two snapshots.
type CompareData struct {
	LeftTick  uint32
	RightTick uint32
	LeftSeed  uint32
	RightSeed uint32
	Entities  []EntityDiff
}

// HasDifferences reports whether the snapshots diverged.
func (c CompareData) HasDifferences() bool {
	return len(c.Entities) > 0 || c.LeftSeed != c.RightSeed
}

// Compare diffs two snapshots entity by entity.
func (s *Store) Compare(left, right *Snapshot) CompareData {
	out := CompareData{}
	if left != nil {
		out.LeftTick, out.LeftSeed = left.Tick, left.Seed
	}
	if right != nil {
		out.RightTick, out.RightSeed = right.Tick, right.Seed
	}
	byIndex := func(snap *Snapshot) map[uint16]Entity {
		m := make(map[uint16]Entity)
		for _, e := range snap.Entities() {
			m[e.Index] = e
		}
		return m
	}
	lm, rm := byIndex(left), byIndex(right)
	indices := make([]uint16, 0, len(lm)+len(rm))
	for idx := range lm {
		indices = append(indices, idx)
	}
	for idx := range rm {
		if _, ok := lm[idx]; !ok {
			indices = append(indices, idx)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, idx := range indices {
		le, lok := lm[idx]
		re, rok := rm[idx]
		switch {
		case lok && !rok:
			out.Entities = append(out.Entities, EntityDiff{Index: idx, Kind: le.Kind, Status: DiffOnlyLeft})
		case !lok && rok:
			out.Entities = append(out.Entities, EntityDiff{Index: idx, Kind: re.Kind, Status: DiffOnlyRight})
		case le.Kind != re.Kind:
			out.Entities = append(out.Entities, EntityDiff{Index: idx, Kind: le.Kind + "/" + re.Kind, Status: DiffKind})
		default:
			if fields := diffFields(le.Fields, re.Fields); len(fields) > 0 {
				out.Entities = append(out.Entities, EntityDiff{Index: idx, Kind: le.Kind, Status: DiffChanged, Fields: fields})
			}
		}
	}
	return out
}

func diffFields(left, right []Field) []FieldDiff {
	rv := make(map[string]int64, len(right))
	for _, f := range right {
		rv[f.Name] = f.Value
	}
	var diffs []FieldDiff
	seen := make(map[string]struct{}, len(left))
	for _, f := range left {
		seen[f.Name] = struct{}{}
		if other, ok := rv[f.Name]; !ok || other != f.Value {
			diffs = append(diffs, FieldDiff{Name: f.Name, Left: f.Value, Right: other})
		}
	}
	for _, f := range right {
		if _, ok := seen[f.Name]; !ok {
			diffs = append(diffs, FieldDiff{Name: f.Name, Right: f.Value})
		}
	}
	return diffs
}

// LogCompareDataToFile writes a human readable desync report.
func (s *Store) LogCompareDataToFile(path string, cmp CompareData) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "tick: %d / %d\n", cmp.LeftTick, cmp.RightTick)
	fmt.Fprintf(w, "srand0: %d / %d\n", cmp.LeftSeed, cmp.RightSeed)
	fmt.Fprintf(w, "differing entities: %d\n", len(cmp.Entities))
	for _, e := range cmp.Entities {
		fmt.Fprintf(w, "\nentity %d [%s] %s\n", e.Index, e.Kind, e.Status)
		for _, f := range e.Fields {
			fmt.Fprintf(w, "  %s: %d != %d\n", f.Name, f.Left, f.Right)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return file.Close()
}
