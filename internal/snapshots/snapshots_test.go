package snapshots

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	entities []Entity
}

func (f *fakeSource) SnapshotEntities() []Entity { return f.entities }

func guest(index uint16, x, y int64) Entity {
	return Entity{Index: index, Kind: "guest", Fields: []Field{{Name: "x", Value: x}, {Name: "y", Value: y}}}
}

func TestCaptureIsIsolatedFromSource(t *testing.T) {
	src := &fakeSource{entities: []Entity{guest(3, 10, 20), guest(1, 5, 6)}}
	store := NewStore(src)
	snap := store.CreateSnapshot()
	store.Capture(snap)

	src.entities[0].Fields[0].Value = 999

	require.Len(t, snap.Entities(), 2)
	assert.Equal(t, uint16(1), snap.Entities()[0].Index, "entities are ordered by index")
	assert.Equal(t, int64(10), snap.Entities()[1].Fields[0].Value)
}

func TestSerialiseRestoresSnapshot(t *testing.T) {
	store := NewStore(&fakeSource{entities: []Entity{guest(1, -4, 7), guest(9, 100, 200)}})
	snap := store.CreateSnapshot()
	store.Capture(snap)
	store.Link(snap, 1200, 0xABCD)

	blob, err := store.Serialise(snap)
	require.NoError(t, err)
	decoded, err := store.Deserialise(blob)
	require.NoError(t, err)

	assert.Equal(t, uint32(1200), decoded.Tick)
	assert.Equal(t, uint32(0xABCD), decoded.Seed)
	assert.False(t, store.Compare(snap, decoded).HasDifferences())
}

func TestDeserialiseRejectsGarbage(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Deserialise([]byte{1, 2, 3, 4})
	require.Error(t, err)
}

func TestCompareReportsFieldSpawnAndDespawn(t *testing.T) {
	store := NewStore(nil)
	left := &Snapshot{Tick: 5, Seed: 1, entities: []Entity{guest(1, 0, 0), guest(2, 5, 5)}}
	right := &Snapshot{Tick: 5, Seed: 1, entities: []Entity{guest(1, 0, 3), guest(4, 1, 1)}}

	cmp := store.Compare(left, right)
	require.True(t, cmp.HasDifferences())
	require.Len(t, cmp.Entities, 3)

	assert.Equal(t, DiffChanged, cmp.Entities[0].Status)
	assert.Equal(t, []FieldDiff{{Name: "y", Left: 0, Right: 3}}, cmp.Entities[0].Fields)
	assert.Equal(t, DiffOnlyLeft, cmp.Entities[1].Status)
	assert.Equal(t, uint16(4), cmp.Entities[2].Index)
	assert.Equal(t, DiffOnlyRight, cmp.Entities[2].Status)
}

func TestLinkRingDropsOldest(t *testing.T) {
	store := NewStore(&fakeSource{})
	for tick := uint32(0); tick < DefaultCapacity+4; tick++ {
		snap := store.CreateSnapshot()
		store.Capture(snap)
		store.Link(snap, tick, tick)
	}
	_, ok := store.Linked(0)
	assert.False(t, ok)
	latest, ok := store.Linked(DefaultCapacity + 3)
	require.True(t, ok)
	assert.Equal(t, uint32(DefaultCapacity+3), latest.Seed)
}

func TestLogCompareDataToFile(t *testing.T) {
	store := NewStore(nil)
	cmp := store.Compare(
		&Snapshot{Tick: 7, Seed: 2, entities: []Entity{guest(1, 0, 0)}},
		&Snapshot{Tick: 7, Seed: 3, entities: []Entity{guest(1, 8, 0)}},
	)
	path := filepath.Join(t.TempDir(), "nested", "desync.txt")
	require.NoError(t, store.LogCompareDataToFile(path, cmp))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "srand0: 2 / 3"))
	assert.True(t, strings.Contains(text, "x: 0 != 8"))
}
