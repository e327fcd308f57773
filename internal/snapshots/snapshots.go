package snapshots

import (
	"errors"
	"fmt"
	"sort"

	"parkrep/core/internal/codec"
	"parkrep/core/internal/stream"
)

// DefaultCapacity bounds how many linked snapshots the store keeps.
const DefaultCapacity = 32

const snapshotMagic uint32 = 0x50414E53 // "SNAP"

// ErrBadSnapshot reports an encoded snapshot that cannot be decoded.
var ErrBadSnapshot = errors.New("snapshots: malformed snapshot")

// Field is one named numeric attribute of an entity.
type Field struct {
	Name  string
	Value int64
}

// Entity is a flattened, comparable view of one simulation entity.
type Entity struct {
	Index  uint16
	Kind   string
	Fields []Field
}

// Source produces the entity view captured into snapshots.
type Source interface {
	SnapshotEntities() []Entity
}

// Snapshot freezes the entity state of one tick.
type Snapshot struct {
	Tick     uint32
	Seed     uint32
	Linked   bool
	entities []Entity
}

// Entities returns the captured entities ordered by index.
func (s *Snapshot) Entities() []Entity {
	if s == nil {
		return nil
	}
	return s.entities
}

// Store captures snapshots from a Source and keeps the most recent linked ones.
type Store struct {
	source   Source
	capacity int
	linked   []*Snapshot
	codec    codec.Compressor
}

// NewStore creates a snapshot store reading from source.
func NewStore(source Source) *Store {
	return &Store{source: source, capacity: DefaultCapacity, codec: codec.NewSnappy()}
}

// CreateSnapshot allocates an empty, unlinked snapshot.
func (s *Store) CreateSnapshot() *Snapshot {
	return &Snapshot{}
}

// Capture copies the current entity state of the source into snap.
func (s *Store) Capture(snap *Snapshot) {
	if s == nil || snap == nil || s.source == nil {
		return
	}
	entities := s.source.SnapshotEntities()
	snap.entities = make([]Entity, len(entities))
	for i, e := range entities {
		snap.entities[i] = Entity{Index: e.Index, Kind: e.Kind, Fields: append([]Field(nil), e.Fields...)}
	}
	sort.Slice(snap.entities, func(i, j int) bool { return snap.entities[i].Index < snap.entities[j].Index })
}

// Link stamps snap with its tick and random seed and retains it in the ring.
func (s *Store) Link(snap *Snapshot, tick, seed uint32) {
	if s == nil || snap == nil {
		return
	}
	snap.Tick = tick
	snap.Seed = seed
	snap.Linked = true
	//1.- Drop the oldest snapshot once the ring is full.
	if len(s.linked) >= s.capacity {
		copy(s.linked, s.linked[1:])
		s.linked = s.linked[:len(s.linked)-1]
	}
	s.linked = append(s.linked, snap)
}

// Linked returns the retained snapshot for tick.
func (s *Store) Linked(tick uint32) (*Snapshot, bool) {
	if s == nil {
		return nil, false
	}
	for i := len(s.linked) - 1; i >= 0; i-- {
		if s.linked[i].Tick == tick {
			return s.linked[i], true
		}
	}
	return nil, false
}

// Serialise encodes snap into a snappy-compressed blob.
func (s *Store) Serialise(snap *Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("serialise snapshot: nil snapshot")
	}
	w := stream.NewWriter()
	w.U32(snapshotMagic)
	w.U32(snap.Tick)
	w.U32(snap.Seed)
	w.U32(uint32(len(snap.entities)))
	for _, e := range snap.entities {
		w.U16(e.Index)
		w.String(e.Kind)
		w.U8(uint8(len(e.Fields)))
		for _, f := range e.Fields {
			w.String(f.Name)
			w.U64(uint64(f.Value))
		}
	}
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("serialise snapshot: %w", err)
	}
	return s.compressor().Compress(w.Bytes())
}

// Deserialise decodes a blob produced by Serialise into a linked snapshot.
func (s *Store) Deserialise(data []byte) (*Snapshot, error) {
	raw, err := s.compressor().Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("deserialise snapshot: %w", err)
	}
	r := stream.NewReader(raw)
	if magic := r.U32(); r.Err() == nil && magic != snapshotMagic {
		return nil, fmt.Errorf("snapshot magic %#x: %w", magic, ErrBadSnapshot)
	}
	snap := &Snapshot{Tick: r.U32(), Seed: r.U32(), Linked: true}
	count := r.U32()
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		e := Entity{Index: r.U16(), Kind: r.String()}
		fields := int(r.U8())
		for j := 0; j < fields && r.Err() == nil; j++ {
			e.Fields = append(e.Fields, Field{Name: r.String(), Value: int64(r.U64())})
		}
		snap.entities = append(snap.entities, e)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("deserialise snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) compressor() codec.Compressor {
	if s == nil || s.codec == nil {
		return codec.NewSnappy()
	}
	return s.codec
}
