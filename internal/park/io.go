package park

import (
	"errors"
	"fmt"
	"io"

	"parkrep/core/internal/checksum"
	"parkrep/core/internal/codec"
	"parkrep/core/internal/stream"
)

const (
	// FileMagic identifies an exported park ("PARK" little-endian).
	FileMagic uint32 = 0x4B524150
	// FileVersion is the current park file layout version.
	FileVersion uint16 = 1

	compressionNone uint8 = 0
	compressionZstd uint8 = 1
)

var (
	// ErrBadParkFile reports a park file with the wrong magic or version.
	ErrBadParkFile = errors.New("park: unrecognised park file")
	// ErrNothingLoaded reports ImportLoaded without a preceding LoadPark.
	ErrNothingLoaded = errors.New("park: no park data staged")
)

type staged struct {
	name     string
	tick     uint32
	rng      Random
	land     []uint8
	walls    []Wall
	tracks   []TrackPiece
	entities []Entity
}

// ExportPark writes the park file. A positive compression level compresses the body with zstd.
func (p *Park) ExportPark(w io.Writer, compressionLevel int) error {
	body := stream.NewWriter()
	body.String(p.name)
	body.U32(p.tick)
	body.U32(p.rng.S0)
	body.U32(p.rng.S1)
	body.Raw(p.land)
	body.U32(uint32(len(p.walls)))
	for _, wall := range p.walls {
		body.U8(wall.TileX)
		body.U8(wall.TileY)
		body.U8(wall.Edge)
		body.String(wall.Style)
	}
	body.U32(uint32(len(p.tracks)))
	for _, piece := range p.tracks {
		body.U8(piece.TileX)
		body.U8(piece.TileY)
		body.U8(piece.Height)
		body.U8(piece.Direction)
		body.String(piece.RideType)
	}
	live := p.Entities()
	body.U32(uint32(len(live)))
	for _, e := range live {
		writeEntity(body, e)
	}
	body.U32(uint32(len(p.RequiredObjects())))
	for _, id := range p.RequiredObjects() {
		body.String(id)
	}
	if err := body.Err(); err != nil {
		return fmt.Errorf("encode park: %w", err)
	}

	payload := body.Bytes()
	mode := compressionNone
	if compressionLevel > 0 {
		packed, err := codec.NewZstd(compressionLevel).Compress(payload)
		if err != nil {
			return fmt.Errorf("compress park: %w", err)
		}
		payload = packed
		mode = compressionZstd
	}
	out := stream.NewWriter()
	out.U32(FileMagic)
	out.U16(FileVersion)
	out.U8(mode)
	out.Blob(payload)
	if err := out.Err(); err != nil {
		return fmt.Errorf("encode park header: %w", err)
	}
	if _, err := w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("write park: %w", err)
	}
	return nil
}

// LoadPark parses a park file and stages it for ImportLoaded, returning the objects it requires.
func (p *Park) LoadPark(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read park: %w", err)
	}
	header := stream.NewReader(raw)
	if magic := header.U32(); header.Err() == nil && magic != FileMagic {
		return nil, fmt.Errorf("park magic %#x: %w", magic, ErrBadParkFile)
	}
	if version := header.U16(); header.Err() == nil && version != FileVersion {
		return nil, fmt.Errorf("park version %d: %w", version, ErrBadParkFile)
	}
	mode := header.U8()
	payload := header.Blob()
	if err := header.Err(); err != nil {
		return nil, fmt.Errorf("read park header: %w", err)
	}
	switch mode {
	case compressionNone:
	case compressionZstd:
		payload, err = codec.NewZstd(0).Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("decompress park: %w", err)
		}
	default:
		return nil, fmt.Errorf("park compression %d: %w", mode, ErrBadParkFile)
	}

	body := stream.NewReader(payload)
	next := &staged{}
	next.name = body.String()
	next.tick = body.U32()
	next.rng.S0 = body.U32()
	next.rng.S1 = body.U32()
	next.land = body.Raw(MapSize * MapSize)
	for i, n := 0, body.U32(); uint32(i) < n && body.Err() == nil; i++ {
		next.walls = append(next.walls, Wall{TileX: body.U8(), TileY: body.U8(), Edge: body.U8(), Style: body.String()})
	}
	for i, n := 0, body.U32(); uint32(i) < n && body.Err() == nil; i++ {
		next.tracks = append(next.tracks, TrackPiece{
			TileX: body.U8(), TileY: body.U8(), Height: body.U8(), Direction: body.U8(), RideType: body.String(),
		})
	}
	for i, n := 0, body.U32(); uint32(i) < n && body.Err() == nil; i++ {
		e := readEntity(body)
		if body.Err() == nil && int(e.ID) >= MaxEntities {
			return nil, fmt.Errorf("entity id %d: %w", e.ID, ErrBadParkFile)
		}
		next.entities = append(next.entities, e)
	}
	var required []string
	for i, n := 0, body.U32(); uint32(i) < n && body.Err() == nil; i++ {
		required = append(required, body.String())
	}
	if err := body.Err(); err != nil {
		return nil, fmt.Errorf("decode park: %w", err)
	}
	p.loaded = next
	return required, nil
}

// ImportLoaded replaces the park state with the most recently loaded park file.
func (p *Park) ImportLoaded() error {
	next := p.loaded
	if next == nil {
		return ErrNothingLoaded
	}
	p.loaded = nil
	p.name = next.name
	p.tick = next.tick
	p.rng = next.rng
	copy(p.land, next.land)
	p.walls = next.walls
	p.tracks = next.tracks
	for i := range p.entities {
		p.entities[i] = Entity{ID: uint16(i)}
	}
	for _, e := range next.entities {
		p.entities[e.ID] = e
	}
	return nil
}

// EntitiesChecksum hashes every live entity in slot order.
func (p *Park) EntitiesChecksum() checksum.Digest {
	hasher := checksum.NewHasher()
	for _, e := range p.entities {
		if e.Kind == KindNull {
			continue
		}
		w := stream.NewWriter()
		writeEntity(w, e)
		_, _ = hasher.Write(w.Bytes())
	}
	return hasher.Sum()
}

func writeEntity(w *stream.Writer, e Entity) {
	w.U16(e.ID)
	w.U8(uint8(e.Kind))
	w.I32(e.X)
	w.I32(e.Y)
	w.I32(e.Z)
	w.U8(e.Direction)
	w.U8(e.Energy)
	w.I32(e.Cash)
}

func readEntity(r *stream.Reader) Entity {
	return Entity{
		ID:        r.U16(),
		Kind:      EntityKind(r.U8()),
		X:         r.I32(),
		Y:         r.I32(),
		Z:         r.I32(),
		Direction: r.U8(),
		Energy:    r.U8(),
		Cash:      r.I32(),
	}
}
