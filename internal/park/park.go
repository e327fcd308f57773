package park

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	// MapSize is the edge length of the square tile map.
	MapSize = 64
	// TileSize is the number of world units covered by one tile.
	TileSize = 32
	// HeightStep converts a land height unit into world Z.
	HeightStep = 8
	// MaxEntities bounds the entity table.
	MaxEntities = 1024
	// MaxLandHeight is the highest land height value accepted.
	MaxLandHeight = 142
	// DefaultLandHeight is the flat terrain height of a new park.
	DefaultLandHeight = 14
	// LocationNull marks an unset coordinate.
	LocationNull int32 = -32768
)

var (
	// ErrOutOfBounds reports a tile or world coordinate outside the map.
	ErrOutOfBounds = errors.New("park: coordinate outside map")
	// ErrNoFreeEntity reports a full entity table.
	ErrNoFreeEntity = errors.New("park: entity table full")
	// ErrOccupied reports a placement colliding with existing scenery or track.
	ErrOccupied = errors.New("park: tile edge already occupied")
	// ErrInvalidValue reports a parameter outside its accepted range.
	ErrInvalidValue = errors.New("park: invalid value")
)

// Coords is a world position in map units.
type Coords struct {
	X int32
	Y int32
	Z int32
}

// NullCoords returns the sentinel position.
func NullCoords() Coords { return Coords{X: LocationNull, Y: LocationNull} }

// IsNull reports whether the position is the sentinel.
func (c Coords) IsNull() bool { return c.X == LocationNull }

// EntityKind classifies an entity slot.
type EntityKind uint8

const (
	KindNull EntityKind = iota
	KindGuest
	KindStaff
)

func (k EntityKind) String() string {
	switch k {
	case KindGuest:
		return "guest"
	case KindStaff:
		return "staff"
	default:
		return "null"
	}
}

// Entity is a moving inhabitant of the park.
type Entity struct {
	ID        uint16
	Kind      EntityKind
	X         int32
	Y         int32
	Z         int32
	Direction uint8
	Energy    uint8
	Cash      int32
}

// Wall is a scenery wall on one tile edge.
type Wall struct {
	TileX uint8
	TileY uint8
	Edge  uint8
	Style string
}

// TrackPiece is one tile of ride track.
type TrackPiece struct {
	TileX     uint8
	TileY     uint8
	Height    uint8
	Direction uint8
	RideType  string
}

// Park is the deterministic reference world driven by game actions and the tick loop.
type Park struct {
	name        string
	tick        uint32
	rng         Random
	paused      bool
	entranceFee int32
	flags       uint32
	maxGuests   uint16
	land        []uint8
	walls       []Wall
	tracks      []TrackPiece
	entities    []Entity
	cheats      map[CheatType]int32
	loaded      *staged
}

// New builds a flat park seeded with the provided random seed.
func New(name string, seed uint32) *Park {
	p := &Park{
		name:      name,
		rng:       NewRandom(seed),
		maxGuests: 500,
		land:      make([]uint8, MapSize*MapSize),
		entities:  make([]Entity, MaxEntities),
		cheats:    make(map[CheatType]int32),
	}
	for i := range p.land {
		p.land[i] = DefaultLandHeight
	}
	for i := range p.entities {
		p.entities[i].ID = uint16(i)
	}
	return p
}

// Name returns the park name.
func (p *Park) Name() string { return p.name }

// SetName renames the park.
func (p *Park) SetName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("park name must not be empty: %w", ErrInvalidValue)
	}
	p.name = trimmed
	return nil
}

// CurrentTick reports the simulation tick counter.
func (p *Park) CurrentTick() uint32 { return p.tick }

// SetCurrentTick overwrites the simulation tick counter.
func (p *Park) SetCurrentTick(tick uint32) { p.tick = tick }

// RandomSeed exposes the first word of the random state.
func (p *Park) RandomSeed() uint32 { return p.rng.S0 }

// RandomState returns both words of the random state.
func (p *Park) RandomState() Random { return p.rng }

// Paused reports whether the simulation is paused.
func (p *Park) Paused() bool { return p.paused }

// SetPaused pauses or resumes the simulation.
func (p *Park) SetPaused(paused bool) { p.paused = paused }

// EntranceFee returns the park entrance fee.
func (p *Park) EntranceFee() int32 { return p.entranceFee }

// SetEntranceFee updates the entrance fee. Negative fees are rejected.
func (p *Park) SetEntranceFee(fee int32) error {
	if fee < 0 || fee > 2000 {
		return fmt.Errorf("entrance fee %d: %w", fee, ErrInvalidValue)
	}
	p.entranceFee = fee
	return nil
}

// LandHeight reads the height of a tile.
func (p *Park) LandHeight(x, y int) (uint8, error) {
	if !inMap(x, y) {
		return 0, fmt.Errorf("tile (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	return p.land[y*MapSize+x], nil
}

// SetLandHeight raises or lowers a tile.
func (p *Park) SetLandHeight(x, y int, height uint8) error {
	if !inMap(x, y) {
		return fmt.Errorf("tile (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	if height < 2 || height > MaxLandHeight {
		return fmt.Errorf("land height %d: %w", height, ErrInvalidValue)
	}
	p.land[y*MapSize+x] = height
	return nil
}

// PlaceWall adds a wall on a tile edge.
func (p *Park) PlaceWall(w Wall) error {
	if !inMap(int(w.TileX), int(w.TileY)) {
		return fmt.Errorf("wall tile (%d,%d): %w", w.TileX, w.TileY, ErrOutOfBounds)
	}
	if w.Edge > 3 || strings.TrimSpace(w.Style) == "" {
		return fmt.Errorf("wall edge %d style %q: %w", w.Edge, w.Style, ErrInvalidValue)
	}
	for _, existing := range p.walls {
		if existing.TileX == w.TileX && existing.TileY == w.TileY && existing.Edge == w.Edge {
			return ErrOccupied
		}
	}
	p.walls = append(p.walls, w)
	return nil
}

// Walls returns a copy of all walls.
func (p *Park) Walls() []Wall { return append([]Wall(nil), p.walls...) }

// PlaceTrack adds a piece of ride track.
func (p *Park) PlaceTrack(piece TrackPiece) error {
	if !inMap(int(piece.TileX), int(piece.TileY)) {
		return fmt.Errorf("track tile (%d,%d): %w", piece.TileX, piece.TileY, ErrOutOfBounds)
	}
	if piece.Direction > 3 || strings.TrimSpace(piece.RideType) == "" {
		return fmt.Errorf("track direction %d ride %q: %w", piece.Direction, piece.RideType, ErrInvalidValue)
	}
	for _, existing := range p.tracks {
		if existing.TileX == piece.TileX && existing.TileY == piece.TileY && existing.Height == piece.Height {
			return ErrOccupied
		}
	}
	p.tracks = append(p.tracks, piece)
	return nil
}

// Tracks returns a copy of all track pieces.
func (p *Park) Tracks() []TrackPiece { return append([]TrackPiece(nil), p.tracks...) }

// SpawnEntity claims the first free entity slot at the given world position.
func (p *Park) SpawnEntity(kind EntityKind, x, y int32) (Entity, error) {
	if kind == KindNull {
		return Entity{}, fmt.Errorf("entity kind null: %w", ErrInvalidValue)
	}
	tx, ty := int(x/TileSize), int(y/TileSize)
	if x < 0 || y < 0 || !inMap(tx, ty) {
		return Entity{}, fmt.Errorf("spawn (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	for i := range p.entities {
		if p.entities[i].Kind != KindNull {
			continue
		}
		p.entities[i] = Entity{
			ID:        uint16(i),
			Kind:      kind,
			X:         x,
			Y:         y,
			Z:         int32(p.land[ty*MapSize+tx]) * HeightStep,
			Direction: uint8(p.rng.Next() & 3),
			Energy:    255,
			Cash:      int32(p.rng.Intn(100)) + 20,
		}
		return p.entities[i], nil
	}
	return Entity{}, ErrNoFreeEntity
}

// Entity returns the entity in a slot.
func (p *Park) Entity(id uint16) (Entity, bool) {
	if int(id) >= len(p.entities) || p.entities[id].Kind == KindNull {
		return Entity{}, false
	}
	return p.entities[id], true
}

// MutateEntity applies fn to a live entity. Used by tooling that injects divergence.
func (p *Park) MutateEntity(id uint16, fn func(*Entity)) bool {
	if int(id) >= len(p.entities) || p.entities[id].Kind == KindNull || fn == nil {
		return false
	}
	fn(&p.entities[id])
	p.entities[id].ID = id
	return true
}

// Entities returns every live entity ordered by slot.
func (p *Park) Entities() []Entity {
	out := make([]Entity, 0, 16)
	for _, e := range p.entities {
		if e.Kind != KindNull {
			out = append(out, e)
		}
	}
	return out
}

// RequiredObjects lists the object identifiers the park references.
func (p *Park) RequiredObjects() []string {
	seen := make(map[string]struct{})
	for _, w := range p.walls {
		seen[w.Style] = struct{}{}
	}
	for _, t := range p.tracks {
		seen[t.RideType] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Tick advances the simulation by one step. Paused parks do not advance.
func (p *Park) Tick() {
	if p == nil || p.paused {
		return
	}
	p.tick++
	for i := range p.entities {
		e := &p.entities[i]
		if e.Kind == KindNull {
			continue
		}
		//1.- Staff walk at half speed.
		if e.Kind == KindStaff && p.tick%2 == 1 {
			continue
		}
		r := p.rng.Next()
		if r&7 == 0 {
			e.Direction = uint8((r >> 3) & 3)
		}
		p.step(e)
		//2.- Guests tire slowly and spend a little money as they go.
		if e.Kind == KindGuest && p.tick%64 == 0 {
			if e.Energy > 0 {
				e.Energy--
			}
			if e.Cash > 0 && (r>>8)&3 == 0 {
				e.Cash--
			}
		}
	}
}

func (p *Park) step(e *Entity) {
	dx, dy := directionDelta(e.Direction)
	nx, ny := e.X+dx, e.Y+dy
	limit := int32(MapSize*TileSize - 1)
	if nx < 0 || ny < 0 || nx > limit || ny > limit {
		//1.- Turn around at the map edge instead of leaving the park.
		e.Direction = (e.Direction + 2) & 3
		return
	}
	e.X, e.Y = nx, ny
	e.Z = int32(p.land[int(ny/TileSize)*MapSize+int(nx/TileSize)]) * HeightStep
}

func directionDelta(direction uint8) (int32, int32) {
	switch direction & 3 {
	case 0:
		return -1, 0
	case 1:
		return 0, 1
	case 2:
		return 1, 0
	default:
		return 0, -1
	}
}

func inMap(x, y int) bool {
	return x >= 0 && y >= 0 && x < MapSize && y < MapSize
}
