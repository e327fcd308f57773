package actions

import (
	"errors"

	"parkrep/core/internal/park"
	"parkrep/core/internal/stream"
)

const (
	TypeParkSetName Type = iota
	TypeCheatSet
	TypeLandSetHeight
	TypeWallPlace
	TypeTrackPlace
	TypeGuestSpawn
	TypeParkSetEntranceFee
)

func init() {
	Register(TypeParkSetName, func() Action { return &ParkSetName{} })
	Register(TypeCheatSet, func() Action { return &CheatSet{} })
	Register(TypeLandSetHeight, func() Action { return &LandSetHeight{} })
	Register(TypeWallPlace, func() Action { return &WallPlace{} })
	Register(TypeTrackPlace, func() Action { return &TrackPlace{} })
	Register(TypeGuestSpawn, func() Action { return &GuestSpawn{} })
	Register(TypeParkSetEntranceFee, func() Action { return &ParkSetEntranceFee{} })
}

func failure(err error) Result {
	status := StatusInvalidParameters
	switch {
	case errors.Is(err, park.ErrOccupied):
		status = StatusDisallowed
	case errors.Is(err, park.ErrNoFreeEntity):
		status = StatusNoFreeElements
	}
	return Result{Status: status, Message: err.Error(), Position: park.NullCoords()}
}

func tileCentre(x, y uint8, height int32) park.Coords {
	return park.Coords{
		X: int32(x)*park.TileSize + park.TileSize/2,
		Y: int32(y)*park.TileSize + park.TileSize/2,
		Z: height * park.HeightStep,
	}
}

// ParkSetName renames the park.
type ParkSetName struct {
	Base
	Name string
}

func (*ParkSetName) Type() Type               { return TypeParkSetName }
func (*ParkSetName) AllowedWhilePaused() bool { return true }

func (a *ParkSetName) Serialise(w *stream.Writer) {
	a.serialiseBase(w)
	w.String(a.Name)
}

func (a *ParkSetName) Deserialise(r *stream.Reader) error {
	a.deserialiseBase(r)
	a.Name = r.String()
	return r.Err()
}

func (a *ParkSetName) Execute(p *park.Park) Result {
	if err := p.SetName(a.Name); err != nil {
		return failure(err)
	}
	return Result{Position: park.NullCoords()}
}

// CheatSet toggles a cheat.
type CheatSet struct {
	Base
	Cheat park.CheatType
	Value int32
}

func (*CheatSet) Type() Type               { return TypeCheatSet }
func (*CheatSet) AllowedWhilePaused() bool { return true }

func (a *CheatSet) Serialise(w *stream.Writer) {
	a.serialiseBase(w)
	w.U32(uint32(a.Cheat))
	w.I32(a.Value)
}

func (a *CheatSet) Deserialise(r *stream.Reader) error {
	a.deserialiseBase(r)
	a.Cheat = park.CheatType(r.U32())
	a.Value = r.I32()
	return r.Err()
}

func (a *CheatSet) Execute(p *park.Park) Result {
	if err := p.SetCheat(a.Cheat, a.Value); err != nil {
		return failure(err)
	}
	return Result{Position: park.NullCoords()}
}

// LandSetHeight raises or lowers one tile.
type LandSetHeight struct {
	Base
	TileX  uint8
	TileY  uint8
	Height uint8
}

func (*LandSetHeight) Type() Type { return TypeLandSetHeight }

func (a *LandSetHeight) Serialise(w *stream.Writer) {
	a.serialiseBase(w)
	w.U8(a.TileX)
	w.U8(a.TileY)
	w.U8(a.Height)
}

func (a *LandSetHeight) Deserialise(r *stream.Reader) error {
	a.deserialiseBase(r)
	a.TileX, a.TileY, a.Height = r.U8(), r.U8(), r.U8()
	return r.Err()
}

func (a *LandSetHeight) Execute(p *park.Park) Result {
	if err := p.SetLandHeight(int(a.TileX), int(a.TileY), a.Height); err != nil {
		return failure(err)
	}
	return Result{Position: tileCentre(a.TileX, a.TileY, int32(a.Height))}
}

// WallPlace builds a wall on a tile edge.
type WallPlace struct {
	Base
	TileX uint8
	TileY uint8
	Edge  uint8
	Style string
}

func (*WallPlace) Type() Type { return TypeWallPlace }

func (a *WallPlace) Serialise(w *stream.Writer) {
	a.serialiseBase(w)
	w.U8(a.TileX)
	w.U8(a.TileY)
	w.U8(a.Edge)
	w.String(a.Style)
}

func (a *WallPlace) Deserialise(r *stream.Reader) error {
	a.deserialiseBase(r)
	a.TileX, a.TileY, a.Edge = r.U8(), r.U8(), r.U8()
	a.Style = r.String()
	return r.Err()
}

func (a *WallPlace) Execute(p *park.Park) Result {
	if err := p.PlaceWall(park.Wall{TileX: a.TileX, TileY: a.TileY, Edge: a.Edge, Style: a.Style}); err != nil {
		return failure(err)
	}
	height, _ := p.LandHeight(int(a.TileX), int(a.TileY))
	return Result{Position: tileCentre(a.TileX, a.TileY, int32(height))}
}

// TrackPlace lays one piece of ride track.
type TrackPlace struct {
	Base
	TileX     uint8
	TileY     uint8
	Height    uint8
	Direction uint8
	RideType  string
}

func (*TrackPlace) Type() Type { return TypeTrackPlace }

func (a *TrackPlace) Serialise(w *stream.Writer) {
	a.serialiseBase(w)
	w.U8(a.TileX)
	w.U8(a.TileY)
	w.U8(a.Height)
	w.U8(a.Direction)
	w.String(a.RideType)
}

func (a *TrackPlace) Deserialise(r *stream.Reader) error {
	a.deserialiseBase(r)
	a.TileX, a.TileY, a.Height, a.Direction = r.U8(), r.U8(), r.U8(), r.U8()
	a.RideType = r.String()
	return r.Err()
}

func (a *TrackPlace) Execute(p *park.Park) Result {
	piece := park.TrackPiece{TileX: a.TileX, TileY: a.TileY, Height: a.Height, Direction: a.Direction, RideType: a.RideType}
	if err := p.PlaceTrack(piece); err != nil {
		return failure(err)
	}
	return Result{Position: tileCentre(a.TileX, a.TileY, int32(a.Height))}
}

// GuestSpawn introduces a guest or staff member at a world position.
type GuestSpawn struct {
	Base
	Staff bool
	X     int32
	Y     int32
}

func (*GuestSpawn) Type() Type { return TypeGuestSpawn }

func (a *GuestSpawn) Serialise(w *stream.Writer) {
	a.serialiseBase(w)
	w.Bool(a.Staff)
	w.I32(a.X)
	w.I32(a.Y)
}

func (a *GuestSpawn) Deserialise(r *stream.Reader) error {
	a.deserialiseBase(r)
	a.Staff = r.Bool()
	a.X, a.Y = r.I32(), r.I32()
	return r.Err()
}

func (a *GuestSpawn) Execute(p *park.Park) Result {
	kind := park.KindGuest
	if a.Staff {
		kind = park.KindStaff
	}
	entity, err := p.SpawnEntity(kind, a.X, a.Y)
	if err != nil {
		return failure(err)
	}
	return Result{Position: park.Coords{X: entity.X, Y: entity.Y, Z: entity.Z}}
}

// ParkSetEntranceFee changes the entrance fee.
type ParkSetEntranceFee struct {
	Base
	Fee int32
}

func (*ParkSetEntranceFee) Type() Type               { return TypeParkSetEntranceFee }
func (*ParkSetEntranceFee) AllowedWhilePaused() bool { return true }

func (a *ParkSetEntranceFee) Serialise(w *stream.Writer) {
	a.serialiseBase(w)
	w.I32(a.Fee)
}

func (a *ParkSetEntranceFee) Deserialise(r *stream.Reader) error {
	a.deserialiseBase(r)
	a.Fee = r.I32()
	return r.Err()
}

func (a *ParkSetEntranceFee) Execute(p *park.Park) Result {
	if err := p.SetEntranceFee(a.Fee); err != nil {
		return failure(err)
	}
	return Result{Position: park.NullCoords()}
}
