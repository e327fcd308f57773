package drawing

import (
	"image/color"

	"parkrep/core/internal/g1"
)

// TransparentIndex is the palette index that blitters treat as "no pixel".
const TransparentIndex byte = g1.Transparent

// PaletteMap translates palette indices. A map may hold several consecutive
// translation tables; Blend selects the table by source index.
type PaletteMap struct {
	data      []byte
	numMaps   int
	mapLength int
}

var identity = func() []byte {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}()

// NewPaletteMap wraps data holding numMaps tables of mapLength entries.
func NewPaletteMap(data []byte, numMaps, mapLength int) PaletteMap {
	return PaletteMap{data: data, numMaps: numMaps, mapLength: mapLength}
}

// IdentityPaletteMap maps every index to itself.
func IdentityPaletteMap() PaletteMap { return NewPaletteMap(identity, 1, 256) }

// Len reports the number of addressable entries.
func (m PaletteMap) Len() int { return len(m.data) }

// At returns the entry for index. Out of range lookups yield 0.
func (m PaletteMap) At(index byte) byte {
	if int(index) >= len(m.data) {
		return 0
	}
	return m.data[index]
}

// Blend picks table src-1 and looks dst up in it. Out of range lookups yield 0.
func (m PaletteMap) Blend(src, dst byte) byte {
	idx := (int(src)-1)*m.mapLength + int(dst)
	if idx < 0 || idx >= len(m.data) {
		return 0
	}
	return m.data[idx]
}

// Game palette layout used by DefaultPalette: ten system colours, sixteen ramps of
// twelve shades, then a water range and a grey ramp.
const (
	rampStart  = 10
	rampShades = 12
	rampCount  = 16

	WaterStart = 230
	WaterCount = 15
)

var rampHues = [rampCount]color.RGBA{
	{0x60, 0x60, 0x60, 0xFF}, {0x90, 0x70, 0x40, 0xFF}, {0xC0, 0x60, 0x30, 0xFF}, {0xD0, 0xB0, 0x30, 0xFF},
	{0x60, 0xA0, 0x30, 0xFF}, {0x30, 0x80, 0x30, 0xFF}, {0x40, 0xA0, 0xA0, 0xFF}, {0x30, 0x60, 0xC0, 0xFF},
	{0x70, 0x40, 0xC0, 0xFF}, {0xC0, 0x40, 0xA0, 0xFF}, {0xD0, 0x30, 0x30, 0xFF}, {0xE0, 0x90, 0x60, 0xFF},
	{0x80, 0x80, 0xB0, 0xFF}, {0xA0, 0x90, 0x70, 0xFF}, {0x50, 0x70, 0x50, 0xFF}, {0xB0, 0x50, 0x50, 0xFF},
}

// DefaultPalette builds the reference game palette. Index TransparentIndex has zero alpha.
func DefaultPalette() [256]color.RGBA {
	var p [256]color.RGBA
	for i := 0; i < rampStart; i++ {
		v := uint8(i * 0x1C)
		p[i] = color.RGBA{v, v, v, 0xFF}
	}
	for r := 0; r < rampCount; r++ {
		base := rampHues[r]
		for s := 0; s < rampShades; s++ {
			//1.- Shade 0 is darkest and shade 11 brightest; scale each channel into [25%, 162%].
			scale := 64 + s*32
			p[rampStart+r*rampShades+s] = color.RGBA{
				R: scaleChannel(base.R, scale),
				G: scaleChannel(base.G, scale),
				B: scaleChannel(base.B, scale),
				A: 0xFF,
			}
		}
	}
	for i := rampStart + rampCount*rampShades; i < WaterStart; i++ {
		v := uint8(0x20 + (i-rampStart-rampCount*rampShades)*7)
		p[i] = color.RGBA{v, v, uint8(min(int(v)+0x10, 0xFF)), 0xFF}
	}
	for i := 0; i < WaterCount; i++ {
		p[WaterStart+i] = color.RGBA{R: uint8(0x20 + i*4), G: uint8(0x50 + i*6), B: uint8(0x90 + i*7), A: 0xFF}
	}
	for i := WaterStart + WaterCount; i < 256; i++ {
		v := uint8(0xA0 + (i-WaterStart-WaterCount)*6)
		p[i] = color.RGBA{v, v, v, 0xFF}
	}
	p[TransparentIndex] = color.RGBA{}
	return p
}

func scaleChannel(c uint8, scale int) uint8 {
	return uint8(min(int(c)*scale/256, 0xFF))
}

// Remap slots filled from colour palettes when a sprite carries a secondary colour.
const (
	remapPrimary   = 0xF3
	remapSecondary = 0xCA
	remapTertiary  = 0x2E
	remapLength    = 12
)

// SpriteSource resolves catalog indices to elements and pixel data.
type SpriteSource interface {
	Sprite(index uint32) (g1.Element, []byte, bool)
}

// PaletteState is the palette context of one renderer: the live game palette, the
// animation frame counter and the table mapping palette references to sprite indices.
type PaletteState struct {
	Game        [256]color.RGBA
	effectFrame uint32
	refs        []uint32
}

// NewPaletteState uses refs[i] as the sprite index of palette reference i.
func NewPaletteState(refs []uint32) *PaletteState {
	return &PaletteState{Game: DefaultPalette(), refs: append([]uint32(nil), refs...)}
}

// EffectFrame reports how many animation steps have run.
func (s *PaletteState) EffectFrame() uint32 { return s.effectFrame }

// AdvanceEffectFrame rotates the water range by one entry.
func (s *PaletteState) AdvanceEffectFrame() {
	s.effectFrame++
	water := s.Game[WaterStart : WaterStart+WaterCount]
	first := water[0]
	copy(water, water[1:])
	water[len(water)-1] = first
}

// LoadPalette copies a palette element into the game palette.
func (s *PaletteState) LoadPalette(sprites SpriteSource, index uint32) bool {
	e, px, ok := sprites.Sprite(index)
	if !ok {
		return false
	}
	pal, ok := e.Palette(px)
	if !ok {
		return false
	}
	for i, c := range pal.Colours {
		if at := pal.Start + i; at >= 0 && at < len(s.Game) {
			s.Game[at] = c
		}
	}
	return true
}

func (s *PaletteState) refSprite(sprites SpriteSource, ref uint8) (g1.Element, []byte, bool) {
	if int(ref) >= len(s.refs) {
		return g1.Element{}, nil, false
	}
	return sprites.Sprite(s.refs[ref])
}

// MapFor builds the palette map an image draws through. ok is false when the image
// asks for a palette reference that does not resolve; callers fall back to identity.
func (s *PaletteState) MapFor(image ImageId, tertiary uint8, sprites SpriteSource) (PaletteMap, bool) {
	switch {
	case image.HasSecondary():
		buf := make([]byte, 256)
		copy(buf, identity)
		//1.- Each colour palette donates its twelve shades starting at the primary slot.
		s.copyRamp(buf, remapPrimary, image.Primary(), sprites)
		s.copyRamp(buf, remapSecondary, image.Secondary(), sprites)
		if !image.IsRemap() {
			s.copyRamp(buf, remapTertiary, tertiary, sprites)
		}
		return NewPaletteMap(buf, 1, 256), true
	case image.IsRemap() || image.IsBlended():
		ref := image.PaletteRef()
		if !image.IsBlended() {
			ref &= 0x7F
		}
		e, px, ok := s.refSprite(sprites, ref)
		if !ok {
			return IdentityPaletteMap(), false
		}
		return NewPaletteMap(px, int(e.Height), int(e.Width)), true
	default:
		return IdentityPaletteMap(), true
	}
}

func (s *PaletteState) copyRamp(buf []byte, at int, ref uint8, sprites SpriteSource) {
	_, px, ok := s.refSprite(sprites, ref)
	if !ok || len(px) < remapPrimary+remapLength {
		return
	}
	copy(buf[at:at+remapLength], px[remapPrimary:remapPrimary+remapLength])
}
