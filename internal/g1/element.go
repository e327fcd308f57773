// Package g1 reads, writes and indexes G1 sprite tables: a header, one fixed size
// record per sprite and a shared pixel blob. Offsets stay relative to the blob and
// pixel slices are computed on demand.
package g1

import (
	"errors"
	"image/color"
)

// Flags describe how an element's pixels are stored and drawn.
type Flags uint16

const (
	// FlagHasTransparency marks a bitmap whose sentinel pixels must be skipped.
	FlagHasTransparency Flags = 1 << 0
	// FlagNoDraw marks a bitmap the blitter must never copy.
	FlagNoDraw Flags = 1 << 1
	// FlagRLE marks run-length encoded pixels.
	FlagRLE Flags = 1 << 2
	// FlagPalette marks a palette record: Width colours starting at XOffset.
	FlagPalette Flags = 1 << 3
	// FlagHasZoomSprite means a pre-scaled copy lives ZoomedOffset entries earlier.
	FlagHasZoomSprite Flags = 1 << 4
	// FlagNoZoomDraw hides the element at every zoom level above zero.
	FlagNoZoomDraw Flags = 1 << 5
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

// RecordSize is the on-disk size of one element record.
const RecordSize = 16

// HeaderSize is the on-disk size of the table header.
const HeaderSize = 8

var (
	// ErrIndex reports an element index outside the table.
	ErrIndex = errors.New("g1: element index out of range")
	// ErrMalformed reports element data that does not fit the blob or breaks the RLE layout.
	ErrMalformed = errors.New("g1: malformed element data")
	// ErrTooLarge reports an image the encoder cannot represent.
	ErrTooLarge = errors.New("g1: image too large to encode")
)

// Element is one sprite record. Offset is relative to the owning table's data blob.
type Element struct {
	Offset       uint32
	Width        int16
	Height       int16
	XOffset      int16
	YOffset      int16
	Flags        Flags
	ZoomedOffset uint16
}

// IsRLE reports whether the element is run-length encoded.
func (e Element) IsRLE() bool { return e.Flags.Has(FlagRLE) }

// IsPalette reports whether the element holds palette colours instead of pixels.
func (e Element) IsPalette() bool { return e.Flags.Has(FlagPalette) }

// Palette describes the colours carried by a palette element.
type Palette struct {
	Start   int
	Colours []color.RGBA
}

// Palette decodes a palette element's BGR triplets. ok is false for other elements or
// when the data is short.
func (e Element) Palette(data []byte) (Palette, bool) {
	if !e.IsPalette() || e.Width < 0 || len(data) < int(e.Width)*3 {
		return Palette{}, false
	}
	out := Palette{Start: int(e.XOffset), Colours: make([]color.RGBA, e.Width)}
	for i := range out.Colours {
		b, g, r := data[i*3], data[i*3+1], data[i*3+2]
		out.Colours[i] = color.RGBA{R: r, G: g, B: b, A: 0xFF}
	}
	return out, true
}
