package drawing

import "parkrep/core/internal/g1"

// ImageId packs a sprite index with its colouring: bits 0-18 index the catalog,
// 19-23 primary colour, 24-28 secondary colour, 19-26 palette reference and the
// three top bits select remap, blended and two-colour remap drawing.
type ImageId uint32

const (
	imageRemap     ImageId = 0x20000000
	imageBlended   ImageId = 0x40000000
	imageSecondary ImageId = 0x80000000
	imageFlags             = imageRemap | imageBlended | imageSecondary

	// NoImage never resolves to a sprite.
	NoImage ImageId = 0xFFFFFFFF
)

// NewImageId returns a plain image for a catalog index.
func NewImageId(index uint32) ImageId { return ImageId(index & g1.IndexMask) }

func (id ImageId) Index() uint32 { return uint32(id) & g1.IndexMask }

func (id ImageId) IsRemap() bool      { return id&imageRemap != 0 }
func (id ImageId) IsBlended() bool    { return id&imageBlended != 0 }
func (id ImageId) HasSecondary() bool { return id&imageSecondary != 0 }

// HasFlags reports whether any colouring is requested.
func (id ImageId) HasFlags() bool { return id&imageFlags != 0 }

func (id ImageId) Primary() uint8    { return uint8(id>>19) & 0x1F }
func (id ImageId) Secondary() uint8  { return uint8(id>>24) & 0x1F }
func (id ImageId) PaletteRef() uint8 { return uint8(id >> 19) }

// WithIndex keeps the colouring and replaces the index.
func (id ImageId) WithIndex(index uint32) ImageId {
	return id&^ImageId(g1.IndexMask) | ImageId(index&g1.IndexMask)
}

// WithPrimary remaps the sprite's primary colour range.
func (id ImageId) WithPrimary(colour uint8) ImageId {
	return ImageId(id.Index()) | imageRemap | ImageId(colour&0x1F)<<19
}

// WithRemap draws through the palette referenced by ref.
func (id ImageId) WithRemap(ref uint8) ImageId {
	return ImageId(id.Index()) | imageRemap | ImageId(ref&0x7F)<<19
}

// WithBlend draws a translucent sprite through the blend palette referenced by ref.
func (id ImageId) WithBlend(ref uint8) ImageId {
	return ImageId(id.Index()) | imageBlended | ImageId(ref)<<19
}

// WithSecondary remaps both the primary and secondary colour ranges.
func (id ImageId) WithSecondary(primary, secondary uint8) ImageId {
	return ImageId(id.Index()) | imageRemap | imageSecondary |
		ImageId(primary&0x1F)<<19 | ImageId(secondary&0x1F)<<24
}

// WithTertiary remaps primary and secondary and takes the third range from the tertiary
// colour passed at draw time.
func (id ImageId) WithTertiary(primary, secondary uint8) ImageId {
	return ImageId(id.Index()) | imageSecondary |
		ImageId(primary&0x1F)<<19 | ImageId(secondary&0x1F)<<24
}
