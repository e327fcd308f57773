package drawing

import (
	"image"
	"image/color"
)

// DrawPixelInfo is a render target. X, Y, Width and Height are world units; Pitch
// is the number of extra bytes after each row and Offset is where this view starts
// inside Bits.
type DrawPixelInfo struct {
	Bits   []byte
	Offset int
	X, Y   int32
	Width  int32
	Height int32
	Pitch  int32
	Zoom   ZoomLevel
}

// NewDrawPixelInfo allocates a zoom 0 target filled with TransparentIndex.
func NewDrawPixelInfo(width, height int32) *DrawPixelInfo {
	bits := make([]byte, int(width)*int(height))
	for i := range bits {
		bits[i] = TransparentIndex
	}
	return &DrawPixelInfo{Bits: bits, Width: width, Height: height}
}

// ScreenWidth is the number of pixels per row.
func (d *DrawPixelInfo) ScreenWidth() int32 { return d.Zoom.ApplyInversedTo(d.Width) }

// ScreenHeight is the number of rows.
func (d *DrawPixelInfo) ScreenHeight() int32 { return d.Zoom.ApplyInversedTo(d.Height) }

// LineStride is the distance in bytes between two rows.
func (d *DrawPixelInfo) LineStride() int { return int(d.ScreenWidth() + d.Pitch) }

// fits reports whether every pixel of the view lies inside Bits.
func (d *DrawPixelInfo) fits() bool {
	w, h := d.ScreenWidth(), d.ScreenHeight()
	if d.Offset < 0 || w < 0 || h < 0 || d.Pitch < 0 {
		return false
	}
	if w == 0 || h == 0 {
		return true
	}
	return d.Offset+d.LineStride()*int(h-1)+int(w) <= len(d.Bits)
}

// Crop returns a view of the world rectangle (left, top, width, height) clamped to
// this target. ok is false when nothing remains.
func (d *DrawPixelInfo) Crop(left, top, width, height int32) (DrawPixelInfo, bool) {
	right, bottom := left+width, top+height
	left, top = max(left, d.X), max(top, d.Y)
	right, bottom = min(right, d.X+d.Width), min(bottom, d.Y+d.Height)
	if right <= left || bottom <= top {
		return DrawPixelInfo{}, false
	}
	out := *d
	out.X, out.Y = left, top
	out.Width, out.Height = right-left, bottom-top
	out.Offset = d.Offset +
		int(d.Zoom.ApplyInversedTo(top-d.Y))*d.LineStride() +
		int(d.Zoom.ApplyInversedTo(left-d.X))
	out.Pitch = int32(d.LineStride()) - out.ScreenWidth()
	return out, true
}

// Image copies the view into a paletted image. It returns nil when the view does not
// fit its buffer.
func (d *DrawPixelInfo) Image(palette [256]color.RGBA) *image.Paletted {
	if !d.fits() {
		return nil
	}
	w, h := int(d.ScreenWidth()), int(d.ScreenHeight())
	pal := make(color.Palette, len(palette))
	for i, c := range palette {
		pal[i] = c
	}
	img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	stride := d.LineStride()
	for y := 0; y < h; y++ {
		row := d.Offset + y*stride
		copy(img.Pix[y*img.Stride:y*img.Stride+w], d.Bits[row:row+w])
	}
	return img
}
