package g1

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// ImportOptions control how an image becomes a sprite element.
type ImportOptions struct {
	XOffset int16
	YOffset int16
	// KeepPalette copies the indices of a paletted image instead of matching colours.
	KeepPalette bool
}

// Import converts img into an RLE element and its pixel data. Pixels with less than
// half alpha become Transparent; the rest map to the closest opaque entry of palette.
func Import(img image.Image, palette color.Palette, opts ImportOptions) (Element, []byte, error) {
	if img == nil {
		return Element{}, nil, fmt.Errorf("import: nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > math.MaxInt16 || h > math.MaxInt16 {
		return Element{}, nil, fmt.Errorf("import %dx%d: %w", w, h, ErrTooLarge)
	}
	indexed, isIndexed := img.(*image.Paletted)
	if opts.KeepPalette && !isIndexed {
		return Element{}, nil, fmt.Errorf("import: keeping the palette needs an indexed image")
	}
	if !opts.KeepPalette && len(palette) == 0 {
		return Element{}, nil, fmt.Errorf("import: empty palette")
	}

	pixels := make([]byte, w*h)
	matcher := newColourMatcher(palette)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if opts.KeepPalette {
				pixels[i] = indexed.ColorIndexAt(b.Min.X+x, b.Min.Y+y)
				continue
			}
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			if c.A < 0x80 {
				pixels[i] = Transparent
				continue
			}
			pixels[i] = matcher.index(c)
		}
	}

	data, err := EncodeRLE(pixels, w, h)
	if err != nil {
		return Element{}, nil, err
	}
	e := Element{
		Width:   int16(w),
		Height:  int16(h),
		XOffset: opts.XOffset,
		YOffset: opts.YOffset,
		Flags:   FlagRLE,
	}
	return e, data, nil
}

// colourMatcher memoises nearest palette lookups; sprites reuse few colours.
type colourMatcher struct {
	palette color.Palette
	cache   map[color.NRGBA]byte
}

func newColourMatcher(palette color.Palette) *colourMatcher {
	return &colourMatcher{palette: palette, cache: make(map[color.NRGBA]byte)}
}

func (m *colourMatcher) index(c color.NRGBA) byte {
	if idx, ok := m.cache[c]; ok {
		return idx
	}
	best, bestDist := 0, math.MaxInt
	for i, entry := range m.palette {
		if i == int(Transparent) || i > 0xFF {
			continue
		}
		p := color.NRGBAModel.Convert(entry).(color.NRGBA)
		if p.A == 0 {
			continue
		}
		dr, dg, db := int(c.R)-int(p.R), int(c.G)-int(p.G), int(c.B)-int(p.B)
		if dist := dr*dr + dg*dg + db*db; dist < bestDist {
			best, bestDist = i, dist
		}
	}
	m.cache[c] = byte(best)
	return byte(best)
}
