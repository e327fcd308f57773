package drawing

import "parkrep/core/internal/g1"

// SpriteArgs bundles everything one blit needs. At magnifying zoom levels the source
// rectangle is expressed in destination pixels, otherwise in source pixels. Dst is the
// index in the target's Bits of the first pixel written.
type SpriteArgs struct {
	Image   ImageId
	Palette *PaletteMap
	Element g1.Element
	Pixels  []byte
	SrcX    int32
	SrcY    int32
	Width   int32
	Height  int32
	Dst     int
}

func (a *SpriteArgs) palette() *PaletteMap {
	if a.Palette == nil {
		pm := IdentityPaletteMap()
		return &pm
	}
	return a.Palette
}

type spriteFunc func(dpi *DrawPixelInfo, args *SpriteArgs)

var rleFuncs, bmpFuncs = buildSpriteFuncs()

// buildSpriteFuncs specialises both decoders once for every (op, zoom) pair.
func buildSpriteFuncs() (rle, bmp [blendOpCount][zoomLevels]spriteFunc) {
	for op := BlendOp(0); op < blendOpCount; op++ {
		blit := pixelFuncs[op]
		for z := ZoomMin; z <= ZoomMax; z++ {
			shift := z.shift()
			if z < 0 {
				rle[op][z.index()] = func(dpi *DrawPixelInfo, args *SpriteArgs) { drawRLEMagnify(dpi, args, blit, shift) }
				bmp[op][z.index()] = func(dpi *DrawPixelInfo, args *SpriteArgs) { drawBMPMagnify(dpi, args, blit, shift) }
				continue
			}
			//1.- Runs are copied verbatim only when every source pixel is sampled and nothing is translated or skipped.
			copyRuns := z == 0 && op == BlendNone
			rle[op][z.index()] = func(dpi *DrawPixelInfo, args *SpriteArgs) { drawRLEMinify(dpi, args, blit, shift, copyRuns) }
			bmp[op][z.index()] = func(dpi *DrawPixelInfo, args *SpriteArgs) { drawBMPMinify(dpi, args, blit, shift) }
		}
	}
	return rle, bmp
}

// BlendOpFor picks the blend op an image uses for an element.
func BlendOpFor(image ImageId, e g1.Element) BlendOp {
	if e.IsRLE() {
		switch {
		case image.HasSecondary():
			return BlendTransparent | BlendSrc
		case image.IsBlended():
			return BlendTransparent | BlendDst
		case image.IsRemap():
			return BlendTransparent | BlendSrc
		default:
			return BlendNone
		}
	}
	switch {
	case image.HasSecondary():
		return BlendTransparent | BlendSrc
	case image.IsBlended():
		return BlendTransparent | BlendSrc | BlendDst
	case image.IsRemap():
		return BlendTransparent | BlendSrc
	case e.Flags.Has(g1.FlagHasTransparency):
		return BlendTransparent
	default:
		return BlendNone
	}
}

// DrawRLE decodes an RLE element into dpi at dpi's zoom level.
func DrawRLE(dpi *DrawPixelInfo, args *SpriteArgs) {
	if !dpi.Zoom.Valid() {
		return
	}
	rleFuncs[BlendOpFor(args.Image, args.Element)][dpi.Zoom.index()](dpi, args)
}

// DrawBMP copies a bitmap element into dpi at dpi's zoom level.
func DrawBMP(dpi *DrawPixelInfo, args *SpriteArgs) {
	if !dpi.Zoom.Valid() || args.Element.Flags.Has(g1.FlagNoDraw) {
		return
	}
	bmpFuncs[BlendOpFor(args.Image, args.Element)][dpi.Zoom.index()](dpi, args)
}

// Renderer draws catalog sprites. It owns the palette state, so each goroutine that
// renders needs its own Renderer.
type Renderer struct {
	sprites SpriteSource
	palette *PaletteState
}

// NewRenderer draws sprites from source using palette; a nil palette gets defaults.
func NewRenderer(source SpriteSource, palette *PaletteState) *Renderer {
	if palette == nil {
		palette = NewPaletteState(nil)
	}
	return &Renderer{sprites: source, palette: palette}
}

// Palette exposes the renderer's palette state.
func (r *Renderer) Palette() *PaletteState { return r.palette }

// DrawSprite draws image with its top-left anchor at world position (x, y).
// tertiary is the third remap colour for images that ask for one.
func (r *Renderer) DrawSprite(dpi *DrawPixelInfo, image ImageId, x, y int32, tertiary uint8) {
	if image == NoImage {
		return
	}
	pm, _ := r.palette.MapFor(image, tertiary, r.sprites)
	r.DrawSpritePaletteSet(dpi, image, x, y, &pm)
}

// DrawSpritePaletteSet draws image through an explicit palette map.
func (r *Renderer) DrawSpritePaletteSet(dpi *DrawPixelInfo, image ImageId, x, y int32, pm *PaletteMap) {
	if dpi == nil || !dpi.Zoom.Valid() || !dpi.fits() {
		return
	}
	e, px, ok := r.sprites.Sprite(image.Index())
	if !ok {
		return
	}

	zoom := dpi.Zoom
	if zoom > 0 && e.Flags.Has(g1.FlagHasZoomSprite) {
		//1.- Draw the pre-scaled sprite into a half sized view one zoom level closer.
		zoomed := *dpi
		zoomed.X >>= 1
		zoomed.Y >>= 1
		zoomed.Width >>= 1
		zoomed.Height >>= 1
		zoomed.Zoom--
		r.DrawSpritePaletteSet(&zoomed, image.WithIndex(image.Index()-uint32(e.ZoomedOffset)), x>>1, y>>1, pm)
		return
	}
	if zoom > 0 && e.Flags.Has(g1.FlagNoZoomDraw) {
		return
	}

	args, ok := clipSprite(dpi, e, x, y)
	if !ok {
		return
	}
	args.Image = image
	args.Palette = pm
	args.Pixels = px
	if e.IsRLE() {
		DrawRLE(dpi, &args)
		return
	}
	DrawBMP(dpi, &args)
}

// clipSprite positions element e at (x, y) inside dpi and returns the visible source
// rectangle and destination offset.
func clipSprite(dpi *DrawPixelInfo, e g1.Element, x, y int32) (SpriteArgs, bool) {
	zoom := dpi.Zoom
	rle := e.IsRLE()
	mask := int32(-1)
	if zoom > 0 {
		mask <<= uint(zoom)
	}
	if zoom > 0 && rle {
		x -= ^mask
		y -= ^mask
	}

	height := int32(e.Height)
	destY := y + int32(e.YOffset)
	//1.- RLE rows are not snapped to the zoom grid vertically; bitmaps are.
	if rle {
		destY -= dpi.Y
	} else {
		destY = (destY & mask) - dpi.Y
	}
	srcY := int32(0)
	if destY < 0 {
		height += destY
		if height <= 0 {
			return SpriteArgs{}, false
		}
		srcY -= destY
		destY = 0
	} else if rle && zoom > 0 {
		srcY -= destY & ^mask
		height += destY & ^mask
	}
	if destY+height > dpi.Height {
		height -= destY + height - dpi.Height
	}
	if height <= 0 {
		return SpriteArgs{}, false
	}

	width := int32(e.Width)
	destX := ((x + int32(e.XOffset) + ^mask) & mask) - dpi.X
	srcX := int32(0)
	if destX < 0 {
		width += destX
		if width <= 0 {
			return SpriteArgs{}, false
		}
		srcX -= destX
		destX = 0
	} else if rle && zoom > 0 {
		srcX -= destX & ^mask
	}
	if destX+width > dpi.Width {
		width -= destX + width - dpi.Width
		if width <= 0 {
			return SpriteArgs{}, false
		}
	}

	args := SpriteArgs{
		Element: e,
		SrcX:    srcX,
		SrcY:    srcY,
		Width:   width,
		Height:  height,
		Dst:     dpi.Offset + dpi.LineStride()*int(zoom.ApplyInversedTo(destY)) + int(zoom.ApplyInversedTo(destX)),
	}
	if zoom < 0 {
		f := zoom.Factor()
		args.SrcX *= f
		args.SrcY *= f
		args.Width *= f
		args.Height *= f
	}
	return args, true
}

// DrawSpriteMasked draws colour through mask at zoom 0. Both must be bitmaps. Pixels
// where the mask is 0 or the colour is TransparentIndex are left alone; everything
// else receives colour AND mask.
func (r *Renderer) DrawSpriteMasked(dpi *DrawPixelInfo, x, y int32, mask, colour ImageId) {
	if dpi == nil || dpi.Zoom != 0 || !dpi.fits() {
		return
	}
	me, mpx, ok := r.sprites.Sprite(mask.Index())
	if !ok {
		return
	}
	ce, cpx, ok := r.sprites.Sprite(colour.Index())
	if !ok || me.IsRLE() || ce.IsRLE() {
		return
	}

	width := min(int32(me.Width), int32(ce.Width))
	height := min(int32(me.Height), int32(ce.Height))
	x += int32(me.XOffset)
	y += int32(me.YOffset)

	left, top := max(dpi.X, x), max(dpi.Y, y)
	right, bottom := min(dpi.X+dpi.Width, x+width), min(dpi.Y+dpi.Height, y+height)
	width, height = right-left, bottom-top
	if width <= 0 || height <= 0 {
		return
	}

	skipX, skipY := left-x, top-y
	mi := int(skipY)*int(me.Width) + int(skipX)
	ci := int(skipY)*int(ce.Width) + int(skipX)
	dst := dpi.Offset + int(top-dpi.Y)*dpi.LineStride() + int(left-dpi.X)
	for row := int32(0); row < height; row++ {
		for col := 0; col < int(width); col++ {
			m, c := mpx[mi+col], cpx[ci+col]
			if m == 0 || c == TransparentIndex {
				continue
			}
			if v := c & m; v != 0 {
				dpi.Bits[dst+col] = v
			}
		}
		mi += int(me.Width)
		ci += int(ce.Width)
		dst += dpi.LineStride()
	}
}
