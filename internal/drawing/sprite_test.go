package drawing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkrep/core/internal/g1"
)

func catalogOf(t *testing.T, elements []g1.Element, pixels [][]byte) *g1.Catalog {
	t.Helper()
	table := &g1.Table{}
	for i := range elements {
		table.Append(elements[i], pixels[i])
	}
	cat := g1.NewCatalog()
	require.NoError(t, cat.Mount("test", 0, table))
	return cat
}

func filled(width, height int32, zoom ZoomLevel, value byte) *DrawPixelInfo {
	dpi := &DrawPixelInfo{Width: width, Height: height, Zoom: zoom}
	dpi.Bits = bytes.Repeat([]byte{value}, int(dpi.ScreenWidth()*dpi.ScreenHeight()))
	return dpi
}

func TestRLESingleRunAtZoomZero(t *testing.T) {
	cat := catalogOf(t,
		[]g1.Element{{Width: 3, Height: 1, Flags: g1.FlagRLE}},
		[][]byte{{0x02, 0x00, 0x83, 0x00, 0x10, 0x20, 0x30}})
	dpi := filled(3, 1, 0, 0)

	NewRenderer(cat, nil).DrawSprite(dpi, NewImageId(0), 0, 0, 0)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, dpi.Bits)
}

func TestRLECopyPathMatchesBlendPath(t *testing.T) {
	img := []byte{
		1, 2, 3, 0xFF, 5, 6,
		0xFF, 0xFF, 9, 10, 11, 0xFF,
		13, 0xFF, 15, 16, 0xFF, 18,
	}
	rle, err := g1.EncodeRLE(img, 6, 3)
	require.NoError(t, err)
	e := g1.Element{Width: 6, Height: 3, Flags: g1.FlagRLE}

	for _, srcX := range []int32{0, 1, 3} {
		fast := filled(6, 3, 0, 0x77)
		slow := filled(6, 3, 0, 0x77)
		args := SpriteArgs{Element: e, Pixels: rle, SrcX: srcX, SrcY: 0, Width: 6 - srcX, Height: 3}
		drawRLEMinify(fast, &args, pixelFuncs[BlendNone], 0, true)
		drawRLEMinify(slow, &args, pixelFuncs[BlendNone], 0, false)
		assert.Equal(t, slow.Bits, fast.Bits, "srcX %d", srcX)
	}
}

func TestRLEMagnifyNegativeSourceRow(t *testing.T) {
	rle := []byte{
		0x04, 0x00, 0x08, 0x00,
		0x82, 0x00, 0x11, 0x12,
		0x82, 0x00, 0x21, 0x22,
	}
	e := g1.Element{Width: 2, Height: 2, Flags: g1.FlagRLE}
	blit := pixelFuncs[BlendNone]
	const none = TransparentIndex

	aligned := filled(2, 2, -1, none)
	drawRLEMagnify(aligned, &SpriteArgs{Element: e, Pixels: rle, Width: 4, Height: 4}, blit, 1)
	assert.Equal(t, []byte{
		0x11, 0x11, 0x12, 0x12,
		0x11, 0x11, 0x12, 0x12,
		0x21, 0x21, 0x22, 0x22,
		0x21, 0x21, 0x22, 0x22,
	}, aligned.Bits)

	shifted := filled(2, 2, -1, none)
	drawRLEMagnify(shifted, &SpriteArgs{Element: e, Pixels: rle, SrcY: -1, Width: 4, Height: 4}, blit, 1)
	assert.Equal(t, []byte{
		none, none, none, none,
		0x11, 0x11, 0x12, 0x12,
		0x21, 0x21, 0x22, 0x22,
		none, none, none, none,
	}, shifted.Bits, "row 0 is decoded first, one scanline lower")
}

func TestRLEMinifyRoundsRunStartUp(t *testing.T) {
	rle := []byte{0x02, 0x00, 0x83, 0x01, 0x10, 0x20, 0x30}
	e := g1.Element{Width: 4, Height: 1, Flags: g1.FlagRLE}
	dpi := filled(4, 2, 1, 0)
	drawRLEMinify(dpi, &SpriteArgs{Element: e, Pixels: rle, Width: 4, Height: 1}, pixelFuncs[BlendNone], 1, false)
	assert.Equal(t, []byte{0x00, 0x20}, dpi.Bits, "x=1 rounds to 2 and samples the second run pixel")
}

func TestBMPClippedAtZoomZero(t *testing.T) {
	cat := catalogOf(t,
		[]g1.Element{{Width: 3, Height: 3, XOffset: -1, YOffset: -1}},
		[][]byte{{1, 2, 3, 4, 5, 6, 7, 8, 9}})
	dpi := filled(2, 2, 0, 0)

	NewRenderer(cat, nil).DrawSprite(dpi, NewImageId(0), 0, 0, 0)
	assert.Equal(t, []byte{5, 6, 8, 9}, dpi.Bits)
}

func TestBMPOffscreenDrawsNothing(t *testing.T) {
	cat := catalogOf(t, []g1.Element{{Width: 2, Height: 2}}, [][]byte{{1, 2, 3, 4}})
	dpi := filled(2, 2, 0, 0)
	r := NewRenderer(cat, nil)

	r.DrawSprite(dpi, NewImageId(0), 5, 0, 0)
	r.DrawSprite(dpi, NewImageId(0), 0, -2, 0)
	r.DrawSprite(dpi, NoImage, 0, 0, 0)
	r.DrawSprite(dpi, NewImageId(42), 0, 0, 0)
	assert.Equal(t, []byte{0, 0, 0, 0}, dpi.Bits)
}

func TestBMPTransparencyFlag(t *testing.T) {
	cat := catalogOf(t,
		[]g1.Element{{Width: 2, Height: 1, Flags: g1.FlagHasTransparency}, {Width: 2, Height: 1}},
		[][]byte{{TransparentIndex, 7}, {TransparentIndex, 7}})
	r := NewRenderer(cat, nil)

	dpi := filled(2, 1, 0, 0)
	r.DrawSprite(dpi, NewImageId(0), 0, 0, 0)
	assert.Equal(t, []byte{0, 7}, dpi.Bits)

	dpi = filled(2, 1, 0, 0)
	r.DrawSprite(dpi, NewImageId(1), 0, 0, 0)
	assert.Equal(t, []byte{TransparentIndex, 7}, dpi.Bits, "opaque bitmaps copy the sentinel")
}

func TestBMPMinifyAndMagnify(t *testing.T) {
	cat := catalogOf(t,
		[]g1.Element{{Width: 4, Height: 2}, {Width: 2, Height: 2}},
		[][]byte{{1, 2, 3, 4, 5, 6, 7, 8}, {1, 2, 3, 4}})
	r := NewRenderer(cat, nil)

	small := filled(4, 2, 1, 0)
	r.DrawSprite(small, NewImageId(0), 0, 0, 0)
	assert.Equal(t, []byte{1, 3}, small.Bits)

	large := filled(2, 2, -1, 0)
	r.DrawSprite(large, NewImageId(1), 0, 0, 0)
	assert.Equal(t, []byte{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, large.Bits)
}

func TestZoomSpriteRedirectAndNoZoomDraw(t *testing.T) {
	cat := catalogOf(t,
		[]g1.Element{
			{Width: 2, Height: 2},
			{Width: 4, Height: 4, Flags: g1.FlagHasZoomSprite, ZoomedOffset: 1},
			{Width: 2, Height: 2, Flags: g1.FlagNoZoomDraw},
		},
		[][]byte{
			{1, 1, 1, 1},
			bytes.Repeat([]byte{9}, 16),
			{5, 5, 5, 5},
		})
	r := NewRenderer(cat, nil)

	dpi := filled(4, 4, 1, 0)
	r.DrawSprite(dpi, NewImageId(1), 0, 0, 0)
	assert.Equal(t, []byte{1, 1, 1, 1}, dpi.Bits, "the pre-scaled copy is drawn")

	dpi = filled(4, 4, 1, 0)
	r.DrawSprite(dpi, NewImageId(2), 0, 0, 0)
	assert.Equal(t, []byte{0, 0, 0, 0}, dpi.Bits)

	dpi = filled(2, 2, 0, 0)
	r.DrawSprite(dpi, NewImageId(2), 0, 0, 0)
	assert.Equal(t, []byte{5, 5, 5, 5}, dpi.Bits)
}

func remapSprite(start byte) []byte {
	px := make([]byte, 256)
	copy(px, identity)
	for i := 0; i < remapLength; i++ {
		px[remapPrimary+i] = start + byte(i)
	}
	return px
}

func TestRemapComposition(t *testing.T) {
	cat := catalogOf(t,
		[]g1.Element{
			{Width: 256, Height: 1},
			{Width: 256, Height: 1},
			{Width: 256, Height: 1},
			{Width: 3, Height: 1, Flags: g1.FlagRLE},
		},
		[][]byte{
			remapSprite(0xA0),
			remapSprite(0xB0),
			remapSprite(0xC0),
			{0x02, 0x00, 0x83, 0x00, remapPrimary, remapSecondary, remapTertiary},
		})
	state := NewPaletteState([]uint32{0, 1, 2})

	pm, ok := state.MapFor(NewImageId(3).WithSecondary(0, 1), 2, cat)
	require.True(t, ok)
	assert.Equal(t, byte(0xA0), pm.At(remapPrimary))
	assert.Equal(t, byte(0xB0), pm.At(remapSecondary))
	assert.Equal(t, byte(remapTertiary), pm.At(remapTertiary), "tertiary only applies without the remap bit")

	pm, ok = state.MapFor(NewImageId(3).WithTertiary(0, 1), 2, cat)
	require.True(t, ok)
	assert.Equal(t, byte(0xC0+3), pm.At(remapTertiary+3))

	pm, ok = state.MapFor(NewImageId(3).WithRemap(1), 0, cat)
	require.True(t, ok)
	assert.Equal(t, byte(0xB0), pm.At(remapPrimary))

	_, ok = state.MapFor(NewImageId(3).WithRemap(40), 0, cat)
	assert.False(t, ok)

	dpi := filled(3, 1, 0, 0)
	NewRenderer(cat, state).DrawSprite(dpi, NewImageId(3).WithTertiary(0, 1), 0, 0, 2)
	assert.Equal(t, []byte{0xA0, 0xB0, 0xC0}, dpi.Bits)
}

func TestDrawSpriteMasked(t *testing.T) {
	cat := catalogOf(t,
		[]g1.Element{{Width: 2, Height: 2}, {Width: 2, Height: 2}},
		[][]byte{{0xFF, 0x00, 0x0F, 0xFF}, {0x12, 0x34, 0x56, TransparentIndex}})
	r := NewRenderer(cat, nil)

	dpi := filled(2, 2, 0, 0x77)
	r.DrawSpriteMasked(dpi, 0, 0, NewImageId(0), NewImageId(1))
	assert.Equal(t, []byte{0x12, 0x77, 0x06, 0x77}, dpi.Bits)

	zoomed := filled(4, 4, 1, 0x77)
	r.DrawSpriteMasked(zoomed, 0, 0, NewImageId(0), NewImageId(1))
	assert.Equal(t, []byte{0x77, 0x77, 0x77, 0x77}, zoomed.Bits, "masked drawing only runs at zoom 0")
}

func TestCropTargetsSubRectangle(t *testing.T) {
	cat := catalogOf(t, []g1.Element{{Width: 1, Height: 1}}, [][]byte{{9}})
	dpi := filled(4, 4, 0, 0)

	view, ok := dpi.Crop(1, 1, 2, 2)
	require.True(t, ok)
	assert.Equal(t, 5, view.Offset)
	assert.Equal(t, int32(2), view.Pitch)
	assert.Equal(t, 4, view.LineStride())

	NewRenderer(cat, nil).DrawSprite(&view, NewImageId(0), 2, 2, 0)
	assert.Equal(t, byte(9), dpi.Bits[10])

	_, ok = dpi.Crop(10, 10, 2, 2)
	assert.False(t, ok)
}

func TestImageExportAndPaletteAnimation(t *testing.T) {
	dpi := NewDrawPixelInfo(2, 1)
	dpi.Bits[0] = 3
	palette := DefaultPalette()
	img := dpi.Image(palette)
	require.NotNil(t, img)
	assert.Equal(t, []byte{3, TransparentIndex}, img.Pix)
	_, _, _, alpha := img.Palette[TransparentIndex].RGBA()
	assert.Zero(t, alpha)

	state := NewPaletteState(nil)
	next := state.Game[WaterStart+1]
	state.AdvanceEffectFrame()
	assert.Equal(t, next, state.Game[WaterStart])
	assert.Equal(t, uint32(1), state.EffectFrame())
}

func TestBlendOpSelection(t *testing.T) {
	rle := g1.Element{Flags: g1.FlagRLE}
	bmp := g1.Element{}
	see := g1.Element{Flags: g1.FlagHasTransparency}
	id := NewImageId(1)

	assert.Equal(t, BlendNone, BlendOpFor(id, rle))
	assert.Equal(t, BlendTransparent|BlendDst, BlendOpFor(id.WithBlend(1), rle))
	assert.Equal(t, BlendTransparent|BlendSrc, BlendOpFor(id.WithPrimary(2), rle))
	assert.Equal(t, BlendTransparent|BlendSrc|BlendDst, BlendOpFor(id.WithBlend(1), bmp))
	assert.Equal(t, BlendTransparent, BlendOpFor(id, see))
	assert.Equal(t, BlendNone, BlendOpFor(id, bmp))
	assert.Equal(t, BlendTransparent|BlendSrc, BlendOpFor(id.WithTertiary(1, 2), bmp))
}
