package drawing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkrep/core/internal/g1"
)

func TestRenderElementCancelsOffsets(t *testing.T) {
	rle, err := g1.EncodeRLE([]byte{
		0x30, TransparentIndex,
		TransparentIndex, 0x31,
	}, 2, 2)
	require.NoError(t, err)
	table := &g1.Table{}
	table.Append(g1.Element{Width: 2, Height: 2, XOffset: -7, YOffset: 5, Flags: g1.FlagRLE}, rle)
	table.Append(g1.Element{Width: 2, Height: 1, XOffset: 3}, []byte{0x40, 0x41})
	table.Append(g1.Element{Width: 2, Flags: g1.FlagPalette}, []byte{1, 2, 3, 4, 5, 6})

	dpi, err := RenderElement(table, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, TransparentIndex, TransparentIndex, 0x31}, dpi.Bits)

	dpi, err = RenderElement(table, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x41}, dpi.Bits)
	img := dpi.Image(DefaultPalette())
	require.NotNil(t, img)
	assert.Equal(t, 2, img.Bounds().Dx())

	_, err = RenderElement(table, 2)
	assert.Error(t, err)
	_, err = RenderElement(table, 3)
	assert.ErrorIs(t, err, g1.ErrIndex)
}
