package g1

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkrep/core/internal/stream"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	img := []byte{
		0xFF, 0x10, 0x11, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF,
		0x20, 0xFF, 0xFF, 0x21,
	}
	rle, err := EncodeRLE(img, 4, 3)
	require.NoError(t, err)

	table := &Table{}
	table.Append(Element{Width: 2, Height: 2, XOffset: -1, YOffset: -2}, []byte{1, 2, 3, 4})
	table.Append(Element{Width: 4, Height: 3, Flags: FlagRLE}, rle)
	table.Append(Element{Width: 2, XOffset: 10, Flags: FlagPalette}, []byte{1, 2, 3, 4, 5, 6})
	return table
}

func TestWriteReadRoundTrip(t *testing.T) {
	table := sampleTable(t)
	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))
	assert.Equal(t, HeaderSize+3*RecordSize+len(table.Data), buf.Len())

	decoded, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.Elements, decoded.Elements)
	assert.Equal(t, table.Data, decoded.Data)
	require.NoError(t, decoded.Validate())
}

func TestReadRejectsShortFiles(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{1, 0}))
	require.ErrorIs(t, err, stream.ErrTruncated)

	w := stream.NewWriter()
	w.U32(2)
	w.U32(0)
	_, err = Read(bytes.NewReader(w.Bytes()))
	require.ErrorIs(t, err, ErrMalformed)

	w = stream.NewWriter()
	w.U32(0)
	w.U32(64)
	_, err = Read(bytes.NewReader(w.Bytes()))
	require.ErrorIs(t, err, stream.ErrTruncated)
}

func TestSaveAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprites", "custom.dat")
	require.NoError(t, (&Table{}).Save(path))
	empty, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	table := sampleTable(t)
	require.NoError(t, table.Save(path))
	loaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
}

func TestDataSizeAndPixels(t *testing.T) {
	table := sampleTable(t)

	size, err := table.DataSize(0)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	size, err = table.DataSize(2)
	require.NoError(t, err)
	assert.Equal(t, 6, size)

	rleSize, err := table.DataSize(1)
	require.NoError(t, err)
	assert.Equal(t, len(table.Data)-4-6, rleSize, "RLE size is measured from the last row")

	px, err := table.Pixels(1)
	require.NoError(t, err)
	assert.Len(t, px, rleSize)

	_, err = table.Pixels(3)
	require.ErrorIs(t, err, ErrIndex)
}

func TestEncodeRLELayout(t *testing.T) {
	rle, err := EncodeRLE([]byte{0xFF, 0x10, 0x11, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 4, 2)
	require.NoError(t, err)
	expected := []byte{
		0x04, 0x00, 0x08, 0x00,
		0x82, 0x01, 0x10, 0x11,
		0x80, 0x00,
	}
	assert.Equal(t, expected, rle)
}

func TestEncodeRLESplitsLongRuns(t *testing.T) {
	line := bytes.Repeat([]byte{7}, 200)
	rle, err := EncodeRLE(line, 200, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), rle[2])
	assert.Equal(t, byte(0), rle[3])
	second := 2 + 2 + 0x7F
	assert.Equal(t, byte(0x80|(200-0x7F)), rle[second])
	assert.Equal(t, byte(0x7F), rle[second+1])

	_, err = EncodeRLE(make([]byte, 300), 300, 1)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestValidateCatchesBrokenRuns(t *testing.T) {
	table := &Table{}
	table.Append(Element{Width: 2, Height: 1, Flags: FlagRLE}, []byte{0x02, 0x00, 0x83, 0x01, 1, 2, 3})
	require.ErrorIs(t, table.Validate(), ErrMalformed)
}

func TestPaletteElement(t *testing.T) {
	table := sampleTable(t)
	e, err := table.Element(2)
	require.NoError(t, err)
	px, err := table.Pixels(2)
	require.NoError(t, err)

	pal, ok := e.Palette(px)
	require.True(t, ok)
	assert.Equal(t, 10, pal.Start)
	require.Len(t, pal.Colours, 2)
	assert.Equal(t, uint8(3), pal.Colours[0].R)
	assert.Equal(t, uint8(1), pal.Colours[0].B)

	_, ok = table.Elements[0].Palette(px)
	assert.False(t, ok)
}

func TestCatalogResolvesMountsAndTempSlot(t *testing.T) {
	base := sampleTable(t)
	extra := &Table{}
	extra.Append(Element{Width: 1, Height: 1}, []byte{9})

	cat := NewCatalog()
	require.NoError(t, cat.Mount("g1", 0, base))
	require.NoError(t, cat.Mount("g2", 100, extra))
	require.Error(t, cat.Mount("dup", 1, extra), "overlapping ranges are refused")
	assert.Equal(t, 4, cat.Len())

	e, px, ok := cat.Sprite(100)
	require.True(t, ok)
	assert.Equal(t, int16(1), e.Width)
	assert.Equal(t, []byte{9}, px)

	_, _, ok = cat.Sprite(50)
	assert.False(t, ok)
	_, _, ok = cat.Sprite(NoImage)
	assert.False(t, ok)
	_, _, ok = cat.Sprite(TempIndex)
	assert.False(t, ok)

	require.NoError(t, cat.Set(TempIndex, Element{Width: 1, Height: 1}, []byte{42}))
	_, px, ok = cat.Sprite(TempIndex | 0x20000000)
	require.True(t, ok, "flag bits above the index are ignored")
	assert.Equal(t, []byte{42}, px)

	require.NoError(t, cat.Set(0, Element{Width: 1, Height: 1}, []byte{77}))
	_, px, ok = cat.Sprite(0)
	require.True(t, ok)
	assert.Equal(t, []byte{77}, px)
	require.ErrorIs(t, cat.Set(100, Element{}, nil), ErrIndex)
}
