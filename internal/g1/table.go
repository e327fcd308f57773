package g1

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"parkrep/core/internal/stream"
)

// maxEntries bounds the record table so a corrupt header cannot force a huge allocation.
const maxEntries = 1 << 20

// Table is an in-memory sprite file.
type Table struct {
	Elements []Element
	Data     []byte
}

// Len reports the number of elements.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Elements)
}

// Read decodes a sprite file: header, element records and the data blob.
func Read(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sprite file: %w", err)
	}
	in := stream.NewReader(raw)
	count := in.U32()
	total := in.U32()
	if err := in.Err(); err != nil {
		return nil, fmt.Errorf("sprite header: %w", err)
	}
	if count > maxEntries || uint64(count)*RecordSize > uint64(in.Remaining()) {
		return nil, fmt.Errorf("sprite header claims %d entries: %w", count, ErrMalformed)
	}
	t := &Table{Elements: make([]Element, count)}
	for i := range t.Elements {
		t.Elements[i] = Element{
			Offset:       in.U32(),
			Width:        in.I16(),
			Height:       in.I16(),
			XOffset:      in.I16(),
			YOffset:      in.I16(),
			Flags:        Flags(in.U16()),
			ZoomedOffset: in.U16(),
		}
	}
	if uint64(total) > uint64(in.Remaining()) {
		return nil, fmt.Errorf("sprite data needs %d bytes, have %d: %w", total, in.Remaining(), stream.ErrTruncated)
	}
	t.Data = append([]byte(nil), in.Raw(int(total))...)
	if err := in.Err(); err != nil {
		return nil, fmt.Errorf("sprite data: %w", err)
	}
	return t, nil
}

// Open reads the sprite file at path.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Write encodes the table in the sprite file layout.
func (t *Table) Write(w io.Writer) error {
	out := stream.NewWriter()
	out.U32(uint32(t.Len()))
	if t == nil {
		out.U32(0)
		_, err := w.Write(out.Bytes())
		return err
	}
	out.U32(uint32(len(t.Data)))
	for _, e := range t.Elements {
		out.U32(e.Offset)
		out.I16(e.Width)
		out.I16(e.Height)
		out.I16(e.XOffset)
		out.I16(e.YOffset)
		out.U16(uint16(e.Flags))
		out.U16(e.ZoomedOffset)
	}
	out.Raw(t.Data)
	if err := out.Err(); err != nil {
		return err
	}
	_, err := w.Write(out.Bytes())
	return err
}

// Save writes the table to path, replacing any existing file.
func (t *Table) Save(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sprite dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".g1-*")
	if err != nil {
		return fmt.Errorf("create sprite file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := t.Write(tmp); err != nil {
		return errors.Join(fmt.Errorf("write sprite file: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close sprite file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Element returns the record at index.
func (t *Table) Element(index int) (Element, error) {
	if index < 0 || index >= t.Len() {
		return Element{}, fmt.Errorf("element %d of %d: %w", index, t.Len(), ErrIndex)
	}
	return t.Elements[index], nil
}

// Append adds an element whose pixels are copied to the end of the data blob and
// returns its index. The element's Offset is overwritten.
func (t *Table) Append(e Element, pixels []byte) int {
	e.Offset = uint32(len(t.Data))
	t.Data = append(t.Data, pixels...)
	t.Elements = append(t.Elements, e)
	return len(t.Elements) - 1
}

// DataSize reports how many bytes of the blob the element at index occupies. RLE
// sizes are measured by walking the chunks of the last row.
func (t *Table) DataSize(index int) (int, error) {
	e, err := t.Element(index)
	if err != nil {
		return 0, err
	}
	if int(e.Offset) > len(t.Data) {
		return 0, fmt.Errorf("element %d offset %d beyond %d bytes: %w", index, e.Offset, len(t.Data), ErrMalformed)
	}
	size, err := DataSize(e, t.Data[e.Offset:])
	if err != nil {
		return 0, fmt.Errorf("element %d: %w", index, err)
	}
	return size, nil
}

// DataSize measures an element whose pixels start at data[0].
func DataSize(e Element, data []byte) (int, error) {
	switch {
	case e.IsPalette():
		return int(e.Width) * 3, nil
	case e.IsRLE():
		if e.Height <= 0 {
			return 0, nil
		}
		row := int(e.Height-1) * 2
		if row+1 >= len(data) {
			return 0, ErrMalformed
		}
		p := int(data[row]) | int(data[row+1])<<8
		for {
			if p+1 >= len(data) {
				return 0, ErrMalformed
			}
			chunk := data[p]
			p += 2 + int(chunk&0x7F)
			if chunk&0x80 != 0 {
				break
			}
		}
		if p > len(data) {
			return 0, ErrMalformed
		}
		return p, nil
	default:
		if e.Width < 0 || e.Height < 0 {
			return 0, ErrMalformed
		}
		return int(e.Width) * int(e.Height), nil
	}
}

// Pixels returns the bytes belonging to the element at index.
func (t *Table) Pixels(index int) ([]byte, error) {
	size, err := t.DataSize(index)
	if err != nil {
		return nil, err
	}
	e := t.Elements[index]
	end := int(e.Offset) + size
	if end > len(t.Data) {
		return nil, fmt.Errorf("element %d needs %d bytes past offset %d: %w", index, size, e.Offset, ErrMalformed)
	}
	return t.Data[e.Offset:end:end], nil
}

// Validate checks that every element fits the blob and that every RLE row is a
// well formed chunk list.
func (t *Table) Validate() error {
	for i, e := range t.Elements {
		px, err := t.Pixels(i)
		if err != nil {
			return err
		}
		if !e.IsRLE() {
			continue
		}
		if err := validateRLE(e, px); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func validateRLE(e Element, px []byte) error {
	if int(e.Height)*2 > len(px) {
		return fmt.Errorf("row table needs %d bytes, have %d: %w", int(e.Height)*2, len(px), ErrMalformed)
	}
	for y := 0; y < int(e.Height); y++ {
		p := int(px[y*2]) | int(px[y*2+1])<<8
		for {
			if p+1 >= len(px) {
				return fmt.Errorf("row %d chunk at %d: %w", y, p, ErrMalformed)
			}
			chunk, x := px[p], int(px[p+1])
			n := int(chunk & 0x7F)
			if x+n > int(e.Width) {
				return fmt.Errorf("row %d run %d+%d exceeds width %d: %w", y, x, n, e.Width, ErrMalformed)
			}
			p += 2 + n
			if p > len(px) {
				return fmt.Errorf("row %d run past data: %w", y, ErrMalformed)
			}
			if chunk&0x80 != 0 {
				break
			}
		}
	}
	return nil
}
