package g1

import (
	"fmt"

	"parkrep/core/internal/stream"
)

// Transparent is the pixel value the encoder treats as empty.
const Transparent byte = 0xFF

const maxRun = 0x7F

// EncodeRLE compresses a width×height indexed image into the G1 run layout: a table of
// u16 row offsets followed, per row, by chunks of {length|endOfLine, x, pixels...}.
// Rows with no opaque pixels still carry one empty terminating chunk.
func EncodeRLE(pixels []byte, width, height int) ([]byte, error) {
	if width < 0 || height < 0 || len(pixels) < width*height {
		return nil, fmt.Errorf("encode %dx%d from %d bytes: %w", width, height, len(pixels), ErrMalformed)
	}
	if width > 256 {
		return nil, fmt.Errorf("width %d exceeds 256: %w", width, ErrTooLarge)
	}
	rows := stream.NewWriter()
	body := stream.NewWriter()
	for y := 0; y < height; y++ {
		offset := height*2 + body.Len()
		if offset > 0xFFFF {
			return nil, fmt.Errorf("row %d starts beyond 64KiB: %w", y, ErrTooLarge)
		}
		rows.U16(uint16(offset))
		line := pixels[y*width : (y+1)*width]
		runs := opaqueRuns(line)
		if len(runs) == 0 {
			body.U8(0x80)
			body.U8(0)
			continue
		}
		for i, r := range runs {
			size := uint8(r.end - r.start)
			if i == len(runs)-1 {
				size |= 0x80
			}
			body.U8(size)
			body.U8(uint8(r.start))
			body.Raw(line[r.start:r.end])
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := body.Err(); err != nil {
		return nil, err
	}
	return append(rows.Bytes(), body.Bytes()...), nil
}

type run struct{ start, end int }

// opaqueRuns splits a row into runs of non-transparent pixels no longer than maxRun.
func opaqueRuns(line []byte) []run {
	var runs []run
	x := 0
	for x < len(line) {
		if line[x] == Transparent {
			x++
			continue
		}
		start := x
		for x < len(line) && line[x] != Transparent && x-start < maxRun {
			x++
		}
		runs = append(runs, run{start: start, end: x})
	}
	return runs
}
