package drawing

// RLE sprites start with one little-endian u16 offset per row. Each row is a list of
// chunks: a length byte whose high bit ends the row, the x of the first pixel, then
// the opaque pixels themselves.

type rleChunk struct {
	x    int32
	n    int32
	src  int
	last bool
}

// rowStart returns the offset of row y or -1 when the row table is short.
func rowStart(px []byte, y int32) int {
	i := int(y) * 2
	if y < 0 || i+1 >= len(px) {
		return -1
	}
	return int(px[i]) | int(px[i+1])<<8
}

// readChunk decodes the chunk header at p, clamping the run to the data available.
func readChunk(px []byte, p int) (rleChunk, int, bool) {
	if p < 0 || p+1 >= len(px) {
		return rleChunk{}, 0, false
	}
	size := px[p]
	c := rleChunk{x: int32(px[p+1]), n: int32(size & 0x7F), src: p + 2, last: size&0x80 != 0}
	next := c.src + int(c.n)
	if next > len(px) {
		c.n = int32(len(px) - c.src)
		c.last = true
	}
	return c, next, true
}

// drawRLEMinify draws at zoom 0 or smaller scales. SrcX, SrcY, Width and Height are
// source pixels; every zoom-th source pixel of every zoom-th row is emitted.
func drawRLEMinify(dpi *DrawPixelInfo, args *SpriteArgs, blit pixelFunc, shift uint, copyRuns bool) {
	px := args.Pixels
	pm := args.palette()
	zoom := int32(1) << shift
	stride := dpi.LineStride()
	srcY, height := args.SrcY, args.Height
	dst0 := args.Dst

	//1.- A negative start row skips one zoomed row and one destination scanline.
	if srcY < 0 {
		srcY += zoom
		height -= zoom
		dst0 += stride
	}

	for i := int32(0); i < height; i += zoom {
		p := rowStart(px, srcY+i)
		if p < 0 {
			return
		}
		lineStart := dst0 + stride*int(i>>shift)
		for {
			c, next, ok := readChunk(px, p)
			if !ok {
				break
			}
			p = next

			x := c.x - args.SrcX
			n := c.n
			src := c.src
			if x > 0 {
				//2.- Round the run start up to the zoom grid so sampling stays aligned.
				if mod := x & (zoom - 1); mod != 0 {
					offset := zoom - mod
					x += offset
					src += int(offset)
					n -= offset
				}
			} else if x < 0 {
				src -= int(x)
				n += x
				x = 0
			}
			n = min(n, args.Width-x)

			dst := lineStart + int(x>>shift)
			if copyRuns {
				if n > 0 {
					copy(dpi.Bits[dst:dst+int(n)], px[src:src+int(n)])
				}
			} else {
				for ; n > 0; n -= zoom {
					blit(px[src], &dpi.Bits[dst], pm)
					src += int(zoom)
					dst++
				}
			}
			if c.last {
				break
			}
		}
	}
}

// drawRLEMagnify draws at magnifying zoom levels. SrcX, SrcY, Width and Height are
// destination pixels; destination (x, y) samples source (x/zoom, y/zoom), so every run
// pixel becomes a zoom×zoom block clipped to the requested region.
func drawRLEMagnify(dpi *DrawPixelInfo, args *SpriteArgs, blit pixelFunc, shift uint) {
	px := args.Pixels
	pm := args.palette()
	zoom := int32(1) << shift
	stride := dpi.LineStride()
	srcX, srcY, width, height := args.SrcX, args.SrcY, args.Width, args.Height
	dst0 := args.Dst

	if srcY < 0 {
		srcY += zoom
		height -= zoom
		dst0 += stride
	}

	for i := int32(0); i < height; i++ {
		y := srcY + i
		if y < 0 {
			continue
		}
		p := rowStart(px, y>>shift)
		if p < 0 {
			return
		}
		lineStart := dst0 + stride*int(i)
		for {
			c, next, ok := readChunk(px, p)
			if !ok {
				break
			}
			p = next
			for k := int32(0); k < c.n; k++ {
				left := (c.x+k)*zoom - srcX
				right := left + zoom
				if right <= 0 {
					continue
				}
				if left >= width {
					break
				}
				left, right = max(left, 0), min(right, width)
				for col := left; col < right; col++ {
					blit(px[c.src+int(k)], &dpi.Bits[lineStart+int(col)], pm)
				}
			}
			if c.last {
				break
			}
		}
	}
}
