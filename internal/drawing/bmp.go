package drawing

// drawBMPMinify walks the source in zoom sized steps and writes one destination pixel
// per step. SrcX, SrcY, Width and Height are source pixels.
func drawBMPMinify(dpi *DrawPixelInfo, args *SpriteArgs, blit pixelFunc, shift uint) {
	px := args.Pixels
	pm := args.palette()
	zoom := int(1) << shift
	srcWidth := int(args.Element.Width)
	stride := dpi.LineStride()

	src := srcWidth*int(args.SrcY) + int(args.SrcX)
	dst := args.Dst
	for h := int(args.Height); h > 0; h -= zoom {
		s, d := src, dst
		for w := int(args.Width); w > 0; w -= zoom {
			blit(px[s], &dpi.Bits[d], pm)
			s += zoom
			d++
		}
		src += srcWidth * zoom
		dst += stride
	}
}

// drawBMPMagnify writes every destination pixel from source (x/zoom, y/zoom). SrcX,
// SrcY, Width and Height are destination pixels.
func drawBMPMagnify(dpi *DrawPixelInfo, args *SpriteArgs, blit pixelFunc, shift uint) {
	px := args.Pixels
	pm := args.palette()
	srcWidth := int(args.Element.Width)
	stride := dpi.LineStride()

	for row := int32(0); row < args.Height; row++ {
		sy := (args.SrcY + row) >> shift
		if sy < 0 {
			continue
		}
		base := int(sy) * srcWidth
		dst := args.Dst + int(row)*stride
		for col := int32(0); col < args.Width; col++ {
			sx := int((args.SrcX + col) >> shift)
			blit(px[base+sx], &dpi.Bits[dst+int(col)], pm)
		}
	}
}
