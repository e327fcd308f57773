package drawing

// BlendOp selects how a source pixel combines with the destination.
type BlendOp uint8

const (
	// BlendNone copies the source pixel.
	BlendNone BlendOp = 0
	// BlendTransparent skips sentinel pixels, before and after translation.
	BlendTransparent BlendOp = 1 << 0
	// BlendSrc translates the source pixel through the palette map.
	BlendSrc BlendOp = 1 << 1
	// BlendDst translates the destination pixel through the palette map.
	BlendDst BlendOp = 1 << 2

	blendOpCount = 8
)

// pixelFunc writes one source pixel into dst.
type pixelFunc func(src byte, dst *byte, pm *PaletteMap)

// pixelFuncs holds one specialised writer per op so decode loops never branch on
// the op per pixel.
var pixelFuncs = [blendOpCount]pixelFunc{
	BlendNone: func(src byte, dst *byte, _ *PaletteMap) {
		*dst = src
	},
	BlendTransparent: func(src byte, dst *byte, _ *PaletteMap) {
		if src != TransparentIndex {
			*dst = src
		}
	},
	BlendSrc: func(src byte, dst *byte, pm *PaletteMap) {
		*dst = pm.At(src)
	},
	BlendTransparent | BlendSrc: func(src byte, dst *byte, pm *PaletteMap) {
		if src == TransparentIndex {
			return
		}
		if v := pm.At(src); v != TransparentIndex {
			*dst = v
		}
	},
	BlendDst: func(_ byte, dst *byte, pm *PaletteMap) {
		*dst = pm.At(*dst)
	},
	BlendTransparent | BlendDst: func(src byte, dst *byte, pm *PaletteMap) {
		if src == TransparentIndex {
			return
		}
		if v := pm.At(*dst); v != TransparentIndex {
			*dst = v
		}
	},
	BlendSrc | BlendDst: func(src byte, dst *byte, pm *PaletteMap) {
		*dst = pm.Blend(src, *dst)
	},
	BlendTransparent | BlendSrc | BlendDst: func(src byte, dst *byte, pm *PaletteMap) {
		if src == TransparentIndex {
			return
		}
		if v := pm.Blend(src, *dst); v != TransparentIndex {
			*dst = v
		}
	},
}

// BlendPixel applies op to one pixel and returns the resulting destination value.
func BlendPixel(op BlendOp, src, dst byte, pm PaletteMap) byte {
	pixelFuncs[op&(blendOpCount-1)](src, &dst, &pm)
	return dst
}
