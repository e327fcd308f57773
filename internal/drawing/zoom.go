package drawing

// ZoomLevel scales world units to screen pixels. Negative levels magnify, positive
// levels minify.
type ZoomLevel int8

const (
	ZoomMin ZoomLevel = -2
	ZoomMax ZoomLevel = 3

	zoomLevels = int(ZoomMax-ZoomMin) + 1
)

// Valid reports whether z is a supported level.
func (z ZoomLevel) Valid() bool { return z >= ZoomMin && z <= ZoomMax }

// shift is the power of two the level scales by.
func (z ZoomLevel) shift() uint {
	if z < 0 {
		return uint(-z)
	}
	return uint(z)
}

func (z ZoomLevel) index() int { return int(z - ZoomMin) }

// Factor is the scale factor as a plain integer: 1, 2, 4 or 8.
func (z ZoomLevel) Factor() int32 { return 1 << z.shift() }

// ApplyTo converts screen pixels to world units.
func (z ZoomLevel) ApplyTo(v int32) int32 {
	if z < 0 {
		return v >> z.shift()
	}
	return v << z.shift()
}

// ApplyInversedTo converts world units to screen pixels.
func (z ZoomLevel) ApplyInversedTo(v int32) int32 {
	if z < 0 {
		return v << z.shift()
	}
	return v >> z.shift()
}
