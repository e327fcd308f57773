package drawing

import (
	"fmt"

	"parkrep/core/internal/g1"
)

// singleSprite serves one element at index 0.
type singleSprite struct {
	element g1.Element
	pixels  []byte
}

func (s singleSprite) Sprite(index uint32) (g1.Element, []byte, bool) {
	return s.element, s.pixels, index == 0
}

// RenderElement draws element index of table into a new target exactly the size of
// the sprite. Pixels the sprite leaves untouched stay TransparentIndex.
func RenderElement(table *g1.Table, index int) (*DrawPixelInfo, error) {
	e, err := table.Element(index)
	if err != nil {
		return nil, err
	}
	if e.IsPalette() {
		return nil, fmt.Errorf("element %d is a palette, not an image", index)
	}
	if e.Width <= 0 || e.Height <= 0 {
		return nil, fmt.Errorf("element %d has no pixels (%dx%d)", index, e.Width, e.Height)
	}
	px, err := table.Pixels(index)
	if err != nil {
		return nil, err
	}
	dpi := NewDrawPixelInfo(int32(e.Width), int32(e.Height))
	//1.- Cancel the element offsets so the sprite lands at the target origin.
	renderer := NewRenderer(singleSprite{element: e, pixels: px}, nil)
	renderer.DrawSprite(dpi, NewImageId(0), -int32(e.XOffset), -int32(e.YOffset), 0)
	return dpi, nil
}
