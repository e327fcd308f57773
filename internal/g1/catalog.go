package g1

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// IndexMask selects the sprite index bits of an image id.
	IndexMask uint32 = 0x7FFFF
	// NoImage is the index that never resolves.
	NoImage = IndexMask
	// TempIndex addresses the single scratch slot callers can overwrite.
	TempIndex = IndexMask - 1
)

type mount struct {
	name  string
	base  uint32
	table *Table
}

type sprite struct {
	element Element
	pixels  []byte
}

// Catalog resolves global sprite indices across several mounted tables. The table
// mounted at base 0 is the primary one and the only one Set may modify.
type Catalog struct {
	mu     sync.RWMutex
	mounts []mount
	temp   *sprite
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog { return &Catalog{} }

// Mount registers table so that its element i answers to base+i. Ranges must not
// overlap and must stay below TempIndex.
func (c *Catalog) Mount(name string, base uint32, table *Table) error {
	if table == nil {
		return fmt.Errorf("mount %s: nil table", name)
	}
	end := uint64(base) + uint64(table.Len())
	if end > uint64(TempIndex) {
		return fmt.Errorf("mount %s: range %d..%d reaches the reserved indices: %w", name, base, end, ErrIndex)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.mounts {
		mEnd := uint64(m.base) + uint64(m.table.Len())
		if uint64(base) < mEnd && end > uint64(m.base) {
			return fmt.Errorf("mount %s overlaps %s: %w", name, m.name, ErrIndex)
		}
	}
	c.mounts = append(c.mounts, mount{name: name, base: base, table: table})
	sort.Slice(c.mounts, func(i, j int) bool { return c.mounts[i].base < c.mounts[j].base })
	return nil
}

// Sprite returns the element and pixels for a global index.
func (c *Catalog) Sprite(index uint32) (Element, []byte, bool) {
	if c == nil {
		return Element{}, nil, false
	}
	index &= IndexMask
	if index == NoImage {
		return Element{}, nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index == TempIndex {
		if c.temp == nil {
			return Element{}, nil, false
		}
		return c.temp.element, c.temp.pixels, true
	}
	m, ok := c.find(index)
	if !ok {
		return Element{}, nil, false
	}
	local := int(index - m.base)
	px, err := m.table.Pixels(local)
	if err != nil {
		return Element{}, nil, false
	}
	return m.table.Elements[local], px, true
}

// Set replaces the temp slot or an element of the primary table. Pixels are copied.
func (c *Catalog) Set(index uint32, e Element, pixels []byte) error {
	index &= IndexMask
	c.mu.Lock()
	defer c.mu.Unlock()
	if index == TempIndex {
		c.temp = &sprite{element: e, pixels: append([]byte(nil), pixels...)}
		return nil
	}
	m, ok := c.find(index)
	if !ok || m.base != 0 {
		return fmt.Errorf("set sprite %d: %w", index, ErrIndex)
	}
	e.Offset = uint32(len(m.table.Data))
	m.table.Data = append(m.table.Data, pixels...)
	m.table.Elements[index] = e
	return nil
}

// Len reports the number of addressable elements, the temp slot excluded.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, m := range c.mounts {
		n += m.table.Len()
	}
	return n
}

func (c *Catalog) find(index uint32) (mount, bool) {
	i := sort.Search(len(c.mounts), func(i int) bool {
		m := c.mounts[i]
		return uint64(m.base)+uint64(m.table.Len()) > uint64(index)
	})
	if i == len(c.mounts) || index < c.mounts[i].base {
		return mount{}, false
	}
	return c.mounts[i], true
}
