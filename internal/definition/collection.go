package definition

// Collection is an ordered set of definitions keyed by TypeAndID. Adding a
// definition whose identity is already present replaces the earlier entry in
// place.
type Collection struct {
	index map[string]int
	items []*Definition
}

// NewCollection creates a collection and adds defs to it.
func NewCollection(defs ...*Definition) *Collection {
	c := &Collection{index: make(map[string]int, len(defs))}
	c.AddRange(defs)
	return c
}

// Add inserts or replaces d.
func (c *Collection) Add(d *Definition) {
	if d == nil {
		return
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	key := d.TypeAndID()
	if i, ok := c.index[key]; ok {
		c.items[i] = d
		return
	}
	c.index[key] = len(c.items)
	c.items = append(c.items, d)
}

// AddRange adds every definition in defs.
func (c *Collection) AddRange(defs []*Definition) {
	for _, d := range defs {
		c.Add(d)
	}
}

// Get returns the definition with the given identity.
func (c *Collection) Get(typeAndID string) (*Definition, bool) {
	i, ok := c.index[typeAndID]
	if !ok {
		return nil, false
	}
	return c.items[i], true
}

// Remove deletes the definition with the given identity.
func (c *Collection) Remove(typeAndID string) bool {
	i, ok := c.index[typeAndID]
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, typeAndID)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].TypeAndID()] = j
	}
	return true
}

// Len returns the number of definitions.
func (c *Collection) Len() int {
	return len(c.items)
}

// All returns the definitions in insertion order. The slice is shared.
func (c *Collection) All() []*Definition {
	return c.items
}

// Dedupe collapses defs by TypeAndID, keeping the last occurrence at the
// position of the first.
func Dedupe(defs []*Definition) []*Definition {
	return NewCollection(defs...).All()
}
