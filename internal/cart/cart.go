package cart

import "fmt"

// Cart holds de-duplicated lines: no two lines share an identity key.
type Cart struct {
	Lines []Line `json:"lines"`
}

// Merge collapses lines with equal identity keys, summing quantities.
// The first occurrence keeps its position and snapshot.
func Merge(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		key := l.IdentityKey()
		if i, ok := index[key]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, l.Clone())
	}
	return out
}

// Add inserts the line or merges it into an existing line with the same identity.
func (c *Cart) Add(l Line) error {
	if l.Quantity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, l.Quantity)
	}
	c.Lines = Merge(append(c.Lines, l))
	return nil
}

// AllDigital reports whether every line is a digital item. An empty cart is not all-digital.
func (c Cart) AllDigital() bool {
	if len(c.Lines) == 0 {
		return false
	}
	for _, l := range c.Lines {
		if !l.Digital {
			return false
		}
	}
	return true
}
