package state

import "time"

// CartLine binds one product to a quantity. The embedded product's price
// is the snapshot captured when the line was first added; later catalog
// price changes never touch it. Quantity is always positive: a line whose
// quantity would drop to zero is removed instead.
type CartLine struct {
	Product  Product   `json:"product"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

// CartSnapshot is an immutable cart value in first-added line order. All
// mutations go through the cart reducer, which returns a fresh snapshot;
// the session never edits one in place, so a partially-applied cart is
// never observable.
type CartSnapshot struct {
	Lines []CartLine `json:"lines"`
}

func (c CartSnapshot) Empty() bool {
	return len(c.Lines) == 0
}

// Clone returns a snapshot whose line slice shares no memory with c.
func (c CartSnapshot) Clone() CartSnapshot {
	if len(c.Lines) == 0 {
		return CartSnapshot{}
	}
	return CartSnapshot{Lines: append([]CartLine(nil), c.Lines...)}
}

// FindLine returns the index of the line holding partNumber, or -1 when
// no such line exists. At most one line per part number is an invariant
// the reducer maintains.
func (c CartSnapshot) FindLine(partNumber string) int {
	for i, ln := range c.Lines {
		if ln.Product.PartNumber == partNumber {
			return i
		}
	}
	return -1
}
