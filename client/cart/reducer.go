// Package cart holds the pure cart state transitions and the derived
// totals. Nothing here performs I/O; the session orchestrator feeds events
// in and persists the snapshots that come out.
package cart

import (
	"errors"
	"fmt"
	"time"

	statex "github.com/partassist/client-go/client/state"
)

var (
	ErrLineIndex = errors.New("cart line index out of range")
	ErrQuantity  = errors.New("quantity must be positive")
	ErrNoPart    = errors.New("product has no part number")
)

// Event is one cart state transition. Apply is the only way a cart
// changes.
type Event interface {
	isEvent()
}

// AddItem merges qty units of a product into the cart. An existing line
// for the same part number absorbs the quantity in place; otherwise a new
// line is appended with the product's current price as its snapshot.
type AddItem struct {
	Product statex.Product
	Qty     int
}

// SetQuantity replaces one line's quantity, keeping its price snapshot
// and position. A quantity of zero or below removes the line.
type SetQuantity struct {
	Index int
	Qty   int
}

// RemoveLine drops exactly one line; the remaining order is untouched.
type RemoveLine struct {
	Index int
}

// ClearAll empties the cart regardless of its contents.
type ClearAll struct{}

func (AddItem) isEvent()     {}
func (SetQuantity) isEvent() {}
func (RemoveLine) isEvent()  {}
func (ClearAll) isEvent()    {}

// NewAddItem builds an AddItem for a single unit.
func NewAddItem(p statex.Product) AddItem {
	return AddItem{Product: p, Qty: 1}
}

// Apply computes the next cart from an event. It is pure: the input is
// never modified and the result shares no line memory with it. An invalid
// event returns the input unchanged together with the error; nothing is
// clamped or coerced.
func Apply(c statex.CartSnapshot, ev Event, now time.Time) (statex.CartSnapshot, error) {
	switch ev := ev.(type) {
	case AddItem:
		return applyAdd(c, ev, now)
	case SetQuantity:
		if ev.Qty <= 0 {
			return applyRemove(c, RemoveLine{Index: ev.Index})
		}
		return applySetQuantity(c, ev)
	case RemoveLine:
		return applyRemove(c, ev)
	case ClearAll:
		return statex.CartSnapshot{}, nil
	default:
		return c, fmt.Errorf("unknown cart event %T", ev)
	}
}

func applyAdd(c statex.CartSnapshot, ev AddItem, now time.Time) (statex.CartSnapshot, error) {
	if ev.Product.PartNumber == "" {
		return c, ErrNoPart
	}
	if ev.Qty <= 0 {
		return c, fmt.Errorf("%w: got %d", ErrQuantity, ev.Qty)
	}

	next := c.Clone()
	if i := next.FindLine(ev.Product.PartNumber); i >= 0 {
		line := next.Lines[i]
		line.Quantity += ev.Qty
		next.Lines[i] = line
		return next, nil
	}

	next.Lines = append(next.Lines, statex.CartLine{
		Product:  ev.Product,
		Quantity: ev.Qty,
		AddedAt:  now.UTC(),
	})
	return next, nil
}

func applySetQuantity(c statex.CartSnapshot, ev SetQuantity) (statex.CartSnapshot, error) {
	if ev.Index < 0 || ev.Index >= len(c.Lines) {
		return c, fmt.Errorf("%w: index=%d lines=%d", ErrLineIndex, ev.Index, len(c.Lines))
	}

	next := c.Clone()
	line := next.Lines[ev.Index]
	line.Quantity = ev.Qty
	next.Lines[ev.Index] = line
	return next, nil
}

func applyRemove(c statex.CartSnapshot, ev RemoveLine) (statex.CartSnapshot, error) {
	if ev.Index < 0 || ev.Index >= len(c.Lines) {
		return c, fmt.Errorf("%w: index=%d lines=%d", ErrLineIndex, ev.Index, len(c.Lines))
	}

	next := statex.CartSnapshot{Lines: make([]statex.CartLine, 0, len(c.Lines)-1)}
	next.Lines = append(next.Lines, c.Lines[:ev.Index]...)
	next.Lines = append(next.Lines, c.Lines[ev.Index+1:]...)
	return next, nil
}
