package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrCartNotFound = errors.New("cart snapshot not found")

// CartStore is the durable persistence contract for cart snapshots. Load
// runs once at session start; Save runs after every committed mutation,
// including clearing. Callers treat Save as best-effort: a failed write is
// logged and swallowed, never propagated into the mutation it followed.
//
// A stored payload that cannot be decoded into a valid snapshot loads as
// ErrCartNotFound, so a corrupt record degrades to an empty cart instead
// of wedging the session.
type CartStore interface {
	Load(ctx context.Context, sessionID string) (CartSnapshot, error)
	Save(ctx context.Context, sessionID string, cart CartSnapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// storedLine is the persisted form of a CartLine: the product fields
// flattened beside the quantity. Unknown fields in old payloads are
// ignored on load.
type storedLine struct {
	PartNumber             string    `json:"part_number"`
	ManufacturerPartNumber string    `json:"manufacturer_part_number,omitempty"`
	Name                   string    `json:"name"`
	Brand                  string    `json:"brand,omitempty"`
	ApplianceType          string    `json:"appliance_type,omitempty"`
	Price                  float64   `json:"price"`
	InStock                bool      `json:"in_stock"`
	Rating                 float64   `json:"rating,omitempty"`
	ReviewCount            int       `json:"review_count,omitempty"`
	InstallDifficulty      string    `json:"install_difficulty,omitempty"`
	Description            string    `json:"description,omitempty"`
	Quantity               int       `json:"quantity"`
	AddedAt                time.Time `json:"added_at,omitempty"`
}

func encodeCart(cart CartSnapshot) ([]byte, error) {
	lines := make([]storedLine, 0, len(cart.Lines))
	for _, ln := range cart.Lines {
		lines = append(lines, storedLine{
			PartNumber:             ln.Product.PartNumber,
			ManufacturerPartNumber: ln.Product.ManufacturerPartNumber,
			Name:                   ln.Product.Name,
			Brand:                  ln.Product.Brand,
			ApplianceType:          ln.Product.ApplianceType,
			Price:                  ln.Product.Price,
			InStock:                ln.Product.InStock,
			Rating:                 ln.Product.Rating,
			ReviewCount:            ln.Product.ReviewCount,
			InstallDifficulty:      ln.Product.InstallDifficulty,
			Description:            ln.Product.Description,
			Quantity:               ln.Quantity,
			AddedAt:                ln.AddedAt,
		})
	}

	payload, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return payload, nil
}

// decodeCart parses a persisted line list back into a snapshot. Any line
// that violates the cart invariants poisons the whole payload.
func decodeCart(raw []byte) (CartSnapshot, error) {
	var lines []storedLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return CartSnapshot{}, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}

	cart := CartSnapshot{Lines: make([]CartLine, 0, len(lines))}
	for _, ln := range lines {
		if strings.TrimSpace(ln.PartNumber) == "" {
			return CartSnapshot{}, errors.New("stored cart line without part number")
		}
		if ln.Quantity <= 0 {
			return CartSnapshot{}, fmt.Errorf("stored cart line %s with quantity %d", ln.PartNumber, ln.Quantity)
		}
		if ln.Price < 0 {
			return CartSnapshot{}, fmt.Errorf("stored cart line %s with negative price", ln.PartNumber)
		}
		cart.Lines = append(cart.Lines, CartLine{
			Product: Product{
				PartNumber:             ln.PartNumber,
				ManufacturerPartNumber: ln.ManufacturerPartNumber,
				Name:                   ln.Name,
				Brand:                  ln.Brand,
				ApplianceType:          ln.ApplianceType,
				Price:                  ln.Price,
				InStock:                ln.InStock,
				Rating:                 ln.Rating,
				ReviewCount:            ln.ReviewCount,
				InstallDifficulty:      ln.InstallDifficulty,
				Description:            ln.Description,
			},
			Quantity: ln.Quantity,
			AddedAt:  ln.AddedAt,
		})
	}
	return cart, nil
}
