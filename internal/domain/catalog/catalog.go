// Package catalog is the read-only menu dependency of the ordering engine.
// The engine snapshots name and price at placement time and never re-reads the
// catalog for an existing line.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// MenuItem is one orderable catalog entry with its current base price and the
// modifier options guests may select.
type MenuItem struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Category  string
	Available bool
	Modifiers []ModifierOption
}

// ModifierOption is a priced customization the catalog offers for an item.
type ModifierOption struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Option returns the modifier option with the given name, if the item offers it.
func (m *MenuItem) Option(name string) (ModifierOption, bool) {
	for _, opt := range m.Modifiers {
		if opt.Name == name {
			return opt, true
		}
	}
	return ModifierOption{}, false
}

// Repository defines read operations on the menu catalog.
type Repository interface {
	List(ctx context.Context) ([]MenuItem, error)
	GetByID(ctx context.Context, id string) (*MenuItem, error)
	GetByIDs(ctx context.Context, ids []string) ([]MenuItem, error)
}
