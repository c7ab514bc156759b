package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for request validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrTableRequired   = errors.New("table id required")
	ErrMethodRequired  = errors.New("payment method required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrAlreadyPaid     = errors.New("order is already paid")
	ErrOrderClosed     = errors.New("order is closed")
	ErrInvalidStatus   = errors.New("unknown status value")

	// ErrConflict indicates lock contention on the same open order. The caller
	// may retry; the engine never retries on its own.
	ErrConflict = errors.New("concurrent update conflict")
)

// NotFoundError indicates a referenced order, item, table, or menu item does
// not exist.
type NotFoundError struct {
	Kind string // "order", "order item", "table", "menu item"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidTransitionError indicates a status change that the transition table
// does not permit from the record's current state.
type InvalidTransitionError struct {
	Kind string // "order" or "order item"
	ID   string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Kind, e.ID, e.From, e.To)
}

// UnknownModifierError indicates a selected modifier name that the menu item
// does not offer.
type UnknownModifierError struct {
	MenuItemID string
	Modifier   string
}

func (e *UnknownModifierError) Error() string {
	return fmt.Sprintf("menu item %s has no modifier %q", e.MenuItemID, e.Modifier)
}

// UnavailableItemError indicates a menu item that is currently switched off in
// the catalog.
type UnavailableItemError struct {
	MenuItemID string
}

func (e *UnavailableItemError) Error() string {
	return fmt.Sprintf("menu item %s is not available", e.MenuItemID)
}
