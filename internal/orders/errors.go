package orders

import "errors"

var (
	// ErrNotFound is returned by repositories and the store for unknown order ids.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidInput covers malformed orders, patches and notes.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrAlreadyCancelled rejects a refund of an order that is already cancelled.
	ErrAlreadyCancelled = errors.New("order already cancelled")
	// ErrConflict is returned for duplicate ids and operations the current state forbids.
	ErrConflict = errors.New("order conflict")
	// ErrStale is returned by repositories when the stored order moved past the
	// version the caller read. The store reloads and retries.
	ErrStale = errors.New("order changed concurrently")
	// ErrImmutableField is returned when a patch tries to change id, owner or line items.
	ErrImmutableField = errors.New("order field is immutable")
)
