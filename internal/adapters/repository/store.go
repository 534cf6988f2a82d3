// Package repository defines the drop totals store interface and errors.
package repository

import "context"

// Entry represents one item's cumulative quantity in the session.
type Entry struct {
	ItemID   string
	Quantity int
}

// Store provides read/write access to the session drop totals.
type Store interface {
	// Add increases the total for itemID by quantity and returns the new total.
	Add(ctx context.Context, itemID string, quantity int) (int, error)

	// All returns a copy of the totals map.
	All(ctx context.Context) map[string]int

	// Ranked returns all entries ordered by quantity desc, then item id asc.
	Ranked(ctx context.Context) []Entry

	// Count returns the number of distinct items tracked.
	Count(ctx context.Context) int
}
