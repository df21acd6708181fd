package storage

import "context"

// SlotStore describes the interface for the single durable key-value slot
// that holds the persisted state projection. Implementations MUST be safe
// for concurrency and durable across restarts.
//
// The slot has last-write-wins semantics; no cross-process locking is done.
type SlotStore interface {
	// Load returns the raw slot contents, or (nil, nil) when the slot
	// has never been written.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the slot contents atomically.
	Save(ctx context.Context, data []byte) error
	// Clear removes the slot. Clearing an absent slot is not an error.
	Clear(ctx context.Context) error

	Close() error
}
