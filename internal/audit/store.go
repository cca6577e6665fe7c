package audit

import (
	"context"
)

// Store persists audit entries and decision snapshots.
type Store interface {
	// AppendEntry persists a single audit entry.
	AppendEntry(ctx context.Context, entry *Entry) error

	// Entries returns entries matching the query, most recent first.
	Entries(ctx context.Context, q EntryQuery) ([]*Entry, error)

	// SaveSnapshot persists a decision snapshot, replacing any previous
	// snapshot for the same request ID.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// Snapshot returns the snapshot for a request ID, or nil.
	Snapshot(ctx context.Context, requestID string) (*Snapshot, error)

	// Snapshots returns stored snapshots, most recent first.
	Snapshots(ctx context.Context, limit int) ([]*Snapshot, error)
}
