// Package audit records advisory computations for later review.
//
// Every gated advisory operation produces one audit entry (operation,
// sanitized input, output, timing) and decision-bearing operations
// additionally store a snapshot keyed by request ID. Recording is
// advisory too: a failed write is logged and swallowed, never surfaced
// to the caller.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mnbara/advisory/internal/flags"
	"github.com/mnbara/advisory/internal/idgen"
	"github.com/mnbara/advisory/internal/logging"
)

// Version tags entries with the advisory engine version that produced them.
const Version = "1.0.0"

// Entry is one recorded advisory operation.
type Entry struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	Operation        string          `json:"operation"`
	Input            map[string]any  `json:"input"`
	Output           json.RawMessage `json:"output"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	Version          string          `json:"version"`
	CorrelationID    string          `json:"correlationId,omitempty"`
}

// Snapshot is the stored decision context for one request, used to
// answer "what did the engine see" after the fact.
type Snapshot struct {
	RequestID string         `json:"requestId"`
	Timestamp time.Time      `json:"timestamp"`
	Operation string         `json:"operation"`
	Data      map[string]any `json:"data"`
}

// EntryQuery filters audit log reads.
type EntryQuery struct {
	Operation string
	Limit     int
}

// Recorder writes audit entries and snapshots through a Store.
type Recorder struct {
	flags *flags.Flags
	store Store
	now   func() time.Time
}

// NewRecorder creates a recorder. Recording is a no-op while audit
// logging is disabled.
func NewRecorder(f *flags.Flags, store Store) *Recorder {
	return &Recorder{flags: f, store: store, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Enabled reports whether audit recording is currently active.
func (r *Recorder) Enabled() bool {
	return r.flags.Capability(flags.AICoreEnabled, flags.AIAuditLogging)
}

// Record persists one audit entry. Input is sanitized before storage,
// an unserializable output is replaced with a placeholder, and store
// failures are logged, not returned.
func (r *Recorder) Record(ctx context.Context, operation string, input map[string]any, output any, elapsed time.Duration, correlationID string) {
	if !r.Enabled() {
		return
	}

	raw, err := json.Marshal(output)
	if err != nil {
		raw = json.RawMessage(`{"error":"Output not serializable"}`)
	}

	entry := &Entry{
		ID:               idgen.WithPrefix("aud_"),
		Timestamp:        r.now(),
		Operation:        operation,
		Input:            Sanitize(input),
		Output:           raw,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Version:          Version,
		CorrelationID:    correlationID,
	}

	if err := r.store.AppendEntry(ctx, entry); err != nil {
		logging.L(ctx).Warn("audit entry write failed",
			"operation", operation,
			"error", err)
	}
}

// RecordSnapshot stores the sanitized decision context for a request.
// A repeated request ID overwrites the previous snapshot.
func (r *Recorder) RecordSnapshot(ctx context.Context, requestID, operation string, data map[string]any) {
	if !r.Enabled() {
		return
	}

	snap := &Snapshot{
		RequestID: requestID,
		Timestamp: r.now(),
		Operation: operation,
		Data:      Sanitize(data),
	}

	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		logging.L(ctx).Warn("audit snapshot write failed",
			"requestId", requestID,
			"error", err)
	}
}

// Logs returns recorded entries, most recent first.
func (r *Recorder) Logs(ctx context.Context, q EntryQuery) ([]*Entry, error) {
	return r.store.Entries(ctx, q)
}

// Snapshot returns the stored snapshot for a request, or nil.
func (r *Recorder) Snapshot(ctx context.Context, requestID string) (*Snapshot, error) {
	return r.store.Snapshot(ctx, requestID)
}

// Snapshots returns stored snapshots, most recent first.
func (r *Recorder) Snapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	return r.store.Snapshots(ctx, limit)
}
