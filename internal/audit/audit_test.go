package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mnbara/advisory/internal/flags"
)

var fixedNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testRecorder(store Store) *Recorder {
	return NewRecorder(flags.AllEnabled(), store).WithClock(func() time.Time { return fixedNow })
}

func TestRecord_WritesEntry(t *testing.T) {
	store := NewMemoryStore(0, 0)
	r := testRecorder(store)
	ctx := context.Background()

	r.Record(ctx, "trust_score", map[string]any{"userId": "u-1"}, map[string]any{"score": 85}, 3*time.Millisecond, "corr-1")

	entries, err := r.Logs(ctx, EntryQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Operation != "trust_score" {
		t.Errorf("operation = %s", e.Operation)
	}
	if e.ProcessingTimeMs != 3 {
		t.Errorf("processingTimeMs = %d, want 3", e.ProcessingTimeMs)
	}
	if e.Version != Version {
		t.Errorf("version = %s", e.Version)
	}
	if e.CorrelationID != "corr-1" {
		t.Errorf("correlationId = %s", e.CorrelationID)
	}
	if !strings.HasPrefix(e.ID, "aud_") {
		t.Errorf("id = %s, want aud_ prefix", e.ID)
	}
	if !e.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp = %v", e.Timestamp)
	}
}

func TestRecord_SanitizesInput(t *testing.T) {
	store := NewMemoryStore(0, 0)
	r := testRecorder(store)
	ctx := context.Background()

	input := map[string]any{
		"userId":   "u-1",
		"password": "hunter2",
		"apiKey":   "sk-123",
		"profile": map[string]any{
			"email":       "a@example.com",
			"phoneNumber": "+1555",
			"country":     "US",
		},
	}
	r.Record(ctx, "assess", input, nil, 0, "")

	entries, _ := r.Logs(ctx, EntryQuery{})
	got := entries[0].Input
	if got["password"] != redacted || got["apiKey"] != redacted {
		t.Errorf("top-level secrets not redacted: %+v", got)
	}
	profile := got["profile"].(map[string]any)
	if profile["email"] != redacted || profile["phoneNumber"] != redacted {
		t.Errorf("nested secrets not redacted: %+v", profile)
	}
	if profile["country"] != "US" {
		t.Errorf("non-sensitive field altered: %+v", profile)
	}
	// The caller's map is untouched.
	if input["password"] != "hunter2" {
		t.Error("sanitize must not mutate the original input")
	}
}

func TestRecord_UnserializableOutputPlaceholder(t *testing.T) {
	store := NewMemoryStore(0, 0)
	r := testRecorder(store)
	ctx := context.Background()

	r.Record(ctx, "assess", nil, math.Inf(1), 0, "")

	entries, _ := r.Logs(ctx, EntryQuery{})
	if len(entries) != 1 {
		t.Fatalf("entry should be recorded even when output is unserializable")
	}
	var out map[string]string
	if err := json.Unmarshal(entries[0].Output, &out); err != nil {
		t.Fatal(err)
	}
	if out["error"] != "Output not serializable" {
		t.Errorf("output = %s", entries[0].Output)
	}
}

func TestRecord_DisabledIsNoop(t *testing.T) {
	store := NewMemoryStore(0, 0)
	cases := []*flags.Flags{
		flags.New(nil),
		flags.New(map[string]bool{flags.AICoreEnabled: true}),
		flags.New(map[string]bool{flags.AIAuditLogging: true}),
		flags.New(map[string]bool{flags.AICoreEnabled: true, flags.AIAuditLogging: true, flags.EmergencyDisableAll: true}),
	}
	for i, f := range cases {
		r := NewRecorder(f, store)
		r.Record(context.Background(), "assess", nil, nil, 0, "")
		r.RecordSnapshot(context.Background(), "req-1", "assess", nil)
		entries, _ := store.Entries(context.Background(), EntryQuery{})
		if len(entries) != 0 {
			t.Errorf("case %d: disabled recorder wrote an entry", i)
		}
	}
}

func TestRecordSnapshot_OverwritesSameRequest(t *testing.T) {
	store := NewMemoryStore(0, 0)
	r := testRecorder(store)
	ctx := context.Background()

	r.RecordSnapshot(ctx, "req-1", "assess", map[string]any{"version": 1})
	r.RecordSnapshot(ctx, "req-1", "assess", map[string]any{"version": 2})

	snap, err := r.Snapshot(ctx, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.Data["version"] != 2 {
		t.Errorf("snapshot not overwritten: %+v", snap.Data)
	}

	all, _ := r.Snapshots(ctx, 0)
	if len(all) != 1 {
		t.Errorf("overwrite should not grow the store, got %d", len(all))
	}
}

func TestSnapshot_MissingReturnsNil(t *testing.T) {
	r := testRecorder(NewMemoryStore(0, 0))
	snap, err := r.Snapshot(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Errorf("missing snapshot should be nil, got %+v", snap)
	}
}

func TestMemoryStore_EntryFIFOBound(t *testing.T) {
	store := NewMemoryStore(5, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		store.AppendEntry(ctx, &Entry{ID: fmt.Sprintf("aud_%d", i), Operation: "assess"})
	}

	entries, _ := store.Entries(ctx, EntryQuery{Limit: 100})
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	// Newest first; the three oldest were evicted.
	if entries[0].ID != "aud_7" || entries[4].ID != "aud_3" {
		t.Errorf("unexpected window: first %s last %s", entries[0].ID, entries[4].ID)
	}
	evicted, _ := store.Evicted()
	if evicted != 3 {
		t.Errorf("evicted = %d, want 3", evicted)
	}
}

func TestMemoryStore_SnapshotFIFOBound(t *testing.T) {
	store := NewMemoryStore(5, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.SaveSnapshot(ctx, &Snapshot{RequestID: fmt.Sprintf("req-%d", i)})
	}

	all, _ := store.Snapshots(ctx, 100)
	if len(all) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(all))
	}
	if snap, _ := store.Snapshot(ctx, "req-0"); snap != nil {
		t.Error("oldest snapshot should be evicted")
	}
	if snap, _ := store.Snapshot(ctx, "req-4"); snap == nil {
		t.Error("newest snapshot should remain")
	}
	_, evicted := store.Evicted()
	if evicted != 2 {
		t.Errorf("evicted snapshots = %d, want 2", evicted)
	}
}

func TestMemoryStore_EntriesFilterAndLimit(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		op := "trust_score"
		if i%2 == 0 {
			op = "assess"
		}
		store.AppendEntry(ctx, &Entry{ID: fmt.Sprintf("aud_%d", i), Operation: op})
	}

	trust, _ := store.Entries(ctx, EntryQuery{Operation: "trust_score"})
	if len(trust) != 3 {
		t.Errorf("filtered = %d, want 3", len(trust))
	}
	for _, e := range trust {
		if e.Operation != "trust_score" {
			t.Errorf("filter leaked %s", e.Operation)
		}
	}

	limited, _ := store.Entries(ctx, EntryQuery{Limit: 2})
	if len(limited) != 2 || limited[0].ID != "aud_5" {
		t.Errorf("limit window wrong: %+v", limited)
	}
}

func TestSanitize_KeyVariants(t *testing.T) {
	in := map[string]any{
		"api_key":      "x",
		"accessToken":  "x",
		"clientSecret": "x",
		"homeAddress":  "x",
		"items":        []any{map[string]any{"password": "x", "name": "ok"}},
		"amount":       42.0,
	}
	out := Sanitize(in)
	for _, k := range []string{"api_key", "accessToken", "clientSecret", "homeAddress"} {
		if out[k] != redacted {
			t.Errorf("%s not redacted", k)
		}
	}
	item := out["items"].([]any)[0].(map[string]any)
	if item["password"] != redacted {
		t.Error("password inside slice not redacted")
	}
	if item["name"] != "ok" || out["amount"] != 42.0 {
		t.Error("non-sensitive values altered")
	}
}

func TestSanitize_Nil(t *testing.T) {
	if Sanitize(nil) != nil {
		t.Error("nil input should stay nil")
	}
}
