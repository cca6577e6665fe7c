package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore implements Store backed by PostgreSQL. Retention is
// left to the database; the FIFO bounds apply to the memory store only.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit tables if they do not exist. The goose
// migrations under migrations/ carry the same schema for deployments.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			operation TEXT NOT NULL,
			input JSONB NOT NULL DEFAULT '{}',
			output JSONB NOT NULL DEFAULT '{}',
			processing_time_ms BIGINT NOT NULL DEFAULT 0,
			version TEXT NOT NULL,
			correlation_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_operation
			ON audit_entries (operation, created_at DESC);

		CREATE TABLE IF NOT EXISTS decision_snapshots (
			request_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			operation TEXT NOT NULL,
			data JSONB NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_decision_snapshots_created
			ON decision_snapshots (created_at DESC);`

	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) AppendEntry(ctx context.Context, entry *Entry) error {
	input, err := json.Marshal(entry.Input)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO audit_entries
			(id, created_at, operation, input, output, processing_time_ms, version, correlation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = p.db.ExecContext(ctx, q,
		entry.ID,
		entry.Timestamp,
		entry.Operation,
		input,
		[]byte(entry.Output),
		entry.ProcessingTimeMs,
		entry.Version,
		entry.CorrelationID,
	)
	return err
}

func (p *PostgresStore) Entries(ctx context.Context, q EntryQuery) ([]*Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, created_at, operation, input, output, processing_time_ms, version, correlation_id
		FROM audit_entries`
	args := []interface{}{}
	if q.Operation != "" {
		query += " WHERE operation = $1"
		args = append(args, q.Operation)
	}
	if len(args) == 0 {
		query += " ORDER BY created_at DESC LIMIT $1"
	} else {
		query += " ORDER BY created_at DESC LIMIT $2"
	}
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var input, output []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Operation, &input, &output,
			&e.ProcessingTimeMs, &e.Version, &e.CorrelationID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(input, &e.Input); err != nil {
			return nil, err
		}
		e.Output = json.RawMessage(output)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO decision_snapshots (request_id, created_at, operation, data)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (request_id) DO UPDATE
			SET created_at = EXCLUDED.created_at,
			    operation = EXCLUDED.operation,
			    data = EXCLUDED.data`

	_, err = p.db.ExecContext(ctx, q, snap.RequestID, snap.Timestamp, snap.Operation, data)
	return err
}

func (p *PostgresStore) Snapshot(ctx context.Context, requestID string) (*Snapshot, error) {
	const q = `
		SELECT request_id, created_at, operation, data
		FROM decision_snapshots
		WHERE request_id = $1`

	row := p.db.QueryRowContext(ctx, q, requestID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return snap, err
}

func (p *PostgresStore) Snapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
		SELECT request_id, created_at, operation, data
		FROM decision_snapshots
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := p.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	snap := &Snapshot{}
	var data []byte
	if err := row.Scan(&snap.RequestID, &snap.Timestamp, &snap.Operation, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &snap.Data); err != nil {
		return nil, err
	}
	return snap, nil
}
