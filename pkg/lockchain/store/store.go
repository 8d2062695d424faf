// Package store provides durable persistence for lockchain entries, backed
// by Postgres via pgx's database/sql driver and sqlx (spec §4.6
// "append(entry) -> hash" persisted form), grounded on the teacher's
// jackc/pgx + jmoiron/sqlx pairing. Using the stdlib-compatible driver
// (rather than pgx's native pool) lets tests exercise the real SQL against
// github.com/DATA-DOG/go-sqlmock instead of a live database.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/pkg/lockchain"
)

const schema = `
CREATE TABLE IF NOT EXISTS lockchain_entries (
	idx         BIGINT PRIMARY KEY,
	receipt_id  BIGINT NOT NULL,
	hash        BYTEA NOT NULL,
	parent_hash BYTEA,
	metadata    JSONB
);
`

// Store persists lockchain entries to Postgres. The in-memory
// lockchain.Chain remains the source of truth for the current process;
// Store is a write-behind durable log consulted on restart/audit.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and ensures the lockchain table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, kerrors.FailedTo("connect to lockchain database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, kerrors.FailedTo("create lockchain table", err)
	}
	return &Store{db: db}, nil
}

// OpenWithDB wraps an already-connected *sql.DB (used by tests against a
// sqlmock-backed connection).
func OpenWithDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "pgx")}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendEntry persists one lockchain entry at the given index.
func (s *Store) AppendEntry(ctx context.Context, idx int, e lockchain.Entry, metadataJSON []byte) error {
	var parent interface{} // untyped nil writes NULL for a root entry
	if e.ParentHash != nil {
		parent = e.ParentHash[:]
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lockchain_entries (idx, receipt_id, hash, parent_hash, metadata) VALUES ($1,$2,$3,$4,$5)`,
		idx, e.ReceiptID, e.Hash[:], parent, metadataJSON)
	if err != nil {
		return &kerrors.KernelError{
			Kind:    kerrors.KindChainBroken,
			Message: "failed to persist lockchain entry",
			Cause:   err,
		}
	}
	return nil
}

// LoadTip returns the hex-encoded hash of the highest-index persisted
// entry, or false if the table is empty.
func (s *Store) LoadTip(ctx context.Context) (string, bool, error) {
	var hash []byte
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM lockchain_entries ORDER BY idx DESC LIMIT 1`).Scan(&hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return hex.EncodeToString(hash), true, nil
}
