// Package sqlitekv is the default on-device localstate.KV driver.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/crossedpaths/crossedpaths/server/internal/localstate"
)

// KV implements localstate.KV on a single SQLite table.
type KV struct {
	db *sql.DB
}

// New opens the database at path and ensures the schema exists.
func New(path string) (*KV, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	kv, err := NewWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

// NewWithDB wires an existing connection and ensures the schema exists.
func NewWithDB(db *sql.DB) (*KV, error) {
	if err := localstate.EnsureSQLiteSchema(db); err != nil {
		return nil, err
	}
	return &KV{db: db}, nil
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT Value FROM KeyValues WHERE Key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO KeyValues (Key, Value, UpdateTime) VALUES (?,?,?)
        ON CONFLICT(Key) DO UPDATE SET Value = excluded.Value, UpdateTime = excluded.UpdateTime
    `, key, value, time.Now().UTC())
	return err
}

// HealthPing implements health.HealthPinger.
func (s *KV) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *KV) Close() error { return s.db.Close() }
