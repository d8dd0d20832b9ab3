package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// Postgres SQLSTATE codes the classifier maps.
const (
	codeUndefinedTable    = "42P01"
	codeUndefinedFunction = "42883"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store is the native Postgres store backed directly by database/sql.
type Store struct{ db *sql.DB }

// NewWithDB constructs a Postgres store over an open handle.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Visits() store.Visits { return &visits{db: s.db} }
func (s *Store) Edges() store.Edges   { return &edges{db: s.db} }
func (s *Store) Groups() store.Groups { return &groups{db: s.db} }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// PutProfile upserts a public profile row. Used by seeding tools and tests.
func (s *Store) PutProfile(ctx context.Context, p model.Profile) error {
	goals := p.RelationshipGoals
	if goals == nil {
		goals = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO profiles (id, username, full_name, avatar_url, is_verified, relationship_goals)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET
            username = EXCLUDED.username,
            full_name = EXCLUDED.full_name,
            avatar_url = EXCLUDED.avatar_url,
            is_verified = EXCLUDED.is_verified,
            relationship_goals = EXCLUDED.relationship_goals
    `, p.ID, p.Username, p.FullName, nullIfEmpty(p.AvatarURL), p.IsVerified, goals)
	return wrapErr("profiles", err)
}

// Bootstrap performs a connectivity check and, when migrate is set, applies Schema.
func Bootstrap(ctx context.Context, dsn string, migrate bool) error {
	if dsn == "" {
		return nil // No DSN configured, skip bootstrap
	}

	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if migrate {
		return Migrate(ctx, db)
	}
	return nil
}

// --- Visits ---
type visits struct{ db *sql.DB }

func (v *visits) Upsert(ctx context.Context, in model.Visit) error {
	_, err := v.db.ExecContext(ctx, `
        INSERT INTO crossed_path_visits (user_id, place_key, day_key, seen_at, address_label)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, day_key, place_key) DO UPDATE SET
            seen_at = EXCLUDED.seen_at,
            address_label = EXCLUDED.address_label
    `, in.UserID, in.PlaceKey, in.DayKey, in.SeenAt.UTC(), in.AddressLabel)
	return wrapErr(store.TableVisits, err)
}

// --- Edges ---
type edges struct{ db *sql.DB }

func (e *edges) Upsert(ctx context.Context, rows []model.Edge) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return wrapErr(store.TableEdges, err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO crossed_paths (user_id, crossed_user_id, address_label, address_key, day_key, seen_at)
            VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (user_id, crossed_user_id, day_key, address_key) DO UPDATE SET
                address_label = EXCLUDED.address_label,
                seen_at = EXCLUDED.seen_at
        `, r.UserID, r.CrossedUserID, r.AddressLabel, r.AddressKey, r.DayKey, r.SeenAt.UTC()); err != nil {
			return wrapErr(store.TableEdges, err)
		}
	}
	return wrapErr(store.TableEdges, tx.Commit())
}

func (e *edges) ListSince(ctx context.Context, userID string, since time.Time) ([]model.Edge, error) {
	rows, err := e.db.QueryContext(ctx, `
        SELECT user_id, crossed_user_id, address_label, address_key, day_key, seen_at
        FROM crossed_paths
        WHERE user_id=$1 AND seen_at >= $2
        ORDER BY seen_at DESC
    `, userID, since.UTC())
	if err != nil {
		return nil, wrapErr(store.TableEdges, err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

// rowScanner is the subset of *sql.Rows the scan helpers read.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEdges(rows rowScanner) ([]model.Edge, error) {
	var out []model.Edge
	for rows.Next() {
		var r model.Edge
		if err := rows.Scan(&r.UserID, &r.CrossedUserID, &r.AddressLabel, &r.AddressKey, &r.DayKey, &r.SeenAt); err != nil {
			return nil, wrapErr(store.TableEdges, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(store.TableEdges, err)
	}
	return out, nil
}

// --- Groups ---
type groups struct{ db *sql.DB }

// asViewer runs fn in a transaction whose request claims identify viewerID,
// mirroring how the hosted backend scopes the routines to the caller.
func (g *groups) asViewer(ctx context.Context, viewerID string, fn func(tx *sql.Tx) error) error {
	tx, err := g.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `SELECT set_config('request.jwt.claim.sub', $1, true)`, viewerID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (g *groups) List(ctx context.Context, viewerID string) ([]model.Group, error) {
	var out []model.Group
	err := g.asViewer(ctx, viewerID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT day_key, place_key, address_label, last_seen FROM get_my_crossed_paths_groups()`)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var gr model.Group
			if err := rows.Scan(&gr.DayKey, &gr.PlaceKey, &gr.AddressLabel, &gr.LastSeen); err != nil {
				return err
			}
			out = append(out, gr)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapErr(store.RoutineGroups, err)
	}
	return out, nil
}

func (g *groups) People(ctx context.Context, viewerID string, q model.PeopleQuery) ([]model.Person, error) {
	var (
		cIntent, cMatch sql.NullInt64
		cSeen           sql.NullTime
		cUser           sql.NullString
	)
	if c := q.Cursor; c != nil {
		cIntent = sql.NullInt64{Int64: int64(c.Intent), Valid: true}
		cMatch = sql.NullInt64{Int64: int64(c.Match), Valid: true}
		cSeen = sql.NullTime{Time: c.SeenAt.UTC(), Valid: true}
		cUser = sql.NullString{String: c.UserID, Valid: true}
	}

	var out []model.Person
	err := g.asViewer(ctx, viewerID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
            SELECT user_id, username, full_name, coalesce(avatar_url, ''), is_verified,
                   to_json(relationship_goals)::text, match_percent, same_intent, last_seen,
                   cursor_intent, cursor_match, cursor_seen_at, cursor_user_id
            FROM get_crossed_paths_people($1,$2,$3,$4,$5,$6,$7)
        `, q.DayKey, q.PlaceKey, q.Limit, cIntent, cMatch, cSeen, cUser)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var (
				p     model.Person
				goals string
			)
			if err := rows.Scan(&p.UserID, &p.Username, &p.FullName, &p.AvatarURL, &p.IsVerified,
				&goals, &p.MatchPercent, &p.SameIntent, &p.LastSeen,
				&p.CursorIntent, &p.CursorMatch, &p.CursorSeenAt, &p.CursorUserID); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(goals), &p.RelationshipGoals); err != nil {
				return fmt.Errorf("decode relationship_goals: %w", err)
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapErr(store.RoutinePeople, err)
	}
	return out, nil
}

// helpers

// wrapErr classifies err by SQLSTATE. Nil stays nil.
func wrapErr(resource string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &store.Error{Class: store.Other, Resource: resource, Err: err}
	}
	class := store.Other
	switch pgErr.Code {
	case codeUndefinedTable:
		class = store.SchemaMissing
	case codeUndefinedFunction:
		class = store.RoutineMissing
	}
	return &store.Error{Class: class, Code: pgErr.Code, Resource: resource, Err: err}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
