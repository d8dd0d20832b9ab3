package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the crossed-paths tables and routines. Statements are idempotent.
// The routines resolve the caller from request.jwt.claim.sub, which is how the hosted
// backend exposes the authenticated user to SQL.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
        id                 text PRIMARY KEY,
        username           text,
        full_name          text,
        avatar_url         text,
        is_verified        boolean NOT NULL DEFAULT false,
        relationship_goals text[] NOT NULL DEFAULT '{}'
    )`,
	`CREATE TABLE IF NOT EXISTS crossed_path_visits (
        user_id       text NOT NULL,
        place_key     text NOT NULL,
        day_key       text NOT NULL,
        seen_at       timestamptz NOT NULL,
        address_label text NOT NULL,
        PRIMARY KEY (user_id, day_key, place_key)
    )`,
	`CREATE INDEX IF NOT EXISTS crossed_path_visits_day_place_idx ON crossed_path_visits (day_key, place_key)`,
	`CREATE TABLE IF NOT EXISTS crossed_paths (
        user_id         text NOT NULL,
        crossed_user_id text NOT NULL,
        address_label   text NOT NULL,
        address_key     text NOT NULL,
        day_key         text NOT NULL,
        seen_at         timestamptz NOT NULL,
        PRIMARY KEY (user_id, crossed_user_id, day_key, address_key),
        CHECK (user_id <> crossed_user_id)
    )`,
	`CREATE INDEX IF NOT EXISTS crossed_paths_user_seen_idx ON crossed_paths (user_id, seen_at DESC)`,
	`CREATE OR REPLACE FUNCTION crossed_paths_viewer() RETURNS text
    LANGUAGE sql STABLE AS $$
        SELECT nullif(current_setting('request.jwt.claim.sub', true), '')
    $$`,
	`CREATE OR REPLACE FUNCTION get_my_crossed_paths_groups()
    RETURNS TABLE (day_key text, place_key text, address_label text, last_seen timestamptz)
    LANGUAGE sql STABLE AS $$
        SELECT mine.day_key, mine.place_key, mine.address_label, max(other.seen_at)
        FROM crossed_path_visits mine
        JOIN crossed_path_visits other
          ON other.day_key = mine.day_key
         AND other.place_key = mine.place_key
         AND other.user_id <> mine.user_id
        WHERE mine.user_id = crossed_paths_viewer()
          AND mine.seen_at >= now() - interval '7 days'
          AND other.seen_at >= now() - interval '7 days'
        GROUP BY mine.day_key, mine.place_key, mine.address_label
        ORDER BY mine.day_key DESC, max(other.seen_at) DESC, mine.place_key ASC
    $$`,
	`CREATE OR REPLACE FUNCTION get_crossed_paths_people(
        p_day text, p_place_key text, p_limit int,
        p_cursor_intent int, p_cursor_match int, p_cursor_seen_at timestamptz, p_cursor_user_id text)
    RETURNS TABLE (
        user_id text, username text, full_name text, avatar_url text, is_verified boolean,
        relationship_goals text[], match_percent int, same_intent boolean, last_seen timestamptz,
        cursor_intent int, cursor_match int, cursor_seen_at timestamptz, cursor_user_id text)
    LANGUAGE sql STABLE AS $$
        WITH me AS (
            SELECT pr.relationship_goals AS goals FROM profiles pr WHERE pr.id = crossed_paths_viewer()
        ), people AS (
            SELECT v.user_id AS uid, max(v.seen_at) AS seen
            FROM crossed_path_visits v
            WHERE v.day_key = p_day
              AND v.place_key = p_place_key
              AND v.user_id <> crossed_paths_viewer()
              AND v.seen_at >= now() - interval '7 days'
              AND EXISTS (
                  SELECT 1 FROM crossed_path_visits m
                  WHERE m.user_id = crossed_paths_viewer() AND m.day_key = p_day AND m.place_key = p_place_key)
            GROUP BY v.user_id
        ), scored AS (
            SELECT pr.id, pr.username, pr.full_name, pr.avatar_url, pr.is_verified,
                   coalesce(pr.relationship_goals, '{}'::text[]) AS goals,
                   coalesce(me.goals, '{}'::text[]) AS my_goals,
                   people.seen
            FROM people
            JOIN profiles pr ON pr.id = people.uid
            LEFT JOIN me ON true
        ), counted AS (
            SELECT s.*,
                   (SELECT count(*) FROM (SELECT unnest(s.goals) INTERSECT SELECT unnest(s.my_goals)) i) AS shared,
                   (SELECT count(*) FROM (SELECT unnest(s.goals) UNION SELECT unnest(s.my_goals)) u) AS total
            FROM scored s
        ), ranked AS (
            SELECT c.*,
                   CASE WHEN c.total = 0 THEN 0 ELSE (100 * c.shared / c.total)::int END AS pct,
                   CASE WHEN c.shared > 0 THEN 1 ELSE 0 END AS intent
            FROM counted c
        )
        SELECT r.id, coalesce(r.username, ''), coalesce(r.full_name, ''), r.avatar_url, r.is_verified,
               r.goals, r.pct, r.intent = 1, r.seen, r.intent, r.pct, r.seen, r.id
        FROM ranked r
        WHERE p_cursor_user_id IS NULL
           OR r.intent < p_cursor_intent
           OR (r.intent = p_cursor_intent AND r.pct < p_cursor_match)
           OR (r.intent = p_cursor_intent AND r.pct = p_cursor_match AND r.seen < p_cursor_seen_at)
           OR (r.intent = p_cursor_intent AND r.pct = p_cursor_match AND r.seen = p_cursor_seen_at AND r.id > p_cursor_user_id)
        ORDER BY r.intent DESC, r.pct DESC, r.seen DESC, r.id ASC
        LIMIT p_limit
    $$`,
}

// Migrate applies Schema inside a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for i, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return tx.Commit()
}
