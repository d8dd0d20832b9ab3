// Package rest implements store.Store against a PostgREST-style HTTP backend:
// tables under /rest/v1/<table>, routines under /rest/v1/rpc/<name>.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// Options configures the REST store.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Store talks to the backend over resty.
type Store struct {
	client *resty.Client
	apiKey string
}

type tokenKey struct{}

// WithAccessToken attaches the caller's access token. Routines resolve the viewer from it.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func accessToken(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// New creates a REST store. BaseURL must be set.
func New(opts Options) (*Store, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("rest base URL is empty")
	}
	to := opts.Timeout
	if to <= 0 {
		to = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(to)
	if opts.APIKey != "" {
		c.SetHeader("apikey", opts.APIKey)
	}
	return &Store{client: c, apiKey: opts.APIKey}, nil
}

func (s *Store) Visits() store.Visits { return &visits{s} }
func (s *Store) Edges() store.Edges   { return &edges{s} }
func (s *Store) Groups() store.Groups { return &groups{s} }

// HealthPing checks that the backend answers. Any non-5xx response counts.
func (s *Store) HealthPing(ctx context.Context) error {
	resp, err := s.request(ctx).Get("/rest/v1/")
	if err != nil {
		return fmt.Errorf("rest health: %w", err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("rest health: status %d", resp.StatusCode())
	}
	return nil
}

func (s *Store) request(ctx context.Context) *resty.Request {
	r := s.client.R().SetContext(ctx)
	if tok := accessToken(ctx); tok != "" {
		r.SetAuthToken(tok)
	} else if s.apiKey != "" {
		r.SetAuthToken(s.apiKey)
	}
	return r
}

// --- Visits ---
type visits struct{ s *Store }

func (v *visits) Upsert(ctx context.Context, in model.Visit) error {
	resp, err := v.s.request(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetQueryParam("on_conflict", "user_id,day_key,place_key").
		SetBody([]model.Visit{in}).
		Post("/rest/v1/" + store.TableVisits)
	return check(store.TableVisits, resp, err)
}

// --- Edges ---
type edges struct{ s *Store }

func (e *edges) Upsert(ctx context.Context, rows []model.Edge) error {
	if len(rows) == 0 {
		return nil
	}
	resp, err := e.s.request(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetQueryParam("on_conflict", "user_id,crossed_user_id,day_key,address_key").
		SetBody(rows).
		Post("/rest/v1/" + store.TableEdges)
	return check(store.TableEdges, resp, err)
}

func (e *edges) ListSince(ctx context.Context, userID string, since time.Time) ([]model.Edge, error) {
	resp, err := e.s.request(ctx).
		SetQueryParams(map[string]string{
			"select":  "user_id,crossed_user_id,address_label,address_key,day_key,seen_at",
			"user_id": "eq." + userID,
			"seen_at": "gte." + since.UTC().Format(time.RFC3339Nano),
			"order":   "seen_at.desc",
		}).
		Get("/rest/v1/" + store.TableEdges)
	if err := check(store.TableEdges, resp, err); err != nil {
		return nil, err
	}
	var out []model.Edge
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.TableEdges, err)
	}
	return out, nil
}

// --- Groups ---
type groups struct{ s *Store }

// List calls the grouping routine. The backend scopes it to the access token's subject;
// viewerID is informational.
func (g *groups) List(ctx context.Context, viewerID string) ([]model.Group, error) {
	resp, err := g.s.request(ctx).
		SetBody(map[string]any{}).
		Post("/rest/v1/rpc/" + store.RoutineGroups)
	if err := check(store.RoutineGroups, resp, err); err != nil {
		return nil, err
	}
	var out []model.Group
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.RoutineGroups, err)
	}
	return out, nil
}

type peopleArgs struct {
	Day          string     `json:"p_day"`
	PlaceKey     string     `json:"p_place_key"`
	Limit        int        `json:"p_limit"`
	CursorIntent *int       `json:"p_cursor_intent"`
	CursorMatch  *int       `json:"p_cursor_match"`
	CursorSeenAt *time.Time `json:"p_cursor_seen_at"`
	CursorUserID *string    `json:"p_cursor_user_id"`
}

func (g *groups) People(ctx context.Context, viewerID string, q model.PeopleQuery) ([]model.Person, error) {
	args := peopleArgs{Day: q.DayKey, PlaceKey: q.PlaceKey, Limit: q.Limit}
	if c := q.Cursor; c != nil {
		intent, match, seen, user := c.Intent, c.Match, c.SeenAt.UTC(), c.UserID
		args.CursorIntent, args.CursorMatch, args.CursorSeenAt, args.CursorUserID = &intent, &match, &seen, &user
	}
	resp, err := g.s.request(ctx).SetBody(&args).Post("/rest/v1/rpc/" + store.RoutinePeople)
	if err := check(store.RoutinePeople, resp, err); err != nil {
		return nil, err
	}
	var out []model.Person
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.RoutinePeople, err)
	}
	for i := range out {
		if out[i].RelationshipGoals == nil {
			out[i].RelationshipGoals = []string{}
		}
	}
	return out, nil
}
