package store

import (
	"context"
	"time"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
)

// Resource names on the remote backend.
const (
	TableVisits   = "crossed_path_visits"
	TableEdges    = "crossed_paths"
	RoutineGroups = "get_my_crossed_paths_groups"
	RoutinePeople = "get_crossed_paths_people"
)

// Store exposes the remote operations the crossed-paths core consumes.
// Implementations live under internal/store/<driver>/ (e.g., postgres, rest).
type Store interface {
	Visits() Visits
	Edges() Edges
	Groups() Groups
}

// Visits upserts on (user_id, day_key, place_key), overwriting seen_at and address_label.
type Visits interface {
	Upsert(ctx context.Context, v model.Visit) error
}

// Edges upserts on (user_id, crossed_user_id, day_key, address_key).
type Edges interface {
	Upsert(ctx context.Context, edges []model.Edge) error
	ListSince(ctx context.Context, userID string, since time.Time) ([]model.Edge, error)
}

// Groups fronts the grouping and people routines. Both run as viewerID.
type Groups interface {
	List(ctx context.Context, viewerID string) ([]model.Group, error)
	People(ctx context.Context, viewerID string, q model.PeopleQuery) ([]model.Person, error)
}
