// Package crossedpaths records where users were seen and reads back who they crossed
// paths with. Recording is best-effort: it never returns an error to the caller.
package crossedpaths

import (
	"context"
	"strings"
	"time"

	"github.com/crossedpaths/crossedpaths/server/internal/localcache"
	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/place"
	"github.com/crossedpaths/crossedpaths/server/internal/seen"
	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// Outcome describes what a recorder call did.
type Outcome string

const (
	// Skipped: input was unusable or there was nothing new to write.
	Skipped Outcome = "skipped"
	// Recorded: the remote store accepted the write.
	Recorded Outcome = "recorded"
	// Fallback: the remote table is not deployed; the row went to the local cache.
	Fallback Outcome = "fallback"
	// Dropped: the write failed and nothing was stored.
	Dropped Outcome = "dropped"
)

// VisitInput is one location event.
type VisitInput struct {
	ViewerID     string          `json:"viewer_id"`
	AddressLabel string          `json:"address_label"`
	Address      *model.Address  `json:"address,omitempty"`
	Location     *model.Location `json:"location,omitempty"`
	SeenAt       *time.Time      `json:"seen_at,omitempty"`
}

// CrossedPathsInput is a location event plus the profiles shown as nearby.
type CrossedPathsInput struct {
	VisitInput
	ProfileIDs []string `json:"profile_ids"`
}

// Recorder writes visits and legacy edges.
type Recorder struct {
	store store.Store
	cache *localcache.Cache
	seen  *seen.Cache
	opts  Options
}

// NewRecorder wires a recorder. seen may be shared with other recorders of the same session.
func NewRecorder(s store.Store, cache *localcache.Cache, seen *seen.Cache, opts Options) *Recorder {
	return &Recorder{store: s, cache: cache, seen: seen, opts: opts.withDefaults()}
}

// Seen returns the recorder's seen cache.
func (r *Recorder) Seen() *seen.Cache { return r.seen }

// position resolves the label, timestamp, day key and place key of an event.
// ok is false when the event cannot be recorded.
func (r *Recorder) position(in VisitInput) (label string, at time.Time, day, key string, ok bool) {
	label = strings.TrimSpace(in.AddressLabel)
	if label == "" || strings.TrimSpace(in.ViewerID) == "" {
		return "", time.Time{}, "", "", false
	}
	if in.SeenAt != nil && !in.SeenAt.IsZero() {
		at = *in.SeenAt
	} else {
		at = r.opts.Now().In(r.opts.Location)
	}
	return label, at, place.DayKey(at), place.Key(label, in.Address, in.Location), true
}

// RecordVisit upserts one visit row. When the visits table is not deployed the row is kept
// in the viewer's local cache instead. Any other failure drops the visit.
func (r *Recorder) RecordVisit(ctx context.Context, in VisitInput) Outcome {
	out := r.recordVisit(ctx, in)
	r.opts.Metrics.Recorded("visit", string(out))
	return out
}

func (r *Recorder) recordVisit(ctx context.Context, in VisitInput) Outcome {
	label, at, day, key, ok := r.position(in)
	if !ok {
		return Skipped
	}
	v := model.Visit{UserID: in.ViewerID, PlaceKey: key, DayKey: day, SeenAt: at, AddressLabel: label}

	err := r.store.Visits().Upsert(ctx, v)
	if err == nil {
		return Recorded
	}
	log := r.opts.Log.With().Str("viewer", in.ViewerID).Str("place_key", key).Str("day_key", day).Logger()
	if store.ClassOf(err) != store.SchemaMissing {
		log.Warn().Err(err).Msg("record visit failed")
		return Dropped
	}
	if err := r.cache.PutVisit(ctx, v); err != nil {
		log.Warn().Err(err).Msg("record visit: local fallback failed")
		return Dropped
	}
	log.Debug().Msg("visits table missing; stored locally")
	return Fallback
}

// RecordCrossedPaths upserts legacy edges from the viewer to each nearby profile not yet
// recorded for this (viewer, day, place). At most MaxProfiles new profiles are written per call.
func (r *Recorder) RecordCrossedPaths(ctx context.Context, in CrossedPathsInput) Outcome {
	out := r.recordCrossedPaths(ctx, in)
	r.opts.Metrics.Recorded("crossed_paths", string(out))
	return out
}

func (r *Recorder) recordCrossedPaths(ctx context.Context, in CrossedPathsInput) Outcome {
	if len(in.ProfileIDs) == 0 {
		return Skipped
	}
	label, at, day, key, ok := r.position(in.VisitInput)
	if !ok {
		return Skipped
	}

	others := make([]string, 0, len(in.ProfileIDs))
	for _, id := range in.ProfileIDs {
		if id = strings.TrimSpace(id); id != "" && id != in.ViewerID {
			others = append(others, id)
		}
	}
	seenKey := seen.Key(in.ViewerID, day, key)
	fresh := r.seen.Unseen(ctx, seenKey, others)
	if len(fresh) == 0 {
		return Skipped
	}
	if len(fresh) > r.opts.MaxProfiles {
		fresh = fresh[:r.opts.MaxProfiles]
	}

	rows := make([]model.Edge, 0, len(fresh))
	for _, id := range fresh {
		rows = append(rows, model.Edge{
			UserID:        in.ViewerID,
			CrossedUserID: id,
			AddressLabel:  label,
			AddressKey:    key,
			DayKey:        day,
			SeenAt:        at,
		})
	}

	err := r.store.Edges().Upsert(ctx, rows)
	if err == nil {
		r.seen.Mark(ctx, seenKey, fresh)
		return Recorded
	}
	log := r.opts.Log.With().Str("viewer", in.ViewerID).Str("place_key", key).Str("day_key", day).Int("profiles", len(rows)).Logger()
	if store.ClassOf(err) != store.SchemaMissing {
		// The table exists; caching locally would diverge from the remote state.
		log.Warn().Err(err).Msg("record crossed paths failed")
		return Dropped
	}
	if err := r.cache.AppendEdges(ctx, in.ViewerID, rows); err != nil {
		log.Warn().Err(err).Msg("record crossed paths: local fallback failed")
		return Dropped
	}
	log.Debug().Msg("crossed_paths table missing; stored locally")
	return Fallback
}
