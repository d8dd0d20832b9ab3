package crossedpaths

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/crossedpaths/crossedpaths/server/internal/metrics"
	"github.com/crossedpaths/crossedpaths/server/internal/retention"
)

// Defaults shared by the recorder and reader.
const (
	DefaultMaxProfiles        = 80
	DefaultPageSize           = 20
	DefaultMaxPageSize        = 100
	DefaultHistoryConcurrency = 3
)

// Options configures a Recorder or Reader. Zero values take the defaults above.
type Options struct {
	// Location is the zone used for the day key when a caller sends no timestamp.
	Location *time.Location
	Now      func() time.Time
	Window   retention.Window

	MaxProfiles        int
	DefaultPageSize    int
	MaxPageSize        int
	HistoryConcurrency int

	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Window.Days <= 0 {
		o.Window = retention.Default()
	}
	if o.MaxProfiles <= 0 {
		o.MaxProfiles = DefaultMaxProfiles
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = DefaultPageSize
	}
	if o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = o.MaxPageSize
	}
	if o.HistoryConcurrency <= 0 {
		o.HistoryConcurrency = DefaultHistoryConcurrency
	}
	return o
}
