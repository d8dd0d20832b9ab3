package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow_Cutoff(t *testing.T) {
	now := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Default().Cutoff(now))
	assert.Equal(t, Default().Cutoff(now), Window{}.Cutoff(now), "zero value falls back to 7 days")
	assert.Equal(t, time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC), Window{Days: 1}.Cutoff(now))
}

func TestPrune_DropsRowsOlderThanWindow(t *testing.T) {
	now := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	rows := []time.Time{
		now.Add(-6 * 24 * time.Hour),
		now.Add(-8 * 24 * time.Hour),
		now,
		now.Add(-7 * 24 * time.Hour),
	}
	kept := Prune(Default(), rows, func(ts time.Time) time.Time { return ts }, now)
	assert.Equal(t, []time.Time{rows[0], rows[2], rows[3]}, kept)
	assert.Len(t, rows, 4)
}
