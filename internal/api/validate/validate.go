package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
)

// placeKeyRx matches keys produced by place.Key.
var placeKeyRx = regexp.MustCompile(`^pk_[0-9a-f]{8}$`)

const maxUserIDLen = 128

// UserID rejects empty, padded or oversized ids.
func UserID(v string) error {
	if v == "" {
		return model.NewValidationError("userId", "userId is required")
	}
	if strings.TrimSpace(v) != v {
		return model.NewValidationError("userId", "userId must not have surrounding whitespace")
	}
	if len(v) > maxUserIDLen {
		return model.NewValidationError("userId", "userId exceeds 128 characters")
	}
	return nil
}

// DayKey requires a YYYY-MM-DD calendar date.
func DayKey(v string) error {
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return model.NewValidationError("dayKey", "dayKey must be YYYY-MM-DD")
	}
	return nil
}

// PlaceKey requires the pk_ + 8 hex digit form.
func PlaceKey(v string) error {
	if !placeKeyRx.MatchString(v) {
		return model.NewValidationError("placeKey", "placeKey must match "+placeKeyRx.String())
	}
	return nil
}

// Limit parses an optional positive integer query parameter. Empty means 0 (server default).
func Limit(field, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, model.NewValidationError(field, field+" must be a non-negative integer")
	}
	return n, nil
}

// Cursor decodes an optional cursor token. Empty means the first page.
func Cursor(raw string) (*model.Cursor, error) {
	if raw == "" {
		return nil, nil
	}
	return model.DecodeCursor(raw)
}
