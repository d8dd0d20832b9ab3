package model

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Cursor is the last row of a page. Rows are ordered by
// Intent DESC, Match DESC, SeenAt DESC, UserID ASC.
type Cursor struct {
	Intent int       `json:"intent"`
	Match  int       `json:"match"`
	SeenAt time.Time `json:"seen_at"`
	UserID string    `json:"user_id"`
}

// Less reports whether c sorts before o.
func (c Cursor) Less(o Cursor) bool {
	if c.Intent != o.Intent {
		return c.Intent > o.Intent
	}
	if c.Match != o.Match {
		return c.Match > o.Match
	}
	if !c.SeenAt.Equal(o.SeenAt) {
		return c.SeenAt.After(o.SeenAt)
	}
	return c.UserID < o.UserID
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, NewValidationError("cursor", "malformed cursor token")
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, NewValidationError("cursor", "malformed cursor token")
	}
	if c.UserID == "" {
		return nil, NewValidationError("cursor", "cursor is missing user id")
	}
	return &c, nil
}
