package model

import "time"

// Address is a raw reverse-geocoded address as produced by the device geocoder.
type Address struct {
	Name         string `json:"name,omitempty"`
	StreetNumber string `json:"streetNumber,omitempty"`
	Street       string `json:"street,omitempty"`
	District     string `json:"district,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	City         string `json:"city,omitempty"`
	Subregion    string `json:"subregion,omitempty"`
	Region       string `json:"region,omitempty"`
	Country      string `json:"country,omitempty"`
}

// Location is a device coordinate. It is never persisted.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Visit records that a user was at a place on a day.
// Unique per (UserID, DayKey, PlaceKey).
type Visit struct {
	UserID       string    `json:"user_id"`
	PlaceKey     string    `json:"place_key"`
	DayKey       string    `json:"day_key"`
	SeenAt       time.Time `json:"seen_at"`
	AddressLabel string    `json:"address_label"`
}

// Edge is the legacy pairwise co-presence row.
// Unique per (UserID, CrossedUserID, DayKey, AddressKey).
type Edge struct {
	UserID        string    `json:"user_id"`
	CrossedUserID string    `json:"crossed_user_id"`
	AddressLabel  string    `json:"address_label"`
	AddressKey    string    `json:"address_key"`
	DayKey        string    `json:"day_key"`
	SeenAt        time.Time `json:"seen_at"`
}

// Group is a (day, place) bucket as seen by one viewer.
type Group struct {
	DayKey       string    `json:"day_key"`
	PlaceKey     string    `json:"place_key"`
	AddressLabel string    `json:"address_label"`
	LastSeen     time.Time `json:"last_seen"`
}

// Profile is the public profile data the people routine joins against.
type Profile struct {
	ID                string   `json:"id"`
	Username          string   `json:"username"`
	FullName          string   `json:"full_name"`
	AvatarURL         string   `json:"avatar_url,omitempty"`
	IsVerified        bool     `json:"is_verified"`
	RelationshipGoals []string `json:"relationship_goals"`
}

// Person is one row of a group's people list.
type Person struct {
	UserID            string    `json:"user_id"`
	Username          string    `json:"username"`
	FullName          string    `json:"full_name"`
	AvatarURL         string    `json:"avatar_url,omitempty"`
	IsVerified        bool      `json:"is_verified"`
	RelationshipGoals []string  `json:"relationship_goals"`
	MatchPercent      int       `json:"match_percent"`
	SameIntent        bool      `json:"same_intent"`
	LastSeen          time.Time `json:"last_seen"`
	CursorIntent      int       `json:"cursor_intent"`
	CursorMatch       int       `json:"cursor_match"`
	CursorSeenAt      time.Time `json:"cursor_seen_at"`
	CursorUserID      string    `json:"cursor_user_id"`
}

// Cursor returns the pagination position of this row.
func (p Person) Cursor() Cursor {
	return Cursor{Intent: p.CursorIntent, Match: p.CursorMatch, SeenAt: p.CursorSeenAt, UserID: p.CursorUserID}
}

// PeopleQuery selects one page of a group's people.
type PeopleQuery struct {
	DayKey   string
	PlaceKey string
	Limit    int
	Cursor   *Cursor
}

// Page is one page of people. HasMore is true when the page came back full.
type Page struct {
	People     []Person `json:"people"`
	NextCursor *Cursor  `json:"next_cursor,omitempty"`
	HasMore    bool     `json:"has_more"`
}

// GroupWithPeople pairs a group with the first page of its people.
type GroupWithPeople struct {
	Group
	People  []Person `json:"people"`
	HasMore bool     `json:"has_more"`
}
