// Package place derives privacy-preserving place fingerprints and display labels
// from reverse-geocoded addresses.
package place

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
)

const keyPrefix = "pk_"

// Key returns the PlaceKey for a visit. Addresses with a street number are keyed by
// street address; everything else by venue name plus a 4-decimal coordinate (or
// "nogeo"). Raw coordinates never leave this function.
func Key(label string, addr *model.Address, loc *model.Location) string {
	return hash(canonical(label, addr, loc))
}

// DayKey is the YYYY-MM-DD calendar date of t in t's own location.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func canonical(label string, addr *model.Address, loc *model.Location) string {
	var a model.Address
	if addr != nil {
		a = *addr
	}
	tail := []string{norm(a.PostalCode), norm(a.City), norm(a.Region), norm(a.Country)}

	if norm(a.StreetNumber) != "" {
		head := norm(a.StreetNumber + " " + a.Street)
		return strings.Join(append([]string{head}, tail...), "|")
	}

	venue := norm(a.Name)
	if venue == "" {
		venue = norm(label)
	}
	geo := "nogeo"
	if loc != nil {
		geo = strconv.FormatFloat(loc.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(loc.Long, 'f', 4, 64)
	}
	parts := append([]string{venue}, tail...)
	return strings.Join(append(parts, geo), "|")
}

// norm lower-cases, collapses internal whitespace and trims.
func norm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// hash is djb2 over UTF-16 code units, matching keys written by the mobile clients.
func hash(s string) string {
	var h uint32 = 5381
	for _, u := range utf16.Encode([]rune(s)) {
		h = h<<5 + h + uint32(u)
	}
	return fmt.Sprintf("%s%08x", keyPrefix, h)
}
