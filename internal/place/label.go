package place

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
)

var (
	allDigitsRx  = regexp.MustCompile(`^\d+$`)
	digitRx      = regexp.MustCompile(`\d`)
	separatorRx  = regexp.MustCompile(`[\s,]`)
	leadingNumRx = regexp.MustCompile(`^\d+`)
)

// Label returns a redacted display label for addr. The exact street number is never
// emitted; it is rounded down to its hundred block. ok is false when nothing usable
// could be derived, which means no visit can be recorded here.
func Label(addr *model.Address) (label string, ok bool) {
	if addr == nil {
		return "", false
	}
	name := strings.TrimSpace(addr.Name)
	street := strings.TrimSpace(addr.Street)
	city := strings.TrimSpace(addr.City)
	region := strings.TrimSpace(addr.Region)

	if looksLikeAddress(name) || containsToken(name, addr.StreetNumber) {
		name = ""
	}

	primary := name
	if primary == "" && street != "" {
		primary = street
		if n, ok := streetNumber(addr.StreetNumber); ok {
			primary = fmt.Sprintf("%s (%d block)", street, n/100*100)
		}
	}
	if primary == "" {
		primary = city
	}
	if primary == "" {
		return "", false
	}

	var locality []string
	if city != "" {
		locality = append(locality, city)
	}
	if region != "" && region != city {
		locality = append(locality, region)
	}
	if primary == city || len(locality) == 0 {
		return primary, true
	}
	return primary + " • " + strings.Join(locality, ", "), true
}

// looksLikeAddress reports whether a geocoder name is really a raw address fragment
// such as "742" or "742 Evergreen Terrace".
func looksLikeAddress(name string) bool {
	if name == "" {
		return false
	}
	if allDigitsRx.MatchString(name) {
		return true
	}
	return digitRx.MatchString(name) && separatorRx.MatchString(name)
}

// containsToken reports whether tok appears in s as a standalone word, as in "742-744".
func containsToken(s, tok string) bool {
	tok = strings.TrimSpace(tok)
	if s == "" || tok == "" {
		return false
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(tok) + `\b`).MatchString(s)
}

func streetNumber(raw string) (int, bool) {
	m := leadingNumRx.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
