package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
)

func TestUserID(t *testing.T) {
	if err := UserID("u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", " u1", strings.Repeat("x", 129)} {
		err := UserID(bad)
		if err == nil || !model.IsValidationError(err) {
			t.Fatalf("expected validation error for %q, got %v", bad, err)
		}
	}
}

func TestDayKey(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-03-01", false},
		{"2024-02-30", true},
		{"2024-3-1", true},
		{"", true},
		{"2024-03-01T00:00:00Z", true},
	}
	for _, tt := range tests {
		if err := DayKey(tt.in); (err != nil) != tt.wantErr {
			t.Fatalf("DayKey(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
	}
}

func TestPlaceKey(t *testing.T) {
	if err := PlaceKey("pk_0002b606"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"pk_1", "PK_0002B606", "pk_0002b6067", "0002b606"} {
		if err := PlaceKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLimit(t *testing.T) {
	if n, err := Limit("limit", ""); err != nil || n != 0 {
		t.Fatalf("empty: %d %v", n, err)
	}
	if n, err := Limit("limit", "15"); err != nil || n != 15 {
		t.Fatalf("15: %d %v", n, err)
	}
	for _, bad := range []string{"-1", "ten", "1.5"} {
		if _, err := Limit("limit", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestCursor(t *testing.T) {
	if c, err := Cursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor: %v %v", c, err)
	}
	want := model.Cursor{Intent: 1, Match: 50, SeenAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), UserID: "u2"}
	got, err := Cursor(want.Encode())
	if err != nil || got == nil || got.UserID != "u2" || !got.SeenAt.Equal(want.SeenAt) {
		t.Fatalf("round trip: %+v %v", got, err)
	}
	if _, err := Cursor("not*base64"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}
