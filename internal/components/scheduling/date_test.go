package scheduling_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2026-03-10", "2026-03-10", false},
		{"2024-02-29", "2024-02-29", false},
		{"2026-02-29", "", true},
		{"2026-02-30", "", true},
		{"2026-13-01", "", true},
		{"2026-3-10", "", true},
		{"10/03/2026", "", true},
		{"2026-03-10T00:00:00Z", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := scheduling.ParseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %s", tt.in, d)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.String() != tt.want {
				t.Errorf("got %s, want %s", d, tt.want)
			}
		})
	}
}

func TestDateOrdering(t *testing.T) {
	a := scheduling.MustParseDate("2026-01-31")
	b := scheduling.MustParseDate("2026-02-01")

	if !a.Before(b) || a.After(b) {
		t.Errorf("expected %s before %s", a, b)
	}
	if a.Compare(a) != 0 {
		t.Error("date must compare equal to itself")
	}
	if got := a.AddDays(1); got != b {
		t.Errorf("AddDays across month: got %s, want %s", got, b)
	}
	if got := b.AddDays(-1); got != a {
		t.Errorf("AddDays backwards: got %s, want %s", got, a)
	}
}

func TestDateCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2026-03-10", "2026-03-10", 0},
		{"2025-12-31", "2026-01-01", -1},
		{"2026-11-01", "2026-02-28", 1},
		{"2026-03-09", "2026-03-10", -1},
		{"2026-03-10", "2026-03-09", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			a, b := scheduling.MustParseDate(tt.a), scheduling.MustParseDate(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare = %d, want %d", got, tt.want)
			}
			if got := b.Compare(a); got != -tt.want {
				t.Errorf("reverse Compare = %d, want %d", got, -tt.want)
			}
		})
	}
}

func TestTodayIsUTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	now := func() time.Time { return time.Date(2026, 3, 10, 23, 30, 0, 0, loc) }

	if got := scheduling.Today(now).String(); got != "2026-03-11" {
		t.Errorf("Today = %s, want 2026-03-11", got)
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D scheduling.Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2026-03-10"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(v)
	if string(out) != `{"d":"2026-03-10"}` {
		t.Errorf("got %s", out)
	}
	if err := json.Unmarshal([]byte(`{"d":"2026-02-30"}`), &v); err == nil {
		t.Error("expected error for impossible day")
	}
}
