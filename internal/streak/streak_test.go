package streak

import (
	"testing"
	"time"

	"github.com/arena-oj/arena/internal/domain"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestUpdate_SameDayKeepsCounters(t *testing.T) {
	s := domain.Streak{Current: 4, Longest: 9, LastUpdated: at("2024-03-10T01:00:00Z")}
	now := at("2024-03-10T23:59:59Z")

	got := Update(s, now)
	if got.Current != 4 || got.Longest != 9 {
		t.Errorf("counters changed: %+v", got)
	}
	if !got.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, now)
	}
}

func TestUpdate_ConsecutiveDayIncrements(t *testing.T) {
	tests := []struct {
		name        string
		in          domain.Streak
		wantCurrent int
		wantLongest int
	}{
		{"extends longest", domain.Streak{Current: 3, Longest: 3}, 4, 4},
		{"below longest", domain.Streak{Current: 1, Longest: 7}, 2, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.LastUpdated = at("2024-03-10T23:30:00Z")
			got := Update(tt.in, at("2024-03-11T00:10:00Z"))
			if got.Current != tt.wantCurrent || got.Longest != tt.wantLongest {
				t.Errorf("got %d/%d, want %d/%d", got.Current, got.Longest, tt.wantCurrent, tt.wantLongest)
			}
		})
	}
}

func TestUpdate_GapResetsToOne(t *testing.T) {
	for _, gap := range []int{2, 3, 30, 400} {
		s := domain.Streak{Current: 12, Longest: 15, LastUpdated: at("2024-01-01T12:00:00Z")}
		got := Update(s, s.LastUpdated.AddDate(0, 0, gap))
		if got.Current != 1 {
			t.Errorf("gap %d: Current = %d, want 1", gap, got.Current)
		}
		if got.Longest != 15 {
			t.Errorf("gap %d: Longest = %d, want 15", gap, got.Longest)
		}
	}
}

func TestUpdate_FutureLastUpdatedResets(t *testing.T) {
	s := domain.Streak{Current: 5, Longest: 5, LastUpdated: at("2024-05-02T00:00:00Z")}
	got := Update(s, at("2024-05-01T12:00:00Z"))
	if got.Current != 1 || got.Longest != 5 {
		t.Errorf("got %+v", got)
	}
}

func TestUpdate_NeverActiveStartsAtOne(t *testing.T) {
	got := Update(domain.Streak{}, at("2024-05-01T12:00:00Z"))
	if got.Current != 1 || got.Longest != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestUpdate_UsesUTCDates(t *testing.T) {
	// 23:30 in UTC-5 on the 10th is already the 11th in UTC.
	est := time.FixedZone("EST", -5*3600)
	s := domain.Streak{Current: 2, Longest: 2, LastUpdated: at("2024-03-10T12:00:00Z")}
	got := Update(s, time.Date(2024, 3, 10, 23, 30, 0, 0, est))
	if got.Current != 3 {
		t.Errorf("Current = %d, want 3", got.Current)
	}
	if got.LastUpdated.Location() != time.UTC {
		t.Errorf("LastUpdated not normalized to UTC: %v", got.LastUpdated)
	}
}

func TestUpdate_IdempotentWithinDay(t *testing.T) {
	s := domain.Streak{Current: 1, Longest: 1, LastUpdated: at("2024-03-09T10:00:00Z")}
	once := Update(s, at("2024-03-10T08:00:00Z"))
	twice := Update(once, at("2024-03-10T20:00:00Z"))
	if once.Current != twice.Current || once.Longest != twice.Longest {
		t.Errorf("second call changed counters: %+v -> %+v", once, twice)
	}
}

func TestDaysBetween(t *testing.T) {
	if d := DaysBetween(at("2024-02-28T23:00:00Z"), at("2024-03-01T01:00:00Z")); d != 2 {
		t.Errorf("leap-year span = %d, want 2", d)
	}
	if d := DaysBetween(at("2024-03-01T00:00:00Z"), at("2024-02-29T23:59:00Z")); d != -1 {
		t.Errorf("backwards span = %d, want -1", d)
	}
}
