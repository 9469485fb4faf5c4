package entities

import (
	"testing"
	"time"
)

func TestPhaseWindowIsOpenFollowsInterval(t *testing.T) {
	start := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	window := PhaseWindow{
		Phase:    PhaseVoting,
		StartsAt: start,
		EndsAt:   start.Add(time.Hour),
	}
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before", now: start.Add(-time.Second), want: false},
		{name: "at start", now: start, want: true},
		{name: "inside", now: start.Add(30 * time.Minute), want: true},
		{name: "at end", now: start.Add(time.Hour), want: true},
		{name: "after", now: start.Add(time.Hour + time.Second), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window.IsOpen(tt.now); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPhaseWindowIgnoresCachedFlag(t *testing.T) {
	start := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	window := PhaseWindow{StartsAt: start, EndsAt: start.Add(time.Hour), CachedActive: true}
	if window.IsOpen(start.Add(2 * time.Hour)) {
		t.Fatal("expected cached active flag to be ignored after the interval")
	}
	window.CachedActive = false
	if !window.IsOpen(start.Add(time.Minute)) {
		t.Fatal("expected cleared cached flag to be ignored inside the interval")
	}
	if (PhaseWindow{CachedActive: true}).IsOpen(start) {
		t.Fatal("expected unconfigured window to be closed")
	}
}
