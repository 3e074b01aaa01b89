package pipeline

import (
	"testing"
	"time"

	"microstatus/internal/config"
)

func TestMoveAllowed(t *testing.T) {
	monday := func(hour int) time.Time { return time.Date(2026, 5, 4, hour, 30, 0, 0, time.UTC) }
	saturday := time.Date(2026, 5, 9, 12, 0, 0, 0, time.UTC)

	overnight := config.MoveWindow{Restrict: true, StartHour: 20, StopHour: 6}
	daytime := config.MoveWindow{Restrict: true, StartHour: 9, StopHour: 17}

	tests := []struct {
		name   string
		window config.MoveWindow
		at     time.Time
		want   bool
	}{
		{"unrestricted", config.MoveWindow{}, monday(12), true},
		{"overnight start inclusive", overnight, monday(20), true},
		{"overnight after midnight", overnight, monday(2), true},
		{"overnight stop exclusive", overnight, monday(6), false},
		{"overnight midday", overnight, monday(12), false},
		{"daytime inside", daytime, monday(9), true},
		{"daytime stop exclusive", daytime, monday(17), false},
		{"weekend closed", overnight, saturday, false},
		{"weekend allowed", config.MoveWindow{Restrict: true, StartHour: 20, StopHour: 6, AllowWeekends: true}, saturday, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := moveAllowed(tc.window, tc.at); got != tc.want {
				t.Fatalf("moveAllowed = %v, want %v", got, tc.want)
			}
		})
	}
}
