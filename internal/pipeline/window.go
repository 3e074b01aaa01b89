package pipeline

import (
	"time"

	"microstatus/internal/config"
)

// moveAllowed reports whether archival moves may be queued at t. Start hour
// is inclusive and stop hour exclusive; a window whose start is after its
// stop wraps past midnight.
func moveAllowed(w config.MoveWindow, t time.Time) bool {
	if !w.Restrict {
		return true
	}
	if w.AllowWeekends {
		if day := t.Weekday(); day == time.Saturday || day == time.Sunday {
			return true
		}
	}
	h := t.Hour()
	if w.StartHour == w.StopHour {
		return true
	}
	if w.StartHour < w.StopHour {
		return h >= w.StartHour && h < w.StopHour
	}
	return h >= w.StartHour || h < w.StopHour
}
