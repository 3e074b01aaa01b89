package progress

import "time"

// Verdict is the outcome of one stall evaluation.
type Verdict int

const (
	Advancing Verdict = iota
	Waiting
	Stalled
)

func (v Verdict) String() string {
	switch v {
	case Advancing:
		return "advancing"
	case Waiting:
		return "waiting"
	case Stalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Tracker evaluates stall timers against a timeout.
type Tracker struct {
	Timeout time.Duration
	Now     func() time.Time
}

// NewTracker builds a Tracker using the wall clock when now is nil.
func NewTracker(timeout time.Duration, now func() time.Time) Tracker {
	if now == nil {
		now = time.Now
	}
	return Tracker{Timeout: timeout, Now: now}
}

// Evaluate updates a stall timer. since is the persisted timer; lastChange is
// the instant the stored fingerprint last advanced and becomes the timer
// start when a stall begins. The returned pointer is the timer to persist.
func (t Tracker) Evaluate(since *time.Time, lastChange time.Time, advanced bool) (*time.Time, Verdict) {
	if advanced {
		return nil, Advancing
	}
	now := t.now()
	if since == nil {
		start := lastChange
		if start.IsZero() || start.After(now) {
			start = now
		}
		since = &start
	}
	if now.Sub(*since) >= t.Timeout {
		return since, Stalled
	}
	return since, Waiting
}

// Restart begins a fresh stall period at the current instant.
func (t Tracker) Restart() *time.Time {
	now := t.now()
	return &now
}

// Elapsed reports how long a timer has been running.
func (t Tracker) Elapsed(since *time.Time) time.Duration {
	if since == nil {
		return 0
	}
	return t.now().Sub(*since)
}

func (t Tracker) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}
