package progress

import (
	"maps"
	"time"
)

// Kind identifies what a fingerprint measures.
type Kind string

const (
	KindCount  Kind = "count"
	KindSize   Kind = "size"
	KindRoster Kind = "roster"
)

// Rule selects how two scalar fingerprints are compared.
type Rule int

const (
	// Increase counts only a strictly larger value as progress.
	Increase Rule = iota
	// Change counts any difference as progress, for writers that may restart
	// from zero.
	Change
)

// Fingerprint is a persisted snapshot of a stage's output.
type Fingerprint struct {
	Kind     Kind           `json:"kind"`
	Value    int64          `json:"value,omitempty"`
	Roster   map[string]int `json:"roster,omitempty"`
	Observed time.Time      `json:"observed"`
}

// Count builds a file-count fingerprint.
func Count(n int64, at time.Time) Fingerprint {
	return Fingerprint{Kind: KindCount, Value: n, Observed: at}
}

// Size builds a byte-size fingerprint.
func Size(n int64, at time.Time) Fingerprint {
	return Fingerprint{Kind: KindSize, Value: n, Observed: at}
}

// Roster builds a worker roster fingerprint. The map is copied.
func Roster(tasks map[string]int, at time.Time) Fingerprint {
	return Fingerprint{Kind: KindRoster, Roster: maps.Clone(tasks), Observed: at}
}

// IsZero reports whether the fingerprint was never recorded.
func (f Fingerprint) IsZero() bool {
	return f.Kind == "" && f.Value == 0 && len(f.Roster) == 0 && f.Observed.IsZero()
}

// HasAdvanced compares the current snapshot with the previous one. A
// previous snapshot that was never recorded reads as zero output. Rosters
// advance on any difference since completed tasks shrink them.
func HasAdvanced(prev, cur Fingerprint, rule Rule) bool {
	if cur.Kind == KindRoster || prev.Kind == KindRoster {
		return !rostersEqual(prev.Roster, cur.Roster)
	}
	if rule == Change {
		return cur.Value != prev.Value
	}
	return cur.Value > prev.Value
}

func rostersEqual(a, b map[string]int) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return maps.Equal(a, b)
}
