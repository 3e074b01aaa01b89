package ticket

import (
	"fmt"
	"strings"

	"microstatus/internal/store"
)

// Stage names one external worker pipeline.
type Stage string

const (
	StageStitch  Stage = "stitch"
	StageDenoise Stage = "denoise"
	StageBuild   Stage = "build_volume"
	StageMove    Stage = "move"
)

// Location is the directory that currently holds a ticket.
type Location string

const (
	LocationNone       Location = ""
	LocationQueued     Location = "queued"
	LocationProcessing Location = "processing"
	LocationComplete   Location = "complete"
	LocationError      Location = "error"
)

// Locations lists every directory in the order the gateway searches them.
var Locations = []Location{LocationQueued, LocationProcessing, LocationComplete, LocationError}

// Outstanding reports whether a worker has yet to finish with the ticket.
func (l Location) Outstanding() bool {
	return l == LocationQueued || l == LocationProcessing
}

// Base is the dataset portion of every ticket name:
// {zero-padded id}_{owner}_{project}_{name}.
func Base(d *store.Dataset) string {
	return fmt.Sprintf("%05d_%s_%s_%s", d.ID, sanitize(d.Owner), sanitize(d.Project), sanitize(d.Name))
}

// Name returns the ticket file name the daemon writes for stage. Move
// tickets carry a _move suffix so they can share the stitch directories.
func Name(d *store.Dataset, stage Stage) string {
	if stage == StageMove {
		return Base(d) + "_move.txt"
	}
	return Base(d) + ".txt"
}

// Pattern returns the glob that identifies the dataset's ticket for stage.
// Tickets written by the daemon are matched exactly; downstream tickets are
// created by workers and only share the dataset prefix.
func Pattern(d *store.Dataset, stage Stage) string {
	switch stage {
	case StageStitch, StageMove:
		return escapeGlob(Name(d, stage))
	default:
		return escapeGlob(Base(d)) + "*"
	}
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '\t', '\n':
			return '-'
		}
		return r
	}, value)
}

func escapeGlob(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
