package store

import (
	"fmt"
	"strings"
	"time"

	"microstatus/internal/progress"
)

// ImagingPhase tracks acquisition on the instrument.
type ImagingPhase string

const (
	ImagingInProgress ImagingPhase = "in_progress"
	ImagingPaused     ImagingPhase = "paused"
	ImagingFinished   ImagingPhase = "finished"
)

// ProcessingPhase tracks the delegated processing chain.
type ProcessingPhase string

const (
	ProcessingNotStarted  ProcessingPhase = "not_started"
	ProcessingStarted     ProcessingPhase = "started"
	ProcessingStitched    ProcessingPhase = "stitched"
	ProcessingDenoised    ProcessingPhase = "denoised"
	ProcessingBuiltVolume ProcessingPhase = "built_volume"
	ProcessingFinished    ProcessingPhase = "finished"
	ProcessingPaused      ProcessingPhase = "paused"
)

var processingOrder = []ProcessingPhase{
	ProcessingNotStarted,
	ProcessingStarted,
	ProcessingStitched,
	ProcessingDenoised,
	ProcessingBuiltVolume,
	ProcessingFinished,
}

// Rank returns the position of p in the forward sequence, or -1 for paused
// and unknown values.
func (p ProcessingPhase) Rank() int {
	for i, phase := range processingOrder {
		if phase == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p in the forward sequence.
func (p ProcessingPhase) Next() (ProcessingPhase, bool) {
	rank := p.Rank()
	if rank < 0 || rank+1 >= len(processingOrder) {
		return "", false
	}
	return processingOrder[rank+1], true
}

// Active reports whether p is a phase that waits on an external worker.
func (p ProcessingPhase) Active() bool {
	switch p {
	case ProcessingStarted, ProcessingStitched, ProcessingDenoised, ProcessingBuiltVolume:
		return true
	default:
		return false
	}
}

// ParseProcessingPhase converts user input into a ProcessingPhase.
func ParseProcessingPhase(value string) (ProcessingPhase, bool) {
	p := ProcessingPhase(strings.ToLower(strings.TrimSpace(value)))
	if p == ProcessingPaused || p.Rank() >= 0 {
		return p, true
	}
	return "", false
}

// ParseImagingPhase converts user input into an ImagingPhase.
func ParseImagingPhase(value string) (ImagingPhase, bool) {
	p := ImagingPhase(strings.ToLower(strings.TrimSpace(value)))
	switch p {
	case ImagingInProgress, ImagingPaused, ImagingFinished:
		return p, true
	}
	return "", false
}

// Tier names a storage tier.
type Tier string

const (
	TierFast    Tier = "fast"
	TierArchive Tier = "archive"
)

// Modality selects the instrument-specific capability implementation.
type Modality string

const (
	ModalityRSCM     Modality = "rscm"
	ModalityMesoSPIM Modality = "mesospim"
)

// Dataset is one physical acquisition tracked through the pipeline.
type Dataset struct {
	ID       int64
	Name     string
	Owner    string
	Project  string
	RelPath  string
	Modality Modality

	ImagingPhase    ImagingPhase
	ProcessingPhase ProcessingPhase
	PausedFrom      ProcessingPhase
	PauseReason     string

	ImagingStallSince    *time.Time
	ProcessingStallSince *time.Time
	Fingerprints         map[string]progress.Fingerprint

	JobRef       string
	Tier         Tier
	ArtifactPath string

	Channels           int
	Layers             int
	UnitsPerLayer      int
	UnitsTotal         int64
	CompositesExpected int
	LayersChecked      int

	RetainIntermediates bool
	SkipProcessing      bool
	AnalysisRequested   bool
	AnalysisTriggeredAt *time.Time
	// Delete405 removes the 405 nm channel from the acquisition once
	// imaging finishes.
	Delete405 bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Label renders the dataset for log lines and notifications.
func (d *Dataset) Label() string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", d.Owner, d.Project, d.Name)
}

// Fingerprint returns the stored snapshot for key.
func (d *Dataset) Fingerprint(key string) progress.Fingerprint {
	if d == nil || d.Fingerprints == nil {
		return progress.Fingerprint{}
	}
	return d.Fingerprints[key]
}

// SetFingerprint records a snapshot for key.
func (d *Dataset) SetFingerprint(key string, fp progress.Fingerprint) {
	if d.Fingerprints == nil {
		d.Fingerprints = make(map[string]progress.Fingerprint)
	}
	d.Fingerprints[key] = fp
}

// Clone returns a deep copy suitable for change detection.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	cp := *d
	cp.ImagingStallSince = cloneTime(d.ImagingStallSince)
	cp.ProcessingStallSince = cloneTime(d.ProcessingStallSince)
	cp.AnalysisTriggeredAt = cloneTime(d.AnalysisTriggeredAt)
	if d.Fingerprints != nil {
		cp.Fingerprints = make(map[string]progress.Fingerprint, len(d.Fingerprints))
		for k, v := range d.Fingerprints {
			v.Roster = cloneRoster(v.Roster)
			cp.Fingerprints[k] = v
		}
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneRoster(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Filter narrows List results. Empty slices match everything.
type Filter struct {
	ImagingPhases    []ImagingPhase
	ProcessingPhases []ProcessingPhase
	// Open limits results to datasets whose imaging or processing has not
	// finished, plus finished ones still owed an analysis hand-off.
	Open bool
}

// Warning is one storage-pressure alert channel keyed by resource and tier.
type Warning struct {
	Resource    string
	Tier        string
	Active      bool
	MessageSent bool
	UsedPercent float64
	UpdatedAt   time.Time
}
