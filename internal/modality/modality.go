package modality

import (
	"fmt"
	"time"

	"microstatus/internal/progress"
	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/ticket"
)

// Signal is one imaging progress measurement and the rule used to compare
// it with its stored predecessor.
type Signal struct {
	Key     string
	Current progress.Fingerprint
	Rule    progress.Rule
}

// Observation is what one imaging scan found on disk.
type Observation struct {
	Units    int64
	Terminal int64
	// Complete is true when the modality's own completeness checks pass in
	// addition to Units == Terminal.
	Complete bool
	// Layer is the layer currently being written, or -1 when the modality
	// has no layers.
	Layer   int
	Signals []Signal
}

// AtTerminal reports whether all expected units are present.
func (o Observation) AtTerminal() bool {
	return o.Terminal > 0 && o.Units == o.Terminal && o.Complete
}

// Modality is the capability set one acquisition instrument provides.
type Modality interface {
	Kind() store.Modality
	// Detect reports whether dir is an acquisition directory of this kind.
	Detect(dir string) bool
	// Setup fills totals and layout fields on a new dataset.
	Setup(ds *store.Dataset, dir string) error
	// Observe fingerprints imaging output.
	Observe(ds *store.Dataset, dir string, now time.Time) (Observation, error)
	// UnitsToValidate lists units that should be integrity checked now and
	// the LayersChecked value to persist once they all pass.
	UnitsToValidate(ds *store.Dataset, dir string, obs Observation, finishing bool) ([]string, int, error)
	// StitchRequest is the ticket body handed to the stitching workers.
	StitchRequest(ds *store.Dataset, dir string) ticket.Content
	// Denoises reports whether stitched composites go through the denoise
	// stage before the volume build.
	Denoises() bool
	// DropChannel deletes one channel's directories from the acquisition,
	// recounts the channels left on disk and returns the removed paths.
	DropChannel(ds *store.Dataset, dir, channel string) ([]string, error)
}

// Registry resolves modalities by tag and by directory contents.
type Registry struct {
	order  []Modality
	byKind map[store.Modality]Modality
}

// NewRegistry builds a registry; detection tries modalities in order.
func NewRegistry(mods ...Modality) *Registry {
	r := &Registry{byKind: make(map[store.Modality]Modality, len(mods))}
	for _, m := range mods {
		r.order = append(r.order, m)
		r.byKind[m.Kind()] = m
	}
	return r
}

// Default returns the registry with every supported instrument.
func Default() *Registry {
	return NewRegistry(RSCM{}, MesoSPIM{})
}

// Lookup returns the implementation for kind.
func (r *Registry) Lookup(kind store.Modality) (Modality, error) {
	m, ok := r.byKind[kind]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "modality", "lookup",
			fmt.Sprintf("unknown modality %q", kind), nil)
	}
	return m, nil
}

// Detect returns the first modality claiming dir.
func (r *Registry) Detect(dir string) (Modality, bool) {
	for _, m := range r.order {
		if m.Detect(dir) {
			return m, true
		}
	}
	return nil, false
}
