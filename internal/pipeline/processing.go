package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"microstatus/internal/logging"
	"microstatus/internal/modality"
	"microstatus/internal/notifications"
	"microstatus/internal/progress"
	"microstatus/internal/services"
	"microstatus/internal/store"
	"microstatus/internal/ticket"
)

// incident is a condition that pauses processing until someone looks at it.
type incident struct {
	event     notifications.Event
	reason    string
	path      string
	violation bool
}

// observation is what one look at a processing stage found.
type observation struct {
	signals []modality.Signal
	pool    []modality.Signal
	done    bool
	// waiting restarts the stall timer while the stage has not been handed
	// to its worker yet, such as during a closed move window.
	waiting  bool
	failure  *incident
	corrupt  string
	artifact string
	tier     store.Tier
	job      Job
}

type stage struct {
	name    string
	keys    []string
	observe func(*evaluation, context.Context) (observation, error)
}

// rosterKey fingerprints the stitching dashboard roster. It feeds the stall
// timer of the stitch stage but never resumes a paused dataset on its own.
const rosterKey = "stitch.roster"

var stages = map[store.ProcessingPhase]stage{
	store.ProcessingStarted:     {name: "stitch", keys: []string{"stitch", rosterKey}, observe: (*evaluation).observeStitch},
	store.ProcessingStitched:    {name: "denoise", keys: []string{"denoise"}, observe: (*evaluation).observeDenoise},
	store.ProcessingDenoised:    {name: "build_volume", keys: []string{"build_volume"}, observe: (*evaluation).observeBuild},
	store.ProcessingBuiltVolume: {name: "move", keys: []string{"move"}, observe: (*evaluation).observeFinalize},
}

func (ev *evaluation) processing(ctx context.Context) error {
	ds := ev.ds
	switch ds.ProcessingPhase {
	case store.ProcessingNotStarted:
		return ev.startProcessing(services.WithStage(ctx, "stitch"))
	case store.ProcessingFinished:
		return ev.analysis()
	case store.ProcessingPaused:
		return ev.pausedProcessing(ctx)
	case store.ProcessingStitched:
		if !ev.mod.Denoises() {
			ev.logger.Info("denoise skipped", logging.String(logging.FieldStage, "denoise"))
			return ev.enter(ctx, store.ProcessingStitched, observation{})
		}
	}
	st, ok := stages[ds.ProcessingPhase]
	if !ok {
		return services.Wrap(services.ErrValidation, "", "evaluate",
			fmt.Sprintf("unknown processing phase %q", ds.ProcessingPhase), nil)
	}
	return ev.advance(services.WithStage(ctx, st.name), ds.ProcessingPhase, st)
}

// startProcessing writes the stitch ticket and waits for a worker to claim it.
func (ev *evaluation) startProcessing(ctx context.Context) error {
	ds := ev.ds
	gw := ev.m.gateway
	request := ev.mod.StitchRequest(ds, ev.m.layout.Acquisition(ds))
	written, err := gw.Enqueue(ticket.StageStitch, ticket.Name(ds, ticket.StageStitch), request)
	if err != nil {
		if errors.Is(err, services.ErrProtocolViolation) {
			ev.pause(store.ProcessingNotStarted, "stitch", incident{
				event:     notifications.EventProtocolViolation,
				reason:    err.Error(),
				violation: true,
			})
			return nil
		}
		return err
	}
	if written {
		ev.logger.Info("stitch ticket queued",
			logging.String(logging.FieldStage, "stitch"),
			logging.String(logging.FieldEventType, "processing_started"),
		)
		ev.emit(notifications.EventProcessingStarted, notifications.Payload{notifications.KeyStage: "stitch"})
	}

	found, inc, err := ev.locate(ticket.StageStitch)
	if err != nil {
		return err
	}
	if inc != nil {
		ev.pause(store.ProcessingNotStarted, "stitch", *inc)
		return nil
	}
	switch found.Location {
	case ticket.LocationProcessing, ticket.LocationComplete, ticket.LocationError:
		ds.ProcessingPhase = store.ProcessingStarted
		ds.ProcessingStallSince = nil
		ev.logger.Info("stitching picked up", logging.String("location", string(found.Location)))
	}
	return nil
}

func (ev *evaluation) advance(ctx context.Context, phase store.ProcessingPhase, st stage) error {
	ds := ev.ds
	obs, err := st.observe(ev, ctx)
	if err != nil {
		return err
	}
	advanced := ev.record(obs.signals)
	ev.record(obs.pool)

	switch {
	case obs.corrupt != "":
		return ev.brokenVolume(obs.corrupt)
	case obs.failure != nil:
		ev.pause(phase, st.name, *obs.failure)
		return nil
	case obs.done:
		return ev.enter(ctx, phase, obs)
	}

	since, verdict := ev.scan.tracker.Evaluate(ds.ProcessingStallSince, ev.lastChange(st.keys), advanced)
	if verdict == progress.Stalled && (obs.waiting || ev.poolBusy(obs.pool)) {
		ev.logger.Debug("stall timer restarted",
			logging.String(logging.FieldStage, st.name),
			logging.Bool("waiting", obs.waiting),
		)
		since, verdict = ev.scan.tracker.Restart(), progress.Waiting
	}
	ds.ProcessingStallSince = since
	if verdict != progress.Stalled {
		return nil
	}
	ev.pause(phase, st.name, incident{
		event:  notifications.EventStageStalled,
		reason: fmt.Sprintf("no %s progress for %s", st.name, ev.scan.tracker.Elapsed(since).Round(time.Second)),
	})
	return nil
}

func (ev *evaluation) pausedProcessing(ctx context.Context) error {
	from := ev.ds.PausedFrom
	switch {
	case from == store.ProcessingNotStarted:
		// Paused before any worker claimed the ticket; only a clean queue
		// lets the stitch ticket be handed out again.
		_, inc, err := ev.locate(ticket.StageStitch)
		if err != nil || inc != nil {
			return err
		}
		ev.resume(from, "stitch")
		return nil
	case from == store.ProcessingStitched && !ev.mod.Denoises():
		ev.resume(from, "denoise")
		return nil
	}

	st, ok := stages[from]
	if !ok {
		ev.logger.Warn("paused dataset has no resumable phase", logging.String("paused_from", string(from)))
		return nil
	}
	obs, err := st.observe(ev, services.WithStage(ctx, st.name))
	if err != nil {
		return err
	}
	advanced := false
	for _, sig := range obs.signals {
		if ev.record([]modality.Signal{sig}) && sig.Key != rosterKey {
			advanced = true
		}
	}
	ev.record(obs.pool)

	if obs.corrupt != "" {
		return ev.brokenVolume(obs.corrupt)
	}
	if obs.failure != nil || (!advanced && !obs.done) {
		return nil
	}
	ev.resume(from, st.name)
	return nil
}

func (ev *evaluation) resume(from store.ProcessingPhase, stageName string) {
	ds := ev.ds
	ds.ProcessingPhase = from
	ds.PausedFrom = ""
	ds.PauseReason = ""
	ds.ProcessingStallSince = nil
	ev.logger.Info("processing resumed",
		logging.String(logging.FieldStage, stageName),
		logging.String(logging.FieldPhase, string(from)),
	)
	ev.emit(notifications.EventStageResumed, notifications.Payload{notifications.KeyStage: stageName})
}

func (ev *evaluation) pause(from store.ProcessingPhase, stageName string, inc incident) {
	ds := ev.ds
	ds.ProcessingPhase = store.ProcessingPaused
	ds.PausedFrom = from
	ds.PauseReason = inc.reason

	attrs := []logging.Attr{
		logging.String(logging.FieldStage, stageName),
		logging.String(logging.FieldPhase, string(from)),
		logging.String("reason", inc.reason),
	}
	if inc.path != "" {
		attrs = append(attrs, logging.String("path", inc.path))
	}
	if inc.violation {
		attrs = append(attrs,
			logging.Alert(string(inc.event)),
			logging.String(logging.FieldErrorHint, "inspect the queue directories by hand"),
		)
		logging.ErrorWithContext(ev.logger, "processing protocol violation", string(inc.event), attrs...)
	} else {
		attrs = append(attrs, logging.String(logging.FieldImpact, "dataset paused until the stage makes progress"))
		logging.WarnWithContext(ev.logger, "processing paused", string(inc.event), attrs...)
	}

	extra := notifications.Payload{
		notifications.KeyStage:  stageName,
		notifications.KeyReason: inc.reason,
	}
	if inc.path != "" {
		extra[notifications.KeyPath] = inc.path
	}
	ev.emit(inc.event, extra)
}

// enter moves the dataset from phase to its successor and performs the
// one-time work that belongs to the new phase.
func (ev *evaluation) enter(ctx context.Context, phase store.ProcessingPhase, obs observation) error {
	ds := ev.ds
	next, ok := phase.Next()
	if !ok {
		return nil
	}
	ds.ProcessingPhase = next
	ds.ProcessingStallSince = nil
	ds.PauseReason = ""
	ev.logger.Info("processing advanced",
		logging.String(logging.FieldPhase, string(next)),
		logging.String(logging.FieldEventType, "phase_advanced"),
	)

	switch next {
	case store.ProcessingDenoised:
		if _, _, err := ev.ensureMove(); err != nil {
			ev.logger.Warn("move ticket not written", logging.Error(err))
		}
	case store.ProcessingBuiltVolume:
		ds.ArtifactPath = obs.artifact
		ev.cleanup(obs.job)
		ev.emit(notifications.EventVolumeBuilt, notifications.Payload{
			notifications.KeyStage: "build_volume",
			notifications.KeyPath:  obs.artifact,
		})
	case store.ProcessingFinished:
		ds.ArtifactPath = obs.artifact
		ds.Tier = obs.tier
		ev.emit(notifications.EventProcessingFinished, notifications.Payload{notifications.KeyPath: obs.artifact})
		return ev.analysis()
	}
	return nil
}

// locate finds the dataset's ticket for stage. Duplicates become a
// protocol-violation incident rather than an error.
func (ev *evaluation) locate(stage ticket.Stage) (ticket.Found, *incident, error) {
	found, err := ev.m.gateway.Locate(stage, ticket.Pattern(ev.ds, stage))
	if err != nil {
		if errors.Is(err, services.ErrProtocolViolation) {
			return found, &incident{event: notifications.EventProtocolViolation, reason: err.Error(), violation: true}, nil
		}
		return found, nil, err
	}
	return found, nil, nil
}

func (ev *evaluation) observeStitch(ctx context.Context) (observation, error) {
	var obs observation
	ds := ev.ds
	found, inc, err := ev.locate(ticket.StageStitch)
	if err != nil || inc != nil {
		obs.failure = inc
		return obs, err
	}

	dir, _, _ := ev.m.layout.FindComposites(ds)
	u, err := progress.CheckUniform(dir, compositeGlob)
	if err != nil {
		return obs, services.Wrap(services.ErrTransient, "stitch", "count composites", dir, err)
	}
	obs.signals = append(obs.signals, modality.Signal{Key: "stitch", Current: progress.Count(u.Count, ev.scan.now), Rule: progress.Increase})
	if roster, ok := ev.scan.rosterSignal(ctx); ok {
		obs.signals = append(obs.signals, modality.Signal{Key: rosterKey, Current: progress.Roster(roster, ev.scan.now), Rule: progress.Change})
	}

	switch found.Location {
	case ticket.LocationNone:
		obs.failure = &incident{
			event:     notifications.EventProtocolViolation,
			reason:    "stitch ticket is missing from every queue directory",
			violation: true,
		}
	case ticket.LocationError:
		obs.failure = &incident{
			event:  notifications.EventStitchingError,
			reason: "stitch ticket moved to the error directory",
			path:   found.Path,
		}
	case ticket.LocationComplete:
		obs.done = u.Count == int64(ds.CompositesExpected) && u.Uniform
		if !obs.done {
			ev.logger.Debug("stitch ticket complete but composites unfinished",
				logging.Int64("composites", u.Count),
				logging.Int("expected", ds.CompositesExpected),
				logging.Bool("uniform", u.Uniform),
			)
		}
	}
	return obs, nil
}

func (ev *evaluation) observeDenoise(context.Context) (observation, error) {
	var obs observation
	ds := ev.ds
	found, inc, err := ev.locate(ticket.StageDenoise)
	if err != nil || inc != nil {
		obs.failure = inc
		return obs, err
	}
	if found.Location == ticket.LocationError {
		obs.failure = &incident{
			event:  notifications.EventStageStalled,
			reason: "denoise ticket moved to the error directory",
			path:   found.Path,
		}
		return obs, nil
	}

	obs.pool = []modality.Signal{ev.poolSignal(ticket.StageDenoise, compositeCount)}
	job, ok, err := ev.m.layout.LatestJob(ds)
	if err != nil {
		return obs, err
	}
	if !ok {
		obs.signals = []modality.Signal{{Key: "denoise", Current: progress.Count(0, ev.scan.now), Rule: progress.Increase}}
		return obs, nil
	}
	ds.JobRef = job.Ref
	obs.job = job

	u, err := progress.CheckUniform(job.Dir, compositeGlob)
	if err != nil {
		return obs, services.Wrap(services.ErrTransient, "denoise", "count composites", job.Dir, err)
	}
	obs.signals = []modality.Signal{{Key: "denoise", Current: progress.Count(u.Count, ev.scan.now), Rule: progress.Increase}}
	obs.done = u.Count == int64(ds.CompositesExpected) && u.Uniform
	return obs, nil
}

func (ev *evaluation) observeBuild(ctx context.Context) (observation, error) {
	var obs observation
	ds := ev.ds
	if _, _, err := ev.ensureMove(); err != nil {
		ev.logger.Debug("move ticket not written", logging.Error(err))
	}
	found, inc, err := ev.locate(ticket.StageBuild)
	if err != nil || inc != nil {
		obs.failure = inc
		return obs, err
	}
	if found.Location == ticket.LocationError {
		obs.failure = &incident{
			event:  notifications.EventStageStalled,
			reason: "volume build ticket moved to the error directory",
			path:   found.Path,
		}
		return obs, nil
	}

	obs.pool = []modality.Signal{ev.poolSignal(ticket.StageBuild, partialBytes)}
	job, ok, err := ev.m.layout.LatestJob(ds)
	if err != nil {
		return obs, err
	}
	if !ok {
		obs.signals = []modality.Signal{{Key: "build_volume", Current: progress.Size(0, ev.scan.now), Rule: progress.Change}}
		return obs, nil
	}
	ds.JobRef = job.Ref
	obs.job = job

	volume := ev.m.layout.Volume(job)
	valid, err := ev.m.validator.Valid(ctx, volume)
	switch {
	case err == nil && valid:
		obs.done = true
		obs.artifact = volume
		obs.tier = job.Tier
	case errors.Is(err, services.ErrNotFound):
		size, serr := progress.FileSize(ev.m.layout.Partial(job))
		if serr != nil && !errors.Is(serr, progress.ErrMissing) {
			return obs, services.Wrap(services.ErrTransient, "build_volume", "stat partial volume", job.Dir, serr)
		}
		obs.signals = []modality.Signal{{Key: "build_volume", Current: progress.Size(size, ev.scan.now), Rule: progress.Change}}
	case err == nil, errors.Is(err, services.ErrUnreadable):
		obs.corrupt = volume
	default:
		return obs, err
	}
	return obs, nil
}

// observeFinalize waits for the volume to reach its final tier. Without an
// archive tier the fast-tier volume is final.
func (ev *evaluation) observeFinalize(ctx context.Context) (observation, error) {
	var obs observation
	ds := ev.ds
	layout := ev.m.layout

	ref := ds.JobRef
	if ref == "" {
		job, ok, err := layout.LatestJob(ds)
		if err != nil {
			return obs, err
		}
		if ok {
			ref = job.Ref
			ds.JobRef = ref
		}
	}

	tier := store.TierFast
	if ev.m.cfg.HasArchiveTier() {
		tier = store.TierArchive
		// The stall period starts when the move ticket is written.
		exists, written, err := ev.ensureMove()
		if err != nil {
			ev.logger.Debug("move ticket not written", logging.Error(err))
		}
		obs.waiting = !exists || written

		found, inc, err := ev.locate(ticket.StageMove)
		if err != nil || inc != nil {
			obs.failure = inc
			return obs, err
		}
		if found.Location == ticket.LocationError {
			obs.failure = &incident{
				event:  notifications.EventStageStalled,
				reason: "move ticket moved to the error directory",
				path:   found.Path,
			}
			return obs, nil
		}
	}

	job := layout.JobOnTier(tier, ds, ref)
	volume := layout.Volume(job)
	valid, err := ev.m.validator.Valid(ctx, volume)
	switch {
	case err == nil && valid:
		obs.done = true
		obs.artifact = volume
		obs.tier = tier
	case errors.Is(err, services.ErrNotFound):
		if tier == store.TierFast {
			obs.failure = &incident{
				event:     notifications.EventProtocolViolation,
				reason:    "built volume disappeared before it was finalized",
				path:      volume,
				violation: true,
			}
			return obs, nil
		}
		size, serr := progress.DirSize(job.Dir)
		if serr != nil {
			return obs, services.Wrap(services.ErrTransient, "move", "measure archive job", job.Dir, serr)
		}
		obs.signals = []modality.Signal{{Key: "move", Current: progress.Size(size, ev.scan.now), Rule: progress.Increase}}
	case err == nil, errors.Is(err, services.ErrUnreadable):
		obs.failure = &incident{
			event:  notifications.EventBrokenArtifact,
			reason: "volume failed validation at its final location",
			path:   volume,
		}
	default:
		return obs, err
	}
	return obs, nil
}

// ensureMove writes the archival move ticket while the move window is open.
// It reports whether a move ticket now exists and whether this call wrote it.
func (ev *evaluation) ensureMove() (exists, written bool, err error) {
	ds := ev.ds
	if !ev.m.cfg.HasArchiveTier() || ds.Tier == store.TierArchive {
		return true, false, nil
	}
	gw := ev.m.gateway
	if !moveAllowed(ev.m.cfg.MoveWindow, ev.scan.now) {
		found, err := gw.Locate(ticket.StageMove, ticket.Pattern(ds, ticket.StageMove))
		if err != nil {
			return false, false, err
		}
		return found.Location != ticket.LocationNone, false, nil
	}
	written, err = gw.Enqueue(ticket.StageMove, ticket.Name(ds, ticket.StageMove),
		ticket.MoveContent(ev.m.layout.Root(store.TierFast, ds)))
	if err != nil {
		return false, false, err
	}
	if written {
		ev.logger.Info("move ticket queued", logging.String(logging.FieldStage, "move"))
	}
	return true, written, nil
}
