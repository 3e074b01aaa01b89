package notifications

// Event identifies a pipeline notification kind.
type Event string

const (
	EventImagingStarted      Event = "imaging_started"
	EventImagingFinished     Event = "imaging_finished"
	EventImagingPaused       Event = "imaging_paused"
	EventImagingResumed      Event = "imaging_resumed"
	EventProcessingStarted   Event = "processing_started"
	EventStitchingError      Event = "stitching_error"
	EventStageStalled        Event = "stage_stalled"
	EventStageResumed        Event = "stage_resumed"
	EventBrokenArtifact      Event = "broken_artifact"
	EventProtocolViolation   Event = "protocol_violation"
	EventVolumeBuilt         Event = "volume_built"
	EventProcessingFinished  Event = "processing_finished"
	EventAnalysisQueued      Event = "analysis_queued"
	EventStorageWarning      Event = "storage_warning"
	EventIgnoringDemoDataset Event = "ignoring_demo_dataset"
	EventTest                Event = "test"
)

// Payload carries event context. Common keys are listed below; renderers
// ignore keys they do not use.
type Payload map[string]any

const (
	KeyOwner    = "owner"
	KeyProject  = "project"
	KeyDataset  = "dataset"
	KeyStage    = "stage"
	KeyReason   = "reason"
	KeyPath     = "path"
	KeyLayer    = "layer"
	KeyResource = "resource"
	KeyTier     = "tier"
	KeyUsed     = "used"
	KeyLimit    = "limit"
	KeyDetail   = "detail"
)
