package config

const (
	defaultStateDir              = "~/.local/share/microstatus"
	defaultLogDir                = "~/.local/share/microstatus/logs"
	defaultFastRoot              = "/data/faststore/acquire"
	defaultArchiveRoot           = "/data/hive/acquire"
	defaultFastTrash             = "/data/faststore/trash"
	defaultArchiveTrash          = "/data/hive/trash"
	defaultStitchQueueRoot       = "/data/faststore/queues/stitch"
	defaultDenoiseQueueRoot      = "/data/faststore/queues/denoise"
	defaultBuildQueueRoot        = "/data/faststore/queues/build"
	defaultQueuedDir             = "queued"
	defaultProcessingDir         = "processing"
	defaultCompleteDir           = "complete"
	defaultErrorDir              = "error"
	defaultScanInterval          = 30
	defaultStallTimeout          = 600
	defaultCallTimeout           = 20
	defaultCompositesDir         = "composites"
	defaultVolumeExtension       = ".ims"
	defaultProject               = "unassigned"
	defaultIgnoreMarker          = "demo"
	defaultSkipProcessingMarker  = "_cont_"
	defaultMoveStartHour         = 20
	defaultMoveStopHour          = 6
	defaultThreshold0            = 85
	defaultThreshold1            = 90
	defaultCritical              = 94
	defaultProbeTimeout          = 10
	defaultDashboardTimeout      = 5
	defaultNotifyRequestTimeout  = 10
	defaultSlackURL              = "https://slack.com/api/chat.postMessage"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultAnalysisActionExtract = "extract_tiff_series"
	defaultAnalysisActionDetect  = "detect_cells"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
			FastRoot:     defaultFastRoot,
			ArchiveRoot:  defaultArchiveRoot,
			FastTrash:    defaultFastTrash,
			ArchiveTrash: defaultArchiveTrash,
		},
		Queues: Queues{
			Stitch:  defaultQueue(defaultStitchQueueRoot),
			Denoise: defaultQueue(defaultDenoiseQueueRoot),
			Build:   defaultQueue(defaultBuildQueueRoot),
			Move:    defaultQueue(""),
		},
		Pipeline: Pipeline{
			ScanInterval:          defaultScanInterval,
			StallTimeout:          defaultStallTimeout,
			CallTimeout:           defaultCallTimeout,
			CompositesDir:         defaultCompositesDir,
			VolumeExtension:       defaultVolumeExtension,
			CheckUnits:            true,
			DefaultProject:        defaultProject,
			IgnoreMarkers:         []string{defaultIgnoreMarker},
			SkipProcessingMarkers: []string{defaultSkipProcessingMarker},
		},
		MoveWindow: MoveWindow{
			Restrict:      false,
			StartHour:     defaultMoveStartHour,
			StopHour:      defaultMoveStopHour,
			AllowWeekends: true,
		},
		Storage: Storage{
			Threshold0:   defaultThreshold0,
			Threshold1:   defaultThreshold1,
			Critical:     defaultCritical,
			ProbeTimeout: defaultProbeTimeout,
		},
		Dashboard: Dashboard{
			RequestTimeout: defaultDashboardTimeout,
		},
		Notifications: Notifications{
			SlackURL:       defaultSlackURL,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Analysis: Analysis{
			Actions: []string{defaultAnalysisActionExtract, defaultAnalysisActionDetect},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultQueue(root string) Queue {
	return Queue{
		Root:       root,
		Queued:     defaultQueuedDir,
		Processing: defaultProcessingDir,
		Complete:   defaultCompleteDir,
		Error:      defaultErrorDir,
	}
}
