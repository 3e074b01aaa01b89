// Package logging assembles structured slog loggers and formatting helpers used
// across microstatus components.
//
// It owns the configurable console/JSON handlers, fans records out to stdout
// and the daemon log file, and exposes context-aware helpers so pipeline code
// can tag log lines with dataset IDs, stages, and tick correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
