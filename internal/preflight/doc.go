// Package preflight provides readiness checks for the filesystem roots,
// ticket queues and scheduler dashboard that microstatus depends on.
//
// The CLI "config validate" command runs RunAll and prints each result.
// Optional collaborators (archive tier, analysis hand-off, dashboard) are
// skipped when they are not configured.
package preflight
