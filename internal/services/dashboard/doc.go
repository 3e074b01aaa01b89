// Package dashboard reads the stitching scheduler's status pages and turns
// them into a worker roster (worker address to in-flight task count).
//
// The roster is an advisory progress signal. Callers compare successive
// rosters to decide whether stitching is moving; nothing in the pipeline
// treats the dashboard as the source of truth for a phase transition.
package dashboard
