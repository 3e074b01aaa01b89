// Package progress decides whether a pipeline stage is still moving.
//
// A Fingerprint is a comparable snapshot of a stage's observable output: a
// file count, the byte size of a partially written artifact, or a roster of
// in-flight tasks per external worker. HasAdvanced compares two snapshots
// under a stage-specific rule, and Tracker turns a run of non-advancing
// snapshots into a stall verdict once the configured timeout is reached.
//
// The filesystem probes in this package treat a missing directory as an empty
// one so a stage that has not produced anything yet reads as "no advance"
// rather than as an error.
package progress
