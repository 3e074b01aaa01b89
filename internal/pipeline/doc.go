// Package pipeline is the dataset state machine.
//
// Each scan tick a Scan evaluates one dataset at a time: it fingerprints the
// output of the stage the dataset is in, decides whether that stage has
// advanced, completed, errored or stalled, and applies the resulting phase
// change. Side effects are applied in a fixed order: tickets are enqueued
// first, the record is persisted second and notifications go out last, so a
// restart between any two steps repeats at most an idempotent enqueue.
//
// Every decision is derived from what is on disk plus the persisted
// fingerprints. Nothing is carried in memory from one tick to the next
// except the per-scan quarantine set.
package pipeline
