// Package modality holds the per-instrument knowledge the pipeline needs:
// how to recognise an acquisition directory, how to read its totals, how to
// fingerprint imaging progress and what stitch request to hand off.
//
// Implementations are selected by the dataset's persisted modality tag
// through a Registry.
package modality
