// Package services defines shared utilities consumed by the pipeline state
// machine, the scan orchestrator, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp dataset IDs, stage names, and tick
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the taxonomy the scan loop acts on: transient failures skip a check
//     for one tick, corrupt artifacts are quarantined, protocol violations
//     pause the dataset for human review.
//
// Use these helpers when wiring new stage logic so operational behaviour
// stays uniform across the pipeline.
package services
