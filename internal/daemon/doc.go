// Package daemon owns the lifecycle of the long-running microstatus process.
//
// It wires configuration, the record store and the workflow manager into a
// single lifecycle with flock-based locking so only one process ever scans
// the acquisition roots. Single ticks run by the CLI take the same lock.
//
// Keep orchestration here: dataset evaluation lives in the pipeline package
// and the scan loop lives in workflow.
package daemon
