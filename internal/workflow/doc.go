// Package workflow runs the scan loop.
//
// Each tick samples storage utilization, discovers new acquisition
// directories on the fast tier, and hands every open dataset to the
// pipeline state machine. Datasets are evaluated one after another; a
// failure or panic while evaluating one dataset is logged and the tick moves
// on to the next. After a tick the loop sleeps for the configured scan
// interval.
package workflow
