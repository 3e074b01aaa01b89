// Command microstatus tracks microscopy datasets from acquisition through the
// stitch, denoise, volume build and archive stages.
//
// "microstatus run" starts the scan loop in the foreground; "tick" performs a
// single scan. The remaining commands read the record store directly and are
// safe to run while a daemon is active.
package main
