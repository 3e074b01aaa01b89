// Package ticket implements the directory-based hand-off protocol shared with
// the external stitching, denoising, volume-building and move workers.
//
// Every stage owns four directories: queued, processing, complete and error.
// The daemon only ever writes into queued; workers claim a ticket by moving it
// to processing and report the outcome by moving it to complete or error, so a
// ticket's location is inferred purely from the directory that holds it.
// Ticket file names start with the zero-padded dataset id, which makes
// lexicographic order equal submission order and gives workers a FIFO contract
// without a broker.
package ticket
