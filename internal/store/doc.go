// Package store persists dataset records, their per-stage progress
// fingerprints, and storage warning channels in SQLite.
//
// The store carries no pipeline rules. Every logical update of a dataset is
// one transaction that rewrites the dataset row together with its
// fingerprints, so readers never observe a phase without the snapshot that
// justified it. Busy errors from concurrent readers (the status CLI) are
// retried with a short backoff.
package store
