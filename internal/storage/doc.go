// Package storage samples filesystem utilization for the configured storage
// resources. Every probe is time-bounded so a hung network mount only costs
// the caller one timeout.
package storage
