// Package alerts raises storage-pressure warnings. Each resource has three
// escalating tiers; only the highest tier whose threshold is reached is
// active, and a tier alerts once per activation.
package alerts
