// Package config loads, normalizes, and validates microstatus configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SLACK_TOKEN or NTFY_TOPIC, optionally sourced from a .env file. The Config
// value is built once at start-up and handed to every component constructor;
// nothing in the daemon reads settings from package-level state.
package config
