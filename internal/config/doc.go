// Package config loads, normalizes, and validates Tempodel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TEMPODEL_SCHEDULE_FILE. The Config type centralizes every knob the checker
// daemon and CLI need, so both front ends agree on where the schedule lives and
// how long the advisory marker may be polled.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
