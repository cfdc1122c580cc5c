// Package config loads, normalizes, and validates plantcam configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PLANTCAM_MEDIA_DIR. The Config type centralizes every knob the daemon and
// CLI need, so media/state directories and external binary names are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
