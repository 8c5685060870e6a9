// Package config loads, normalizes, and validates Recomo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RECOMO_SFM_API_BASE, PORT and STORAGE_BASE_PATH. The Config type centralizes
// every knob the CLI, the reconstruction viewer and the upload relay need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
