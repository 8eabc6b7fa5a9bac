// Package config loads, normalizes, and validates seqwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SEQWATCH_REGISTRY_API_KEY. The Config type centralizes every knob the daemon
// and CLI need: watched roots, registry and event bus endpoints, and the
// dedup and journal settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
