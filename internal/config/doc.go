// Package config loads, normalizes, and validates exampipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY. The Config type centralizes every knob the pipeline and CLI
// need: content and output directories, model connection settings, per-stage
// token budgets, and billing rates.
package config
