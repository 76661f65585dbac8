// Package services defines shared utilities consumed by the pipeline stages and
// the external model integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and unit indexes for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into unit-recoverable (transport, malformed response) and fatal
//     (configuration, exhaustion) categories.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
