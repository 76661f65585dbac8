// Package main hosts the exampipe CLI entrypoint and command graph.
//
// The Cobra command tree runs the four-stage question pipeline, clears stage
// outputs and source images, lists past runs from the history store, checks
// stage resources and model connectivity, and scaffolds configuration. Config
// resolution and logger setup live here so the internal packages stay free of
// terminal concerns.
package main
