// Package pipeline coordinates the four stages of a run.
//
// The Coordinator walks NotStarted → Transcribed → Perturbed → Validated →
// Extracted → Done, advancing only when the stage just completed accepted at
// least one item. An empty stage, a fatal stage error, or cancellation moves
// the run to Aborted and no later stage runs.
//
// Operator input comes from a Prompter chosen by an explicit Mode. Each run
// holds the output directory lock, carries a UUID in its log context, and is
// recorded in the run history when a store is configured.
package pipeline
