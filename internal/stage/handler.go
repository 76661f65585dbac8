package stage

import (
	"context"
	"log/slog"
	"time"

	"exampipe/internal/question"
	"exampipe/internal/services/llm"
	"exampipe/internal/usage"
)

// Name identifies a pipeline stage in logs, reports, and run history.
type Name string

const (
	Transcription Name = "Transcription"
	Perturbation  Name = "Perturbation"
	Validation    Name = "Validation"
	Extraction    Name = "Extraction"
)

// Names lists the stages in execution order.
var Names = []Name{Transcription, Perturbation, Validation, Extraction}

// ParseName resolves a case-insensitive stage name or its common short form.
func ParseName(value string) (Name, bool) {
	switch normalizeName(value) {
	case "transcription", "transcribe", "1":
		return Transcription, true
	case "perturbation", "perturb", "2":
		return Perturbation, true
	case "validation", "validate", "3":
		return Validation, true
	case "extraction", "extract", "latex", "4":
		return Extraction, true
	default:
		return "", false
	}
}

// Generator is the model call each stage depends on. *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Common carries the dependencies every stage runner shares.
type Common struct {
	Generator Generator
	Logger    *slog.Logger
	// MaxTokens is the output budget for each model call.
	MaxTokens int
	// Delay is the pause between successive units. Only stages that iterate
	// over items apply it, and never before the first unit.
	Delay time.Duration
	// Sleep overrides the context-aware pause (tests).
	Sleep func(context.Context, time.Duration) error
	// Now overrides the clock used for elapsed time (tests).
	Now func() time.Time
}

// Result is the outcome of one stage run.
type Result struct {
	Stage        Name
	Items        []question.Item
	Document     string
	Attempted    int
	Accepted     int
	InputTokens  int
	OutputTokens int
	Elapsed      time.Duration
}

// Usage converts the result into a usage record.
func (r Result) Usage() usage.Record {
	return usage.Record{
		Stage:        string(r.Stage),
		Attempted:    r.Attempted,
		Accepted:     r.Accepted,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Elapsed:      r.Elapsed,
	}
}
