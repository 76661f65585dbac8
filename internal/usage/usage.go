// Package usage accumulates per-stage token usage and converts it to cost.
package usage

import (
	"fmt"
	"strings"
	"time"
)

const tokensPerMillion = 1_000_000

// Record is the usage of one completed stage.
type Record struct {
	Stage        string
	Attempted    int
	Accepted     int
	InputTokens  int
	OutputTokens int
	Elapsed      time.Duration
}

// TotalTokens returns input plus output tokens.
func (r Record) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Rates are dollar prices per million tokens.
type Rates struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// InputCost prices input tokens.
func (r Rates) InputCost(tokens int) float64 {
	return float64(tokens) * r.InputPerMillion / tokensPerMillion
}

// OutputCost prices output tokens.
func (r Rates) OutputCost(tokens int) float64 {
	return float64(tokens) * r.OutputPerMillion / tokensPerMillion
}

// Cost prices a pair of token counts.
func (r Rates) Cost(inputTokens, outputTokens int) float64 {
	return r.InputCost(inputTokens) + r.OutputCost(outputTokens)
}

// Ledger is the ordered list of stage records for one run.
type Ledger struct {
	records []Record
}

// Add appends a stage record. Stage names must be unique and counts
// non-negative.
func (l *Ledger) Add(rec Record) error {
	name := strings.TrimSpace(rec.Stage)
	if name == "" {
		return fmt.Errorf("usage: stage name required")
	}
	if rec.InputTokens < 0 || rec.OutputTokens < 0 {
		return fmt.Errorf("usage: %s: negative token count", name)
	}
	for _, existing := range l.records {
		if existing.Stage == name {
			return fmt.Errorf("usage: stage %q already recorded", name)
		}
	}
	rec.Stage = name
	l.records = append(l.records, rec)
	return nil
}

// Records returns a copy of the recorded stages in insertion order.
func (l *Ledger) Records() []Record {
	return append([]Record(nil), l.records...)
}

// StageCost is one priced stage row.
type StageCost struct {
	Record
	InputCost  float64
	OutputCost float64
	Cost       float64
}

// Summary is the priced view of a run.
type Summary struct {
	Stages       []StageCost
	InputTokens  int
	OutputTokens int
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
	Elapsed      time.Duration
}

// TotalTokens returns input plus output tokens across all stages.
func (s Summary) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}

// Summarize prices every record and totals them. Elapsed is the sum of stage
// durations; callers that measure wall-clock run time may overwrite it.
func Summarize(records []Record, rates Rates) Summary {
	var s Summary
	for _, rec := range records {
		row := StageCost{
			Record:     rec,
			InputCost:  rates.InputCost(rec.InputTokens),
			OutputCost: rates.OutputCost(rec.OutputTokens),
		}
		row.Cost = row.InputCost + row.OutputCost
		s.Stages = append(s.Stages, row)
		s.InputTokens += rec.InputTokens
		s.OutputTokens += rec.OutputTokens
		s.Elapsed += rec.Elapsed
	}
	s.InputCost = rates.InputCost(s.InputTokens)
	s.OutputCost = rates.OutputCost(s.OutputTokens)
	s.TotalCost = s.InputCost + s.OutputCost
	return s
}
