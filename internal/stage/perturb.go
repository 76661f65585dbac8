package stage

import (
	"context"
	"fmt"

	"exampipe/internal/prompt"
	"exampipe/internal/question"
	"exampipe/internal/resources"
	"exampipe/internal/services/llm"
	"exampipe/internal/stagelog"
)

// Perturber asks the model for a variant of each item.
type Perturber struct {
	Common
	PromptPath string
	Log        *stagelog.Log
}

// Run perturbs items in order, writing each new item to the log.
func (p *Perturber) Run(ctx context.Context, items []question.Item, instruction string) (Result, error) {
	template, err := resources.LoadText(p.PromptPath)
	if err != nil {
		return Result{Stage: Perturbation}, err
	}
	units := make([]unit, 0, len(items))
	for idx, item := range items {
		units = append(units, unit{
			label: fmt.Sprintf("question %d", idx+1),
			build: func() (llm.Request, error) {
				return llm.Request{
					Prompt: prompt.Perturbation(template, instruction, item),
					Shape:  llm.ShapeJSON,
				}, nil
			},
			decide: func(content string) (verdict, error) {
				perturbed, err := decodeItem(Perturbation, content)
				if err != nil {
					return verdict{}, err
				}
				return verdict{item: perturbed, keep: true}, nil
			},
		})
	}
	return p.runUnits(ctx, Perturbation, p.Log, true, units)
}

// HealthCheck reports whether the prompt template is present.
func (p *Perturber) HealthCheck() Health {
	return checkFiles(string(Perturbation), p.PromptPath)
}
