package stage

import (
	"context"
	"fmt"
	"strings"

	"exampipe/internal/prompt"
	"exampipe/internal/question"
	"exampipe/internal/resources"
	"exampipe/internal/services"
	"exampipe/internal/services/llm"
	"exampipe/internal/stagelog"
	"exampipe/internal/textutil"
)

// reasoningLimit caps the rejection reason carried into logs.
const reasoningLimit = 1000

// validationResponse is the verdict the model must return for each item.
type validationResponse struct {
	WellPosed *bool  `json:"well_posed"`
	Reasoning string `json:"reasoning"`
}

// Validator filters items down to those the model judges well posed.
type Validator struct {
	Common
	PromptPath string
	Log        *stagelog.Log
}

// Run validates items in order. Accepted items are written unchanged.
func (v *Validator) Run(ctx context.Context, items []question.Item, instruction string) (Result, error) {
	template, err := resources.LoadText(v.PromptPath)
	if err != nil {
		return Result{Stage: Validation}, err
	}
	units := make([]unit, 0, len(items))
	for idx, item := range items {
		units = append(units, unit{
			label: fmt.Sprintf("question %d", idx+1),
			build: func() (llm.Request, error) {
				return llm.Request{
					Prompt: prompt.Validation(template, instruction, item),
					Shape:  llm.ShapeJSON,
				}, nil
			},
			decide: func(content string) (verdict, error) {
				return judge(item, content)
			},
		})
	}
	return v.runUnits(ctx, Validation, v.Log, true, units)
}

func judge(item question.Item, content string) (verdict, error) {
	var resp validationResponse
	if err := llm.DecodeLLMJSON(content, &resp); err != nil {
		return verdict{}, services.Wrap(services.ErrMalformedResponse, string(Validation), "decode verdict", "", err)
	}
	if resp.WellPosed == nil {
		return verdict{}, services.Wrap(services.ErrMalformedResponse, string(Validation), "decode verdict", "missing 'well_posed' field", nil)
	}
	if !*resp.WellPosed {
		reason := strings.TrimSpace(resp.Reasoning)
		if reason == "" {
			reason = "no reasoning given"
		}
		return verdict{item: item, note: textutil.Snippet(reason, reasoningLimit)}, nil
	}
	return verdict{item: item, keep: true}, nil
}

// HealthCheck reports whether the prompt template is present.
func (v *Validator) HealthCheck() Health {
	return checkFiles(string(Validation), v.PromptPath)
}
