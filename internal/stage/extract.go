package stage

import (
	"context"

	"exampipe/internal/logging"
	"exampipe/internal/prompt"
	"exampipe/internal/question"
	"exampipe/internal/resources"
	"exampipe/internal/services"
	"exampipe/internal/services/llm"
	"exampipe/internal/stagelog"
	"exampipe/internal/textutil"
)

// extractionResponse is the single object the model must return.
type extractionResponse struct {
	LatexDocument *string `json:"latex_document"`
}

// Extractor converts the validated collection into one LaTeX document.
type Extractor struct {
	Common
	PromptPath  string
	ExamplesDir string
	Document    *stagelog.Document
}

// Run makes one model call for all items. Any failure fails the stage and
// leaves the existing document untouched. Tokens from a returned call are
// reported even when its response is rejected.
func (e *Extractor) Run(ctx context.Context, items []question.Item, instruction string) (Result, error) {
	result := Result{Stage: Extraction}
	name := string(Extraction)
	if len(items) == 0 {
		return result, services.Wrap(services.ErrValidation, name, "run", "no validated questions to extract", nil)
	}
	if e.Generator == nil {
		return result, services.Wrap(services.ErrConfiguration, name, "run", "model client unavailable", nil)
	}
	template, err := resources.LoadText(e.PromptPath)
	if err != nil {
		return result, err
	}
	examples, err := resources.LoadExamples(e.ExamplesDir)
	if err != nil {
		return result, err
	}

	ctx = services.WithStage(ctx, name)
	logger := logging.WithContext(ctx, e.logger())
	logger.Info("extraction started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("examples", len(examples)),
		logging.Int("questions", len(items)),
	)

	start := e.now()
	result.Attempted = 1
	resp, err := e.Generator.Generate(ctx, llm.Request{
		Prompt:          prompt.Extraction(template, instruction, examples, items),
		Shape:           llm.ShapeJSON,
		MaxOutputTokens: e.MaxTokens,
	})
	result.Elapsed = e.now().Sub(start)
	result.InputTokens = resp.InputTokens
	result.OutputTokens = resp.OutputTokens
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, services.Wrap(services.ErrTransport, name, "generate", "", err)
	}

	var decoded extractionResponse
	if err := llm.DecodeLLMJSON(resp.Content, &decoded); err != nil {
		return result, services.Wrap(services.ErrMalformedResponse, name, "decode document", "", err)
	}
	if decoded.LatexDocument == nil || textutil.Blank(*decoded.LatexDocument) {
		return result, services.Wrap(services.ErrMalformedResponse, name, "decode document", "missing 'latex_document' field", nil)
	}

	if err := e.Document.Write(*decoded.LatexDocument); err != nil {
		return result, services.Wrap(services.ErrConfiguration, name, "write document", e.Document.Path(), err)
	}
	result.Document = *decoded.LatexDocument
	result.Accepted = 1
	logger.Info("extraction finished",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("artifact", e.Document.Path()),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// HealthCheck reports whether the prompt and at least one example exist.
func (e *Extractor) HealthCheck() Health {
	if h := checkFiles(string(Extraction), e.PromptPath); !h.Ready {
		return h
	}
	if _, err := resources.LoadExamples(e.ExamplesDir); err != nil {
		return Unhealthy(string(Extraction), err.Error())
	}
	return Healthy(string(Extraction))
}
