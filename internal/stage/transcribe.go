package stage

import (
	"context"
	"path/filepath"

	"exampipe/internal/logging"
	"exampipe/internal/prompt"
	"exampipe/internal/resources"
	"exampipe/internal/services/llm"
	"exampipe/internal/stagelog"
)

// Transcriber turns each question image into a JSON item.
type Transcriber struct {
	Common
	PromptPath string
	SchemaPath string
	ImageDir   string
	Log        *stagelog.Log
}

// Run transcribes every image in ImageDir. Prompt and schema errors are fatal;
// an empty image directory yields an empty result.
func (t *Transcriber) Run(ctx context.Context, instruction string) (Result, error) {
	template, err := resources.LoadText(t.PromptPath)
	if err != nil {
		return Result{Stage: Transcription}, err
	}
	schema, err := resources.LoadText(t.SchemaPath)
	if err != nil {
		return Result{Stage: Transcription}, err
	}
	images, err := resources.ListImages(t.ImageDir)
	if err != nil {
		return Result{Stage: Transcription}, err
	}
	if len(images) == 0 {
		logging.WarnWithContext(t.logger(), "no images found", "stage_empty",
			logging.String("image_dir", t.ImageDir),
			logging.String(logging.FieldImpact, "nothing to transcribe"),
		)
	}

	text := prompt.Transcription(template, instruction, schema)
	units := make([]unit, 0, len(images))
	for _, path := range images {
		units = append(units, unit{
			label: filepath.Base(path),
			build: func() (llm.Request, error) {
				img, err := resources.LoadImage(path)
				if err != nil {
					return llm.Request{}, err
				}
				return llm.Request{
					Prompt: text,
					Image:  &llm.Image{Data: img.Data, MIMEType: img.MIMEType},
					Shape:  llm.ShapeJSON,
				}, nil
			},
			decide: func(content string) (verdict, error) {
				item, err := decodeItem(Transcription, content)
				if err != nil {
					return verdict{}, err
				}
				return verdict{item: item, keep: true}, nil
			},
		})
	}
	return t.runUnits(ctx, Transcription, t.Log, false, units)
}

// HealthCheck reports whether the prompt and schema templates are present.
func (t *Transcriber) HealthCheck() Health {
	return checkFiles(string(Transcription), t.PromptPath, t.SchemaPath)
}
