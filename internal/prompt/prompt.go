// Package prompt assembles the text sent to the model for each stage.
//
// Templates may contain a {special_prompt} placeholder that receives the
// operator's per-stage instruction. Templates without the placeholder get the
// instruction appended under a SPECIAL INSTRUCTIONS heading. All functions
// are pure.
package prompt

import (
	"strings"

	"exampipe/internal/question"
	"exampipe/internal/resources"
	"exampipe/internal/textutil"
)

const (
	// Placeholder is substituted with the special instruction.
	Placeholder = "{special_prompt}"
	// NoInstruction replaces the placeholder when the instruction is blank.
	NoInstruction = "None (use default rules)"
)

// Render injects instruction into template.
func Render(template, instruction string) string {
	blank := textutil.Blank(instruction)
	if strings.Contains(template, Placeholder) {
		if blank {
			instruction = NoInstruction
		}
		return strings.ReplaceAll(template, Placeholder, instruction)
	}
	if blank {
		return template
	}
	return template + "\n\n**SPECIAL INSTRUCTIONS:** " + instruction
}

// Transcription builds the image transcription prompt.
func Transcription(template, instruction, schema string) string {
	return Render(template, instruction) + "\n\nTemplate structure:\n" + schema
}

// Perturbation builds the prompt asking for a variant of item.
func Perturbation(template, instruction string, item question.Item) string {
	return Render(template, instruction) + "\n\nOriginal question:\n\n" + item.Indented()
}

// Validation builds the prompt asking whether item is well posed.
func Validation(template, instruction string, item question.Item) string {
	return Render(template, instruction) + "\n\nQuestion to validate:\n\n" + item.Indented()
}

// Extraction builds the prompt converting items into one LaTeX document
// styled after examples.
func Extraction(template, instruction string, examples []resources.Example, items []question.Item) string {
	blocks := make([]string, 0, len(examples))
	for _, ex := range examples {
		blocks = append(blocks, "Example from "+ex.Name+":\n```latex\n"+ex.Content+"\n```")
	}

	var b strings.Builder
	b.WriteString(Render(template, instruction))
	b.WriteString("\n\n**EXAMPLE LaTeX DOCUMENTS (COMPLETE WITH PREAMBLES):**\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\n**QUESTIONS TO CONVERT (JSON format):**\n\n```json\n")
	b.WriteString(question.IndentedList(items))
	b.WriteString("\n```\n\n")
	b.WriteString(extractionInstructions)
	return b.String()
}

const extractionInstructions = `IMPORTANT: Generate a COMPLETE, COMPILABLE LaTeX document (including \documentclass, all \usepackage statements, preamble configurations, \begin{document}, the formatted questions, and \end{document}).

The output must be ready to save as a .tex file and compile immediately without errors.

Copy ALL package imports, custom commands, and configurations from the example documents.
`
