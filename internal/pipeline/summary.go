package pipeline

import (
	"fmt"
	"strings"

	"exampipe/internal/logging"
	"exampipe/internal/stage"
	"exampipe/internal/stagelog"
	"exampipe/internal/textutil"
	"exampipe/internal/usage"
)

// documentPreviewLimit caps how much of the typeset document the summary shows.
const documentPreviewLimit = 500

func (c *Coordinator) writeFinal(o Outcome) {
	w := c.out
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nPIPELINE %s\n%s\n", rule, strings.ToUpper(string(o.State)), rule)
	if o.State == Aborted && o.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", o.Reason)
	}
	for _, name := range stage.Names {
		r, ok := o.Result(name)
		if !ok {
			continue
		}
		if name == stage.Extraction {
			status := "failed"
			if r.Accepted > 0 {
				status = "written"
			}
			fmt.Fprintf(w, "  %-14s document %s\n", name, status)
			continue
		}
		fmt.Fprintf(w, "  %-14s %d of %d accepted\n", name, r.Accepted, r.Attempted)
	}
	if len(o.Summary.Stages) > 0 {
		fmt.Fprintln(w)
		if err := usage.WriteSummary(w, o.Summary); err != nil {
			c.logger.Warn("failed to write usage summary", logging.Error(err))
		}
	} else {
		fmt.Fprintf(w, "Elapsed: %s\n", usage.FormatElapsed(o.Elapsed))
	}

	if r, ok := o.Result(stage.Extraction); ok && !textutil.Blank(r.Document) {
		fmt.Fprintf(w, "\nDocument preview:\n%s\n%s\n%s\n", strings.Repeat("-", 60), textutil.Head(r.Document, documentPreviewLimit), strings.Repeat("-", 60))
	}

	fmt.Fprintln(w, "\nOutputs:")
	for _, path := range stagelog.Artifacts(c.cfg.Paths.OutputDir) {
		fmt.Fprintf(w, "  %s\n", path)
	}
}
