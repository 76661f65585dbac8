package usage

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatTokens renders a count with thousands separators.
func FormatTokens(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatCost renders dollars with four decimals.
func FormatCost(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}

// FormatElapsed renders a duration in seconds with two decimals.
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// WriteStageReport prints the usage block shown after each stage.
func WriteStageReport(w io.Writer, rec Record, rates Rates) error {
	in := rates.InputCost(rec.InputTokens)
	out := rates.OutputCost(rec.OutputTokens)
	_, err := fmt.Fprintf(w,
		"\n--- %s complete ---\n"+
			"  Items:         %d/%d accepted\n"+
			"  Input tokens:  %s\n"+
			"  Output tokens: %s\n"+
			"  Total tokens:  %s\n"+
			"  Elapsed time:  %s\n"+
			"  Input cost:    %s\n"+
			"  Output cost:   %s\n"+
			"  Total cost:    %s\n",
		rec.Stage,
		rec.Accepted, rec.Attempted,
		FormatTokens(rec.InputTokens),
		FormatTokens(rec.OutputTokens),
		FormatTokens(rec.TotalTokens()),
		FormatElapsed(rec.Elapsed),
		FormatCost(in),
		FormatCost(out),
		FormatCost(in+out),
	)
	return err
}

// WriteSummary prints the per-stage usage table followed by run totals.
func WriteSummary(w io.Writer, s Summary) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Stage", "Accepted", "Input", "Output", "Cost"})
	for _, row := range s.Stages {
		tw.AppendRow(table.Row{
			row.Stage,
			fmt.Sprintf("%d/%d", row.Accepted, row.Attempted),
			FormatTokens(row.InputTokens),
			FormatTokens(row.OutputTokens),
			FormatCost(row.Cost),
		})
	}
	tw.AppendFooter(table.Row{
		"Total",
		"",
		FormatTokens(s.InputTokens),
		FormatTokens(s.OutputTokens),
		FormatCost(s.TotalCost),
	})
	configs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft}}
	for col := 2; col <= 5; col++ {
		configs = append(configs, table.ColumnConfig{
			Number:      col,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
			AlignFooter: text.AlignRight,
		})
	}
	tw.SetColumnConfigs(configs)

	_, err := fmt.Fprintf(w,
		"Token usage by stage:\n%s\n\n"+
			"  Total input tokens:   %s\n"+
			"  Total output tokens:  %s\n"+
			"  Total tokens:         %s\n"+
			"  Total elapsed time:   %s\n"+
			"  Input cost:           %s\n"+
			"  Output cost:          %s\n"+
			"  TOTAL COST:           %s\n",
		tw.Render(),
		FormatTokens(s.InputTokens),
		FormatTokens(s.OutputTokens),
		FormatTokens(s.TotalTokens()),
		FormatElapsed(s.Elapsed),
		FormatCost(s.InputCost),
		FormatCost(s.OutputCost),
		FormatCost(s.TotalCost),
	)
	return err
}
