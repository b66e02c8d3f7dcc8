package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/tordrt/dwload/internal/etl"
	"github.com/tordrt/dwload/internal/schema"
)

// MarkdownFormatter formats reports and snapshots as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatReport writes the outcomes as a markdown table
func (f *MarkdownFormatter) FormatReport(outcomes []etl.Outcome) error {
	_, _ = fmt.Fprintln(f.writer, "# Run Report")
	_, _ = fmt.Fprintln(f.writer)

	table := f.newTable([]string{"Stage", "Database", "Table", "Rows", "Status", "Duration"})
	for _, o := range outcomes {
		table.Append([]string{
			string(o.Stage),
			o.Database,
			tableLabel(o),
			fmt.Sprintf("%d", o.Rows),
			statusText(o),
			o.Duration.Round(time.Millisecond).String(),
		})
	}
	table.Render()

	var failures []etl.Outcome
	for _, o := range outcomes {
		if o.Failed() {
			failures = append(failures, o)
		}
	}
	if len(failures) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "## Failures")
		_, _ = fmt.Fprintln(f.writer)
		for _, o := range failures {
			_, _ = fmt.Fprintf(f.writer, "- **%s.%s:** %s\n", o.Database, tableLabel(o), o.Err)
		}
	}
	return nil
}

// FormatSnapshot writes one section per table
func (f *MarkdownFormatter) FormatSnapshot(s *schema.Snapshot) error {
	_, _ = fmt.Fprintf(f.writer, "# Database %s\n\n", s.Database)

	for _, t := range s.Tables {
		_, _ = fmt.Fprintf(f.writer, "## %s\n\n", t.Name)
		_, _ = fmt.Fprintf(f.writer, "Rows: %d\n\n", t.Rows)

		_, _ = fmt.Fprintln(f.writer, "### Columns")
		_, _ = fmt.Fprintln(f.writer)
		for _, col := range t.Columns {
			if !col.NullableKnown || col.Nullable {
				_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
			} else {
				_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, NOT NULL\n", col.Name, col.Type)
			}
		}
		_, _ = fmt.Fprintln(f.writer)
	}
	return nil
}

func (f *MarkdownFormatter) newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(f.writer)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}
