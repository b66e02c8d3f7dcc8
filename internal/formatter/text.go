package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/tordrt/dwload/internal/etl"
	"github.com/tordrt/dwload/internal/schema"
)

// Formatter renders run reports and inspection snapshots
type Formatter interface {
	FormatReport(outcomes []etl.Outcome) error
	FormatSnapshot(s *schema.Snapshot) error
}

// New returns the formatter for format ("text" or "markdown")
func New(format string, w io.Writer, useColor bool) (Formatter, error) {
	switch format {
	case "text", "":
		return NewTextFormatter(w, useColor), nil
	case "markdown", "md":
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: text, markdown)", format)
	}
}

// TextFormatter renders aligned terminal tables
type TextFormatter struct {
	writer   io.Writer
	useColor bool
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer, useColor bool) *TextFormatter {
	return &TextFormatter{writer: w, useColor: useColor}
}

// FormatReport writes one line per outcome followed by a totals line
func (f *TextFormatter) FormatReport(outcomes []etl.Outcome) error {
	table := f.newTable([]string{"Stage", "Database", "Table", "Rows", "Status", "Duration", "Error"})

	var rows, failed int
	for _, o := range outcomes {
		rows += o.Rows
		if o.Failed() {
			failed++
		}

		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		table.Append([]string{
			string(o.Stage),
			o.Database,
			tableLabel(o),
			fmt.Sprintf("%d", o.Rows),
			f.status(o),
			o.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}
	table.Render()

	summary := fmt.Sprintf("%d units, %d rows, %d failed", len(outcomes), rows, failed)
	if f.useColor {
		if failed > 0 {
			summary = color.RedString(summary)
		} else {
			summary = color.GreenString(summary)
		}
	}
	_, _ = fmt.Fprintln(f.writer, summary)
	return nil
}

// FormatSnapshot writes each table's row count and columns
func (f *TextFormatter) FormatSnapshot(s *schema.Snapshot) error {
	header := fmt.Sprintf("DATABASE %s", s.Database)
	if f.useColor {
		header = color.CyanString(header)
	}
	_, _ = fmt.Fprintln(f.writer, header)

	table := f.newTable([]string{"Table", "Rows", "Columns"})
	for _, t := range s.Tables {
		table.Append([]string{t.Name, fmt.Sprintf("%d", t.Rows), formatColumns(t.Columns)})
	}
	table.Render()
	return nil
}

func (f *TextFormatter) newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(f.writer)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func (f *TextFormatter) status(o etl.Outcome) string {
	text := statusText(o)
	if !f.useColor {
		return text
	}
	switch {
	case o.Skipped:
		return color.YellowString(text)
	case o.Failed():
		return color.RedString(text)
	default:
		return color.GreenString(text)
	}
}

func statusText(o etl.Outcome) string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.Failed():
		return "failed"
	default:
		return "ok"
	}
}

// tableLabel names the unit of work; provisioning outcomes cover a whole schema
func tableLabel(o etl.Outcome) string {
	if o.Table == "" {
		return "*"
	}
	return o.Table
}

func formatColumns(columns []schema.Column) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		part := col.Name + ": " + col.Type
		if col.NullableKnown && !col.Nullable {
			part += " NOT NULL"
		}
		parts[i] = part
	}
	return strings.Join(parts, ", ")
}
