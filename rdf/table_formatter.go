package rdf

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// TableFormatter renders statements as markdown tables
type TableFormatter struct {
	// MaxWidth is the maximum width for a column
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       60,
		TruncateString: "...",
	}
}

// FormatStatements formats statements as a markdown table. The context
// column is only shown when at least one statement has a named graph.
func (tf *TableFormatter) FormatStatements(stmts []Statement) string {
	if len(stmts) == 0 {
		return "_No statements_"
	}

	withContext := false
	withInferred := false
	for _, st := range stmts {
		if st.Context != nil {
			withContext = true
		}
		if st.Inferred {
			withInferred = true
		}
	}

	headers := []string{"subject", "predicate", "object"}
	if withContext {
		headers = append(headers, "context")
	}
	if withInferred {
		headers = append(headers, "inferred")
	}

	rows := make([][]string, 0, len(stmts))
	for _, st := range stmts {
		row := []string{
			tf.formatCell(st.Subject.String()),
			tf.formatCell(st.Predicate.String()),
			tf.formatCell(st.Object.String()),
		}
		if withContext {
			ctx := ""
			if st.Context != nil {
				ctx = tf.formatCell(st.Context.String())
			}
			row = append(row, ctx)
		}
		if withInferred {
			row = append(row, fmt.Sprintf("%t", st.Inferred))
		}
		rows = append(rows, row)
	}

	return tf.FormatTable(headers, rows) + fmt.Sprintf("\n_%d statements_\n", len(stmts))
}

// FormatTable renders arbitrary string rows under the given headers
func (tf *TableFormatter) FormatTable(headers []string, rows [][]string) string {
	tableString := &strings.Builder{}

	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	return tableString.String()
}

// formatCell escapes pipes and truncates long values
func (tf *TableFormatter) formatCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		cut := tf.MaxWidth - len(tf.TruncateString)
		if cut < 0 {
			cut = 0
		}
		s = s[:cut] + tf.TruncateString
	}
	return s
}
