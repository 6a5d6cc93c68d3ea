package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/llm"
	"github.com/retailvoice/askdb/pkg/prompts"
)

const (
	// EmptyResultResponse is the fixed template for queries that return no
	// rows. Never replaced by generated prose.
	EmptyResultResponse = "No results found for this question."

	// Cell values longer than this are cut before entering the summary
	// prompt or the tabular fallback.
	maxCellLength = 120

	// Rows beyond this many never enter the summary prompt; the result is
	// already capped upstream but the prompt stays bounded independently.
	maxPromptRows = 50

	summaryTemperature = 0.3
)

// Composer turns query results into a natural-language answer. Empty
// results and errors take deterministic templates; non-empty results go
// through a second completion, degrading to a tabular rendering when the
// model is unavailable.
type Composer struct {
	client llm.CompletionClient
	logger *zap.Logger
}

// NewComposer creates a composer backed by the given completion client.
func NewComposer(client llm.CompletionClient, logger *zap.Logger) *Composer {
	return &Composer{
		client: client,
		logger: logger.Named("composer"),
	}
}

// Compose produces the answer text for a successful query. A failed
// narrative call is recovered locally and never fails the request.
func (c *Composer) Compose(ctx context.Context, question, sqlQuery string, result *datasource.QueryResult) string {
	if result == nil || result.RowCount == 0 {
		return EmptyResultResponse
	}

	rendered := RenderTable(result)

	summary, err := c.client.Complete(ctx,
		prompts.BuildResultSummaryPrompt(question, sqlQuery, rendered),
		prompts.ResultSummarySystemMessage,
		summaryTemperature)
	if err != nil {
		c.logger.Warn("narrative composition failed, using tabular fallback",
			zap.Error(err))
		return c.tabularFallback(result, rendered)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return c.tabularFallback(result, rendered)
	}
	return summary
}

// ComposeFailure renders a stable error message for a failed request. The
// reason is a machine-checkable string, never a raw backend error.
func ComposeFailure(reason string) string {
	return fmt.Sprintf("The question could not be answered: %s.", reason)
}

func (c *Composer) tabularFallback(result *datasource.QueryResult, rendered string) string {
	count := result.RowCount
	header := fmt.Sprintf("Found %d %s", count, pluralizeRow(count))
	if result.Capped {
		header += " (truncated)"
	}
	return header + ":\n" + rendered
}

func pluralizeRow(count int) string {
	if count == 1 {
		return "row"
	}
	return inflection.Plural("row")
}

// RenderTable produces a deterministic, size-bounded textual table from a
// query result: pipe-separated header, then one line per row with values in
// column order.
func RenderTable(result *datasource.QueryResult) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")

	for i, row := range result.Rows {
		if i >= maxPromptRows {
			b.WriteString(fmt.Sprintf("... and %d more rows\n", len(result.Rows)-maxPromptRows))
			break
		}
		cells := make([]string, len(result.Columns))
		for j, col := range result.Columns {
			cells[j] = formatCell(row[col])
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	s := fmt.Sprintf("%v", value)
	if len(s) > maxCellLength {
		// Cut on a rune boundary so the result stays valid UTF-8.
		cut := maxCellLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
