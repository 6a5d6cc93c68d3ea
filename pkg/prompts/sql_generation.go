package prompts

import (
	"fmt"
	"strings"
)

// SQLGenerationSystemMessage frames the model as a SQL author that emits
// exactly one statement and nothing else.
const SQLGenerationSystemMessage = "You are a careful SQL author. " +
	"Given a database schema and a question, you produce exactly one " +
	"syntactically valid SELECT statement that answers the question. " +
	"You never produce statements that modify data or schema."

// ResultSummarySystemMessage frames the model as an analyst writing a
// short answer from query results.
const ResultSummarySystemMessage = "You are a data analyst. Given a " +
	"question, the SQL query that was run, and its results, you write a " +
	"short natural-language answer. You only state what the results show."

// PriorFailure carries validation feedback from a rejected draft so the
// next attempt can correct it.
type PriorFailure struct {
	Query          string
	Reason         string
	OffendingToken string
}

// GenerationInput collects everything the SQL generation prompt needs.
type GenerationInput struct {
	Question   string
	SchemaText string
	Dialect    string
	RowLimit   int
	Failure    *PriorFailure
}

// BuildSQLGenerationPrompt creates the prompt for translating a question
// into SQL. It embeds the full schema, the dialect, the row cap, and any
// feedback from a previously rejected draft.
func BuildSQLGenerationPrompt(in GenerationInput) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	prompt.WriteString(in.SchemaText)
	prompt.WriteString("\n")

	prompt.WriteString("# Task\n\n")
	prompt.WriteString(fmt.Sprintf("Write a single %s SELECT statement that answers the question below.\n\n", dialectName(in.Dialect)))

	prompt.WriteString("Rules:\n")
	prompt.WriteString("- Use only the tables and columns listed in the schema above.\n")
	prompt.WriteString("- Join tables only along the listed foreign key relationships.\n")
	prompt.WriteString("- Qualify column references with their table name or alias.\n")
	if in.Dialect == "mssql" {
		prompt.WriteString(fmt.Sprintf("- Return at most %d rows using TOP (%d).\n", in.RowLimit, in.RowLimit))
	} else {
		prompt.WriteString(fmt.Sprintf("- Return at most %d rows using a LIMIT clause.\n", in.RowLimit))
	}
	prompt.WriteString("- Respond with the SQL statement only. No explanation, no markdown fences.\n\n")

	if in.Failure != nil {
		prompt.WriteString("# Previous Attempt Rejected\n\n")
		prompt.WriteString("Your previous statement was rejected. Produce a corrected statement.\n\n")
		prompt.WriteString(fmt.Sprintf("Rejected statement:\n%s\n\n", in.Failure.Query))
		prompt.WriteString(fmt.Sprintf("Rejection reason: %s\n", in.Failure.Reason))
		if in.Failure.OffendingToken != "" {
			prompt.WriteString(fmt.Sprintf("Offending identifier: %s\n", in.Failure.OffendingToken))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(in.Question)
	prompt.WriteString("\n")

	return prompt.String()
}

// BuildResultSummaryPrompt creates the prompt for narrating query results.
// Results arrive pre-rendered as a compact table to keep token usage flat.
func BuildResultSummaryPrompt(question, sqlQuery, renderedResult string) string {
	var prompt strings.Builder

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("# SQL Query\n\n")
	prompt.WriteString(sqlQuery)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Results\n\n")
	prompt.WriteString(renderedResult)
	prompt.WriteString("\n\n")

	prompt.WriteString("# Task\n\n")
	prompt.WriteString("Answer the question in one to three sentences using only the results above. ")
	prompt.WriteString("Do not mention SQL or the query. If the results do not answer the question, say so plainly.\n")

	return prompt.String()
}

func dialectName(dialect string) string {
	switch dialect {
	case "mssql":
		return "SQL Server (T-SQL)"
	case "postgres":
		return "PostgreSQL"
	default:
		return dialect
	}
}
