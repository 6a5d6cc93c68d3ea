// Package sql implements extraction, structural parsing, and validation of
// model-generated SQL statements.
package sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoStatement indicates no statement-like fragment was found in the
	// completion text.
	ErrNoStatement = errors.New("no SQL statement found in completion")

	// ErrMultipleStatements indicates the completion contained more than
	// one statement; only single statements are permitted.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

var (
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencePattern      = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*(.*?)```")
	// Labels some models prefix the statement with, e.g. "SQLQuery:".
	labelPrefixPattern = regexp.MustCompile(`(?i)^(?:sql\s*query|sql|query|answer)\s*:\s*`)
	statementStart     = regexp.MustCompile(`(?is)\b(SELECT|WITH|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|GRANT|REVOKE|MERGE|EXEC|EXECUTE)\b.*$`)
)

// Extract isolates exactly one SQL statement from raw completion text.
// Markdown fences, reasoning-trace tags, and label prefixes are stripped;
// any leading prose before the first SQL keyword is discarded. A trailing
// semicolon is removed. Interior semicolons outside string literals mean
// multiple statements and fail extraction.
func Extract(raw string) (string, error) {
	text := thinkBlockPattern.ReplaceAllString(raw, "")
	text = strings.TrimSpace(text)

	// Prefer a fenced block when present; models that fence reliably put
	// the statement inside it.
	if match := fencePattern.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	text = labelPrefixPattern.ReplaceAllString(text, "")

	// Drop leading prose up to the first SQL keyword. Write verbs are kept
	// here so the validator can reject them by reason instead of the
	// extractor reporting a missing statement.
	if loc := statementStart.FindStringIndex(text); loc != nil {
		text = text[loc[0]:]
	} else {
		return "", ErrNoStatement
	}

	text = stripTrailingSemicolon(strings.TrimSpace(text))
	if text == "" {
		return "", ErrNoStatement
	}

	if hasSemicolonOutsideStrings(text) {
		return "", ErrMultipleStatements
	}

	return text, nil
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Handle both backslash escape (\') and SQL standard escape ('').
			// A doubled quote exits and immediately re-enters on the next
			// quote, which correctly keeps us inside the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and surrounding
// whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	sqlQuery = strings.TrimSuffix(sqlQuery, ";")
	return strings.TrimRight(sqlQuery, " \t\n\r")
}
