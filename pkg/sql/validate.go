package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/retailvoice/askdb/pkg/schema"
)

// Rejection reasons, stable strings surfaced to callers and re-prompts.
const (
	ReasonWriteForbidden  = "write-operation-forbidden"
	ReasonUnknownTable    = "unknown-table"
	ReasonUnknownColumn   = "unknown-column"
	ReasonUnsupportedJoin = "unsupported-join"
	ReasonInjection       = "injection-pattern-detected"
)

// ValidationResult is the outcome of validating one extracted statement.
// On success Statement holds the possibly repaired text (a row cap injected
// when missing) and Tables the canonical referenced table set.
type ValidationResult struct {
	Valid          bool
	Statement      string
	Tables         []string
	Reason         string
	OffendingToken string
}

// Validator checks extracted statements against a schema catalog. Rules
// apply in a fixed order and the first failure wins, so the same bad input
// always yields the same reported reason.
type Validator struct {
	catalog      *schema.Catalog
	defaultLimit int
	dialect      string
}

// NewValidator creates a validator bound to a catalog. defaultLimit is the
// row cap injected into statements that carry no limiting clause.
func NewValidator(catalog *schema.Catalog, defaultLimit int, dialect string) *Validator {
	return &Validator{
		catalog:      catalog,
		defaultLimit: defaultLimit,
		dialect:      dialect,
	}
}

var selectKeywordPattern = regexp.MustCompile(`(?i)^\s*SELECT\b(\s+DISTINCT\b)?`)

// Validate applies the rule chain to a single extracted statement:
//
//  1. Leading verb must be SELECT or WITH; write and DDL verbs are
//     rejected, including inside a WITH body.
//  2. Every referenced table must exist in the catalog. Names a WITH
//     clause defines are statement-local and exempt.
//  3. Every statically resolvable column must exist on its table.
//  4. Every join equality must follow a declared foreign key or an
//     allowlisted pair.
//  5. String literals must not contain injection patterns.
//  6. A missing row-limiting clause is repaired by injecting the default
//     cap; this is the one rule that mutates instead of rejecting.
func (v *Validator) Validate(statement string) ValidationResult {
	parsed := Parse(statement)

	if parsed.Verb != "SELECT" && parsed.Verb != "WITH" {
		return ValidationResult{
			Reason:         ReasonWriteForbidden,
			OffendingToken: parsed.Verb,
		}
	}
	// A WITH statement can still modify data in its body.
	if parsed.Verb == "WITH" {
		if verb := firstWriteVerb(statement); verb != "" {
			return ValidationResult{
				Reason:         ReasonWriteForbidden,
				OffendingToken: verb,
			}
		}
	}

	for _, name := range parsed.TableNames() {
		if !v.catalog.HasTable(name) {
			return ValidationResult{
				Reason:         ReasonUnknownTable,
				OffendingToken: name,
			}
		}
	}

	for _, col := range parsed.Columns {
		table := parsed.ResolveQualifier(col.Qualifier)
		if table == "" {
			continue
		}
		if !v.catalog.HasColumn(table, col.Name) {
			return ValidationResult{
				Reason:         ReasonUnknownColumn,
				OffendingToken: fmt.Sprintf("%s.%s", table, col.Name),
			}
		}
	}

	for _, join := range parsed.Joins {
		left := parsed.ResolveQualifier(join.LeftQualifier)
		right := parsed.ResolveQualifier(join.RightQualifier)
		if left == "" || right == "" {
			continue
		}
		if !v.catalog.IsAllowedJoin(left, join.LeftColumn, right, join.RightColumn) {
			return ValidationResult{
				Reason: ReasonUnsupportedJoin,
				OffendingToken: fmt.Sprintf("%s.%s = %s.%s",
					left, join.LeftColumn, right, join.RightColumn),
			}
		}
	}

	if hit := CheckLiteralsForInjection(statement); hit != nil {
		return ValidationResult{
			Reason:         ReasonInjection,
			OffendingToken: hit.Fingerprint,
		}
	}

	repaired := statement
	if !parsed.HasLimit {
		repaired = v.injectLimit(statement)
	}

	return ValidationResult{
		Valid:     true,
		Statement: repaired,
		Tables:    parsed.TableNames(),
	}
}

var writeVerbPattern = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|GRANT|REVOKE|MERGE)\b`)

func firstWriteVerb(statement string) string {
	if m := writeVerbPattern.FindString(maskStringLiterals(statement)); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

// injectLimit adds the configured row cap to a statement that lacks one.
func (v *Validator) injectLimit(statement string) string {
	if v.dialect == "mssql" {
		// TOP goes immediately after SELECT [DISTINCT].
		if loc := selectKeywordPattern.FindStringIndex(statement); loc != nil {
			return statement[:loc[1]] + fmt.Sprintf(" TOP (%d)", v.defaultLimit) + statement[loc[1]:]
		}
		return statement
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimSpace(statement), v.defaultLimit)
}
