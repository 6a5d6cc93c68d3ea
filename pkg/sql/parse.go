package sql

import (
	"regexp"
	"strings"
)

// TableRef is a FROM or JOIN target with its optional alias.
type TableRef struct {
	Name  string
	Alias string
}

// ColumnRef is a qualified column reference (alias or table name plus
// column). Unqualified columns are not statically resolvable and are not
// collected.
type ColumnRef struct {
	Qualifier string
	Name      string
}

// JoinCondition is one table.column = table.column equality from an ON
// clause.
type JoinCondition struct {
	LeftQualifier  string
	LeftColumn     string
	RightQualifier string
	RightColumn    string
}

// ParsedQuery is the structural view of a single statement: enough to
// validate identifiers and join shape without a full SQL grammar.
type ParsedQuery struct {
	Verb     string
	Tables   []TableRef
	Columns  []ColumnRef
	Joins    []JoinCondition
	HasLimit bool
}

var (
	tableRefPattern  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][\w]*(?:\.[a-zA-Z_][\w]*)?)(?:\s+(?:AS\s+)?([a-zA-Z_][\w]*))?`)
	columnRefPattern = regexp.MustCompile(`\b([a-zA-Z_][\w]*)\.([a-zA-Z_][\w]*)\b`)
	joinOnPattern    = regexp.MustCompile(`(?i)\bON\s+([a-zA-Z_][\w]*)\.([a-zA-Z_][\w]*)\s*=\s*([a-zA-Z_][\w]*)\.([a-zA-Z_][\w]*)`)
	ctePattern       = regexp.MustCompile(`(?i)(?:\bWITH\s+(?:RECURSIVE\s+)?|,\s*)([a-zA-Z_][\w]*)\s+AS\s*\(`)
	limitPattern     = regexp.MustCompile(`(?i)\b(?:LIMIT\s+\d+|TOP\s*\(?\s*\d+\s*\)?|FETCH\s+(?:FIRST|NEXT)\s+\d+\s+ROWS?)`)
)

// Keywords that must not be mistaken for a table alias after a FROM/JOIN
// target.
var reservedAfterTable = map[string]bool{
	"WHERE": true, "ON": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "FULL": true, "CROSS": true, "OUTER": true, "GROUP": true,
	"ORDER": true, "HAVING": true, "LIMIT": true, "UNION": true, "SET": true,
	"FETCH": true, "OFFSET": true, "AND": true, "OR": true, "NATURAL": true,
}

// Parse extracts the structural elements a validator needs from a single
// statement. String literals are masked first so their contents never match
// identifier patterns.
func Parse(statement string) *ParsedQuery {
	masked := maskStringLiterals(statement)

	parsed := &ParsedQuery{
		Verb:     leadingVerb(masked),
		HasLimit: limitPattern.MatchString(masked),
	}

	// Names defined by a WITH clause are statement-local; FROM/JOIN
	// references to them are not catalog tables.
	cteNames := make(map[string]bool)
	if parsed.Verb == "WITH" {
		for _, m := range ctePattern.FindAllStringSubmatch(masked, -1) {
			cteNames[strings.ToLower(m[1])] = true
		}
	}

	seenTables := make(map[TableRef]bool)
	for _, m := range tableRefPattern.FindAllStringSubmatch(masked, -1) {
		name := strings.ToLower(m[1])
		// Derived tables ("FROM (SELECT ...)") are skipped; the pattern
		// requires an identifier, so only real names land here. Strip a
		// schema qualifier if the model emitted one.
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if cteNames[name] {
			continue
		}
		ref := TableRef{Name: name}
		alias := strings.ToLower(m[2])
		if alias != "" && !reservedAfterTable[strings.ToUpper(alias)] {
			ref.Alias = alias
		}
		if !seenTables[ref] {
			seenTables[ref] = true
			parsed.Tables = append(parsed.Tables, ref)
		}
	}

	tableWords := make(map[string]bool, len(parsed.Tables)*2)
	for _, t := range parsed.Tables {
		tableWords[t.Name] = true
		if t.Alias != "" {
			tableWords[t.Alias] = true
		}
	}

	seenColumns := make(map[ColumnRef]bool)
	for _, m := range columnRefPattern.FindAllStringSubmatch(masked, -1) {
		qualifier := strings.ToLower(m[1])
		column := strings.ToLower(m[2])
		// Only qualifier.column pairs whose qualifier is a known alias or
		// table reference are column references; everything else is a
		// schema-qualified table name or noise.
		if !tableWords[qualifier] {
			continue
		}
		ref := ColumnRef{Qualifier: qualifier, Name: column}
		if !seenColumns[ref] {
			seenColumns[ref] = true
			parsed.Columns = append(parsed.Columns, ref)
		}
	}

	for _, m := range joinOnPattern.FindAllStringSubmatch(masked, -1) {
		parsed.Joins = append(parsed.Joins, JoinCondition{
			LeftQualifier:  strings.ToLower(m[1]),
			LeftColumn:     strings.ToLower(m[2]),
			RightQualifier: strings.ToLower(m[3]),
			RightColumn:    strings.ToLower(m[4]),
		})
	}

	return parsed
}

// ResolveQualifier maps an alias or table name back to the table it refers
// to. Returns the empty string when the qualifier matches nothing.
func (p *ParsedQuery) ResolveQualifier(qualifier string) string {
	qualifier = strings.ToLower(qualifier)
	for _, t := range p.Tables {
		if t.Alias == qualifier || t.Name == qualifier {
			return t.Name
		}
	}
	return ""
}

// TableNames returns the distinct referenced table names in order of first
// appearance.
func (p *ParsedQuery) TableNames() []string {
	seen := make(map[string]bool, len(p.Tables))
	names := make([]string, 0, len(p.Tables))
	for _, t := range p.Tables {
		if !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
	}
	return names
}

func leadingVerb(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// maskStringLiterals blanks the contents of quoted strings, preserving
// length and position so regex offsets stay meaningful.
func maskStringLiterals(statement string) string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	runes := []rune(statement)
	state := stateNormal
	prevChar := rune(0)

	for i, char := range runes {
		switch state {
		case stateNormal:
			switch char {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			} else {
				runes[i] = ' '
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			} else {
				runes[i] = ' '
			}
		}
		prevChar = char
	}

	return string(runes)
}

// stringLiterals returns the contents of all single-quoted literals in the
// statement.
func stringLiterals(statement string) []string {
	var literals []string
	var current strings.Builder
	inString := false
	prevChar := rune(0)

	for _, char := range statement {
		if inString {
			if char == '\'' && prevChar != '\\' {
				literals = append(literals, current.String())
				current.Reset()
				inString = false
			} else {
				current.WriteRune(char)
			}
		} else if char == '\'' {
			inString = true
		}
		prevChar = char
	}

	return literals
}
