// Package datasource defines the adapter interfaces for the target
// database. Implementations live in the postgres and mssql subpackages.
package datasource

import "context"

// SchemaExtractor extracts database schema information.
// Used once at startup to build the schema catalog.
// Each implementation owns its connection and must be closed when done.
type SchemaExtractor interface {
	// GetTables returns all user tables (excludes system schemas).
	GetTables(ctx context.Context) ([]Table, error)

	// GetColumns returns columns for a specific table.
	GetColumns(ctx context.Context, table string) ([]Column, error)

	// GetForeignKeys returns all foreign key relationships.
	GetForeignKeys(ctx context.Context) ([]ForeignKey, error)

	// Close releases the database connection.
	Close() error
}

// Table represents a database table.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Column represents a database column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// ForeignKey represents a foreign key relationship.
type ForeignKey struct {
	Table            string `json:"table"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// MaxQueryLimit is the hard cap on rows returned by Query.
// This protects against unbounded queries that could crash the server.
const MaxQueryLimit = 1000

// QueryExecutor executes validated SELECT statements against the datasource.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a SELECT statement and returns bounded results.
	// The query is ALWAYS wrapped with a dialect-specific limit:
	//   - PostgreSQL: SELECT * FROM (query) AS _limited LIMIT n
	//   - SQL Server: SELECT TOP (n) * FROM (query) AS _limited
	//
	// Limit behavior:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	//   - otherwise: uses specified limit
	//
	// Execution runs inside a read-only transaction; a statement that
	// attempts a write fails with ErrorKindEngineRejected rather than
	// returning rows. If the engine still returns more rows than the
	// limit, the result is truncated and Capped is set.
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error)

	// Dialect returns the SQL dialect name ("postgres" or "mssql"),
	// used for prompt hints.
	Dialect() string

	// Close releases any resources held by the executor.
	Close() error
}

// QueryResult holds the results from executing a query.
// Columns preserve the engine's ordering; Rows map column name to value.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Capped   bool             `json:"capped"`
}

// ErrorKind classifies execution failures.
type ErrorKind string

const (
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindConnectionLost ErrorKind = "connection_lost"
	ErrorKindEngineRejected ErrorKind = "engine_rejected"
)

// ExecutionError wraps an engine failure with its classification.
// Execution errors are never retried by callers; a failing query is
// surfaced directly.
type ExecutionError struct {
	Kind  ErrorKind
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates a classified execution error.
func NewExecutionError(kind ErrorKind, cause error) *ExecutionError {
	return &ExecutionError{Kind: kind, Cause: cause}
}
