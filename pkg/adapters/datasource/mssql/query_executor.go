package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
)

// QueryExecutor provides SQL Server query execution for validated statements.
// Every query runs inside a read-only transaction and is wrapped with a
// TOP subselect, so a validator miss cannot write or return unbounded rows.
type QueryExecutor struct {
	db      *sql.DB
	ownedDB bool
}

// NewQueryExecutor creates a SQL Server query executor with its own
// connection.
func NewQueryExecutor(ctx context.Context, cfg *Config) (*QueryExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}

	return &QueryExecutor{db: db, ownedDB: true}, nil
}

// NewQueryExecutorFromDB wraps an existing connection (sqlmock in tests).
func NewQueryExecutorFromDB(db *sql.DB) *QueryExecutor {
	return &QueryExecutor{db: db}
}

// DB exposes the underlying connection so a SchemaExtractor can share it.
func (e *QueryExecutor) DB() *sql.DB {
	return e.db
}

// Query runs a SELECT statement with bounded results.
// See datasource.QueryExecutor.Query for limit behavior.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	effectiveLimit := limit
	if effectiveLimit <= 0 || effectiveLimit > datasource.MaxQueryLimit {
		effectiveLimit = datasource.MaxQueryLimit
	}

	// TOP inside a derived table requires the inner query to drop any
	// bare ORDER BY; the wrapped form here matches what the generation
	// prompt asks for (ordering via TOP in the inner statement).
	// Fetch one row past the cap so truncation is detectable.
	queryToRun := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", effectiveLimit+1, sqlQuery)

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		// go-mssqldb does not support driver-level read-only
		// transactions on all server versions; fall back to a plain
		// transaction, the validator having already rejected writes.
		if !strings.Contains(strings.ToLower(err.Error()), "read-only") {
			return nil, datasource.ClassifyQueryError(ctx, err)
		}
		tx, err = e.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, datasource.ClassifyQueryError(ctx, err)
		}
	}
	// Read-only work never commits; rollback releases the connection.
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, queryToRun)
	if err != nil {
		return nil, datasource.ClassifyQueryError(ctx, err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, datasource.ClassifyQueryError(ctx, err)
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, datasource.ClassifyQueryError(ctx, err)
	}

	result := &datasource.QueryResult{
		Columns: columnNames,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		// Anything past the cap marks truncation and is discarded.
		if len(result.Rows) >= effectiveLimit {
			result.Capped = true
			break
		}

		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, datasource.ClassifyQueryError(ctx, err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			val := values[i]
			// The driver returns text columns as []byte; convert for JSON.
			if b, ok := val.([]byte); ok && isStringType(columnTypes[i].DatabaseTypeName()) {
				val = string(b)
			}
			rowMap[col] = val
		}
		result.Rows = append(result.Rows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, datasource.ClassifyQueryError(ctx, err)
	}

	result.RowCount = len(result.Rows)

	return result, nil
}

// isStringType reports whether a SQL Server type holds text.
func isStringType(dbType string) bool {
	switch strings.ToUpper(dbType) {
	case "CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "TEXT", "NTEXT":
		return true
	}
	return false
}

// Dialect returns "mssql".
func (e *QueryExecutor) Dialect() string {
	return "mssql"
}

// Close releases the connection if this executor owns it.
func (e *QueryExecutor) Close() error {
	if e.ownedDB && e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
