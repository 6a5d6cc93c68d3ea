package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
)

// QueryExecutor provides PostgreSQL query execution for validated statements.
// Every query runs inside a read-only transaction and is wrapped with a
// LIMIT subselect, so a validator miss cannot write or return unbounded rows.
type QueryExecutor struct {
	pool      *pgxpool.Pool
	ownedPool bool
}

// NewQueryExecutor creates a PostgreSQL query executor with its own pool.
func NewQueryExecutor(ctx context.Context, cfg *Config) (*QueryExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &QueryExecutor{pool: pool, ownedPool: true}, nil
}

// NewQueryExecutorFromPool wraps an existing pool (shared with the extractor).
func NewQueryExecutorFromPool(pool *pgxpool.Pool) *QueryExecutor {
	return &QueryExecutor{pool: pool}
}

// Pool exposes the underlying pool so a SchemaExtractor can share it.
func (e *QueryExecutor) Pool() *pgxpool.Pool {
	return e.pool
}

// Query runs a SELECT statement with bounded results.
// See datasource.QueryExecutor.Query for limit behavior.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	effectiveLimit := limit
	if effectiveLimit <= 0 || effectiveLimit > datasource.MaxQueryLimit {
		effectiveLimit = datasource.MaxQueryLimit
	}
	// Fetch one row past the cap so truncation is detectable.
	queryToRun := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, effectiveLimit+1)

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, datasource.ClassifyQueryError(ctx, err)
	}
	// Read-only work never commits; rollback releases the connection.
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, queryToRun)
	if err != nil {
		return nil, datasource.ClassifyQueryError(ctx, err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	result := &datasource.QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		// Anything past the cap marks truncation and is discarded.
		if len(result.Rows) >= effectiveLimit {
			result.Capped = true
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, datasource.ClassifyQueryError(ctx, err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		result.Rows = append(result.Rows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, datasource.ClassifyQueryError(ctx, err)
	}

	result.RowCount = len(result.Rows)

	return result, nil
}

// Dialect returns "postgres".
func (e *QueryExecutor) Dialect() string {
	return "postgres"
}

// Close releases the pool if this executor owns it.
func (e *QueryExecutor) Close() error {
	if e.ownedPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
