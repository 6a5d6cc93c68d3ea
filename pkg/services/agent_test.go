package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/apperrors"
	"github.com/retailvoice/askdb/pkg/config"
	"github.com/retailvoice/askdb/pkg/llm"
	"github.com/retailvoice/askdb/pkg/schema"
)

// mockExecutor implements datasource.QueryExecutor with function fields.
type mockExecutor struct {
	QueryFunc  func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error)
	QueryCalls int
	Statements []string
	dialect    string
}

func (m *mockExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	m.QueryCalls++
	m.Statements = append(m.Statements, sqlQuery)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sqlQuery, limit)
	}
	return &datasource.QueryResult{
		Columns:  []string{"first_name"},
		Rows:     []map[string]any{{"first_name": "Amina"}},
		RowCount: 1,
	}, nil
}

func (m *mockExecutor) Dialect() string {
	if m.dialect == "" {
		return "postgres"
	}
	return m.dialect
}

func (m *mockExecutor) Close() error { return nil }

var _ datasource.QueryExecutor = (*mockExecutor)(nil)

func testCatalog() *schema.Catalog {
	return schema.NewCatalog([]schema.TableSpec{
		{
			Name: "departments",
			Columns: []schema.ColumnSpec{
				{Name: "department_id", DataType: "integer", IsPrimary: true},
				{Name: "department_name", DataType: "varchar"},
			},
		},
		{
			Name: "employees",
			Columns: []schema.ColumnSpec{
				{Name: "employee_id", DataType: "integer", IsPrimary: true},
				{Name: "first_name", DataType: "varchar"},
				{Name: "last_name", DataType: "varchar"},
				{Name: "status", DataType: "varchar"},
				{Name: "salary", DataType: "numeric", IsNullable: true},
				{Name: "department_id", DataType: "integer", IsNullable: true},
			},
			ForeignKeys: []schema.ForeignKeySpec{
				{Column: "department_id", ReferencedTable: "departments", ReferencedColumn: "department_id"},
			},
		},
		{
			Name: "customers",
			Columns: []schema.ColumnSpec{
				{Name: "customer_id", DataType: "integer", IsPrimary: true},
				{Name: "first_name", DataType: "varchar"},
				{Name: "registration_date", DataType: "date"},
			},
		},
	})
}

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		DefaultRowLimit:      10,
		MaxRowLimit:          1000,
		MaxValidationRetries: 2,
		MaxCompletionRetries: 2,
		QueryTimeoutSeconds:  5,
		RequestBudgetSeconds: 30,
	}
}

func newTestAgent(client llm.CompletionClient, executor *mockExecutor) *Agent {
	logger := zap.NewNop()
	composer := NewComposer(client, logger)
	return NewAgent(testCatalog(), client, executor, composer, testAgentConfig(), logger)
}

func TestAsk_ActiveITEmployees(t *testing.T) {
	client := llm.NewMockCompletionClient(
		"```sql\nSELECT e.first_name, e.last_name, e.salary FROM employees e JOIN departments d ON e.department_id = d.department_id WHERE e.status = 'Active' AND d.department_name = 'IT' ORDER BY e.salary DESC LIMIT 10\n```",
		"The IT department has one active employee, Amina.",
	)
	executor := &mockExecutor{}
	agent := newTestAgent(client, executor)

	result, err := agent.Ask(context.Background(), "Show me active IT department employees sorted by salary", 10)
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, []string{"employees", "departments"}, result.TablesUsed)
	assert.Contains(t, result.SQLQuery, "WHERE e.status = 'Active'")
	assert.Equal(t, "The IT department has one active employee, Amina.", result.NaturalLanguageResponse)
	assert.Equal(t, 1, executor.QueryCalls)
}

func TestAsk_NewCustomersPerMonth(t *testing.T) {
	client := llm.NewMockCompletionClient(
		"SELECT DATE_TRUNC('month', c.registration_date) AS month, COUNT(*) AS new_customers FROM customers c GROUP BY month ORDER BY month",
		"Customer signups grew steadily each month.",
	)
	executor := &mockExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
			return &datasource.QueryResult{
				Columns:  []string{"month", "new_customers"},
				Rows:     []map[string]any{{"month": "2024-01", "new_customers": int64(2)}},
				RowCount: 1,
			}, nil
		},
	}
	agent := newTestAgent(client, executor)

	result, err := agent.Ask(context.Background(), "How many new customers were acquired each month?", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"customers"}, result.TablesUsed)
	// No limiting clause in the draft, so the validator repairs it.
	assert.True(t, strings.HasSuffix(result.SQLQuery, "LIMIT 10"), result.SQLQuery)
}

func TestAsk_DropTableNeverExecutes(t *testing.T) {
	client := llm.NewMockCompletionClient("DROP TABLE employees")
	executor := &mockExecutor{}
	agent := newTestAgent(client, executor)

	_, err := agent.Ask(context.Background(), "Delete everything", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidationExhausted)
	assert.Contains(t, err.Error(), "write-operation-forbidden")
	assert.Equal(t, 0, executor.QueryCalls)
	// One draft per attempt: the initial one plus two repair rounds.
	assert.Equal(t, 3, client.CompleteCalls)
}

func TestAsk_RepairLoopRecoversFromBadTable(t *testing.T) {
	client := llm.NewMockCompletionClient(
		"SELECT * FROM payroll LIMIT 10",
		"SELECT e.first_name FROM employees e LIMIT 10",
		"Here are the employees.",
	)
	executor := &mockExecutor{}
	agent := newTestAgent(client, executor)

	result, err := agent.Ask(context.Background(), "List employees", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"employees"}, result.TablesUsed)

	// The repair prompt carries the rejection back to the model.
	require.Len(t, client.Prompts, 3)
	assert.Contains(t, client.Prompts[1], "unknown-table")
	assert.Contains(t, client.Prompts[1], "payroll")
}

func TestAsk_InvalidTopK(t *testing.T) {
	client := llm.NewMockCompletionClient("SELECT 1")
	executor := &mockExecutor{}
	agent := newTestAgent(client, executor)

	_, err := agent.Ask(context.Background(), "anything", 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)
	assert.Equal(t, 0, client.CompleteCalls)

	_, err = agent.Ask(context.Background(), "anything", 5000)
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func TestAsk_EmptyResultUsesFixedTemplate(t *testing.T) {
	client := llm.NewMockCompletionClient("SELECT e.first_name FROM employees e LIMIT 10")
	executor := &mockExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
			return &datasource.QueryResult{Columns: []string{"first_name"}}, nil
		},
	}
	agent := newTestAgent(client, executor)

	result, err := agent.Ask(context.Background(), "List employees named Zed", 10)
	require.NoError(t, err)
	assert.Equal(t, EmptyResultResponse, result.NaturalLanguageResponse)
	// No narrative call for empty results.
	assert.Equal(t, 1, client.CompleteCalls)
}

func TestAsk_QueryTimeoutSurfaced(t *testing.T) {
	client := llm.NewMockCompletionClient("SELECT e.first_name FROM employees e LIMIT 10")
	executor := &mockExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
			return nil, datasource.NewExecutionError(datasource.ErrorKindTimeout, context.DeadlineExceeded)
		},
	}
	agent := newTestAgent(client, executor)

	_, err := agent.Ask(context.Background(), "List employees", 10)
	assert.ErrorIs(t, err, apperrors.ErrQueryTimeout)
	// A slow query is never re-run.
	assert.Equal(t, 1, executor.QueryCalls)
}

func TestAsk_RequestBudgetExhausted(t *testing.T) {
	client := &llm.MockCompletionClient{
		CompleteFunc: func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	executor := &mockExecutor{}
	logger := zap.NewNop()
	cfg := testAgentConfig()
	cfg.RequestBudgetSeconds = 1
	agent := NewAgent(testCatalog(), client, executor, NewComposer(client, logger), cfg, logger)

	_, err := agent.Ask(context.Background(), "List employees", 10)
	assert.ErrorIs(t, err, apperrors.ErrRequestTimeout)
	// Budget expiry before a statement is validated means nothing runs.
	assert.Equal(t, 0, executor.QueryCalls)
}

func TestAsk_PermanentCompletionErrorNotRetried(t *testing.T) {
	client := &llm.MockCompletionClient{
		CompleteFunc: func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
			return "", llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, nil)
		},
	}
	executor := &mockExecutor{}
	agent := newTestAgent(client, executor)

	_, err := agent.Ask(context.Background(), "List employees", 10)
	assert.ErrorIs(t, err, apperrors.ErrCompletionUnavailable)
	assert.Equal(t, 1, client.CompleteCalls)
}

func TestAsk_TransientCompletionErrorRetried(t *testing.T) {
	calls := 0
	client := &llm.MockCompletionClient{
		CompleteFunc: func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
			calls++
			if calls == 1 {
				return "", llm.NewError(llm.ErrorTypeRateLimit, "rate limited", true, nil)
			}
			if calls == 2 {
				return "SELECT e.first_name FROM employees e LIMIT 10", nil
			}
			return "One employee found.", nil
		},
	}
	executor := &mockExecutor{}
	agent := newTestAgent(client, executor)

	result, err := agent.Ask(context.Background(), "List employees", 10)
	require.NoError(t, err)
	assert.Equal(t, "One employee found.", result.NaturalLanguageResponse)
}

func TestAsk_StableStatementShapeAcrossRuns(t *testing.T) {
	response := "SELECT e.first_name FROM employees e JOIN departments d ON e.department_id = d.department_id LIMIT 10"
	executor := &mockExecutor{}

	var shapes []string
	for i := 0; i < 3; i++ {
		client := llm.NewMockCompletionClient(response, "Summary.")
		agent := newTestAgent(client, executor)
		result, err := agent.Ask(context.Background(), "List employees with departments", 10)
		require.NoError(t, err)
		shapes = append(shapes, strings.Join(result.TablesUsed, ","))
	}
	assert.Equal(t, shapes[0], shapes[1])
	assert.Equal(t, shapes[1], shapes[2])
}

func TestAsk_RowsNeverExceedCap(t *testing.T) {
	client := llm.NewMockCompletionClient(
		"SELECT e.first_name FROM employees e LIMIT 10",
		"Five employees found.",
	)
	executor := &mockExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
			rows := make([]map[string]any, 5)
			for i := range rows {
				rows[i] = map[string]any{"first_name": "x"}
			}
			return &datasource.QueryResult{
				Columns:  []string{"first_name"},
				Rows:     rows,
				RowCount: 5,
				Capped:   true,
			}, nil
		},
	}
	agent := newTestAgent(client, executor)

	result, err := agent.Ask(context.Background(), "List employees", 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.RawResult), 5)
	assert.True(t, result.RowCountCapped)
}
