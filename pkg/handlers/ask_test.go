package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/config"
	"github.com/retailvoice/askdb/pkg/llm"
	"github.com/retailvoice/askdb/pkg/schema"
	"github.com/retailvoice/askdb/pkg/services"
)

// stubExecutor implements datasource.QueryExecutor for handler tests.
type stubExecutor struct {
	QueryFunc func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error)
}

func (s *stubExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	if s.QueryFunc != nil {
		return s.QueryFunc(ctx, sqlQuery, limit)
	}
	return &datasource.QueryResult{
		Columns:  []string{"first_name"},
		Rows:     []map[string]any{{"first_name": "Amina"}},
		RowCount: 1,
	}, nil
}

func (s *stubExecutor) Dialect() string { return "postgres" }
func (s *stubExecutor) Close() error    { return nil }

var _ datasource.QueryExecutor = (*stubExecutor)(nil)

func handlerCatalog() *schema.Catalog {
	return schema.NewCatalog([]schema.TableSpec{
		{
			Name: "employees",
			Columns: []schema.ColumnSpec{
				{Name: "employee_id", DataType: "integer", IsPrimary: true},
				{Name: "first_name", DataType: "varchar"},
				{Name: "status", DataType: "varchar"},
			},
		},
	})
}

func newAskServer(t *testing.T, client llm.CompletionClient, executor datasource.QueryExecutor) *http.ServeMux {
	t.Helper()

	logger := zap.NewNop()
	cfg := config.AgentConfig{
		DefaultRowLimit:      10,
		MaxRowLimit:          1000,
		MaxValidationRetries: 2,
		MaxCompletionRetries: 0,
		QueryTimeoutSeconds:  5,
		RequestBudgetSeconds: 30,
	}
	composer := services.NewComposer(client, logger)
	agent := services.NewAgent(handlerCatalog(), client, executor, composer, cfg, logger)

	mux := http.NewServeMux()
	NewAskHandler(agent, cfg.DefaultRowLimit, logger).RegisterRoutes(mux)
	return mux
}

func postAsk(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAsk_Success(t *testing.T) {
	client := llm.NewMockCompletionClient(
		"SELECT e.first_name FROM employees e WHERE e.status = 'Active' LIMIT 10",
		"One active employee was found.",
	)
	mux := newAskServer(t, client, &stubExecutor{})

	rec := postAsk(mux, `{"question": "Who is active?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp services.AskResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []string{"employees"}, resp.TablesUsed)
	assert.Equal(t, "Who is active?", resp.Question)
	assert.Equal(t, "One active employee was found.", resp.NaturalLanguageResponse)
	require.Len(t, resp.RawResult, 1)
}

func TestAsk_TopKZeroRejected(t *testing.T) {
	client := llm.NewMockCompletionClient("SELECT 1")
	mux := newAskServer(t, client, &stubExecutor{})

	rec := postAsk(mux, `{"question": "anything", "top_k": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_top_k")
	assert.Equal(t, 0, client.CompleteCalls)
}

func TestAsk_MissingQuestion(t *testing.T) {
	mux := newAskServer(t, llm.NewMockCompletionClient(), &stubExecutor{})

	rec := postAsk(mux, `{"top_k": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question is required")
}

func TestAsk_MalformedBody(t *testing.T) {
	mux := newAskServer(t, llm.NewMockCompletionClient(), &stubExecutor{})

	rec := postAsk(mux, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsk_ValidationExhaustionIs422(t *testing.T) {
	client := llm.NewMockCompletionClient("DROP TABLE employees")
	mux := newAskServer(t, client, &stubExecutor{})

	rec := postAsk(mux, `{"question": "remove the table"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_failed")
	assert.Contains(t, rec.Body.String(), "write-operation-forbidden")
}

func TestAsk_RequestBudgetExhaustionIs504(t *testing.T) {
	client := &llm.MockCompletionClient{
		CompleteFunc: func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	logger := zap.NewNop()
	cfg := config.AgentConfig{
		DefaultRowLimit:      10,
		MaxRowLimit:          1000,
		MaxValidationRetries: 2,
		QueryTimeoutSeconds:  5,
		RequestBudgetSeconds: 1,
	}
	composer := services.NewComposer(client, logger)
	agent := services.NewAgent(handlerCatalog(), client, &stubExecutor{}, composer, cfg, logger)

	mux := http.NewServeMux()
	NewAskHandler(agent, cfg.DefaultRowLimit, logger).RegisterRoutes(mux)

	rec := postAsk(mux, `{"question": "Who is active?"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_timeout")
}

func TestAsk_DatabaseConnectionLostIs503(t *testing.T) {
	client := llm.NewMockCompletionClient("SELECT e.first_name FROM employees e LIMIT 10")
	executor := &stubExecutor{
		QueryFunc: func(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
			return nil, datasource.NewExecutionError(datasource.ErrorKindConnectionLost, context.Canceled)
		},
	}
	mux := newAskServer(t, client, executor)

	rec := postAsk(mux, `{"question": "who?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database_unavailable")
}
