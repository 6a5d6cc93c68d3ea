package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/schema"
	sqlcheck "github.com/retailvoice/askdb/pkg/sql"
)

// SQLRequest is the body of POST /api/sql: a raw statement run through the
// same validation and row-cap rules as generated SQL.
type SQLRequest struct {
	SQL  string `json:"sql"`
	TopK *int   `json:"top_k,omitempty"`
}

// SQLResponse carries the executed statement and its rows.
type SQLResponse struct {
	SQLQuery       string           `json:"sql_query"`
	Columns        []string         `json:"columns"`
	Rows           []map[string]any `json:"rows"`
	RowCount       int              `json:"row_count"`
	RowCountCapped bool             `json:"row_count_capped"`
}

// SQLHandler exposes direct read-only SQL execution for operators. Every
// statement passes the full validator; this endpoint is not a bypass.
type SQLHandler struct {
	catalog         *schema.Catalog
	executor        datasource.QueryExecutor
	defaultRowLimit int
	logger          *zap.Logger
}

// NewSQLHandler creates a SQLHandler.
func NewSQLHandler(catalog *schema.Catalog, executor datasource.QueryExecutor, defaultRowLimit int, logger *zap.Logger) *SQLHandler {
	return &SQLHandler{
		catalog:         catalog,
		executor:        executor,
		defaultRowLimit: defaultRowLimit,
		logger:          logger,
	}
}

// RegisterRoutes registers the sql handler's routes on the given mux.
func (h *SQLHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sql", h.Execute)
}

// Execute handles POST /api/sql requests.
func (h *SQLHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req SQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	if strings.TrimSpace(req.SQL) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sql is required")
		return
	}

	topK := h.defaultRowLimit
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK <= 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_top_k", "top_k must be a positive integer")
		return
	}

	statement, err := sqlcheck.Extract(req.SQL)
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "extraction_failed", err.Error())
		return
	}

	validator := sqlcheck.NewValidator(h.catalog, topK, h.executor.Dialect())
	result := validator.Validate(statement)
	if !result.Valid {
		detail := result.Reason
		if result.OffendingToken != "" {
			detail += ": " + result.OffendingToken
		}
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "validation_failed", detail)
		return
	}

	queryResult, err := h.executor.Query(r.Context(), result.Statement, topK)
	if err != nil {
		h.writeExecutionError(w, err)
		return
	}

	response := SQLResponse{
		SQLQuery:       result.Statement,
		Columns:        queryResult.Columns,
		Rows:           queryResult.Rows,
		RowCount:       queryResult.RowCount,
		RowCountCapped: queryResult.Capped,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode sql response", zap.Error(err))
	}
}

func (h *SQLHandler) writeExecutionError(w http.ResponseWriter, err error) {
	var execErr *datasource.ExecutionError
	if errors.As(err, &execErr) {
		switch execErr.Kind {
		case datasource.ErrorKindTimeout:
			_ = ErrorResponse(w, http.StatusGatewayTimeout, "query_timeout", "query execution timed out")
			return
		case datasource.ErrorKindConnectionLost:
			_ = ErrorResponse(w, http.StatusServiceUnavailable, "database_unavailable", "the database connection was lost")
			return
		case datasource.ErrorKindEngineRejected:
			_ = ErrorResponse(w, http.StatusUnprocessableEntity, "engine_rejected", "the database rejected the statement")
			return
		}
	}
	h.logger.Error("sql request failed", zap.Error(err))
	_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "the request could not be processed")
}
