package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/apperrors"
	"github.com/retailvoice/askdb/pkg/services"
)

// AskRequest is the body of POST /api/ask. TopK is a pointer so an absent
// field takes the configured default while an explicit zero is rejected.
type AskRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

// AskHandler exposes the question-answering pipeline over HTTP.
type AskHandler struct {
	agent           *services.Agent
	defaultRowLimit int
	logger          *zap.Logger
}

// NewAskHandler creates an AskHandler around the agent.
func NewAskHandler(agent *services.Agent, defaultRowLimit int, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		agent:           agent,
		defaultRowLimit: defaultRowLimit,
		logger:          logger,
	}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.Ask)
}

// Ask handles POST /api/ask requests.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	topK := h.defaultRowLimit
	if req.TopK != nil {
		topK = *req.TopK
	}

	result, err := h.agent.Ask(r.Context(), question, topK)
	if err != nil {
		h.writeAskError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}

// writeAskError maps pipeline errors to stable HTTP error codes. Raw
// backend errors never reach the response body.
func (h *AskHandler) writeAskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTopK):
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_top_k", "top_k must be a positive integer within the configured maximum")
	case errors.Is(err, apperrors.ErrRequestTimeout):
		_ = ErrorResponse(w, http.StatusGatewayTimeout, "request_timeout", "the request exceeded its time budget")
	case errors.Is(err, apperrors.ErrQueryTimeout):
		_ = ErrorResponse(w, http.StatusGatewayTimeout, "query_timeout", "query execution timed out")
	case errors.Is(err, apperrors.ErrConnectionLost):
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "database_unavailable", "the database connection was lost")
	case errors.Is(err, apperrors.ErrCompletionUnavailable):
		_ = ErrorResponse(w, http.StatusBadGateway, "completion_unavailable", "the completion backend is unavailable")
	case errors.Is(err, apperrors.ErrExtraction):
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "extraction_failed", "no usable SQL statement could be produced for this question")
	case errors.Is(err, apperrors.ErrValidationExhausted):
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "validation_failed", services.ComposeFailure(trimReason(err)))
	case errors.Is(err, apperrors.ErrEngineRejected):
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "engine_rejected", "the database rejected the generated statement")
	default:
		h.logger.Error("ask request failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "the request could not be processed")
	}
}

// trimReason extracts the stable reason string from a wrapped validation
// error.
func trimReason(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
