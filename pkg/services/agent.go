// Package services contains the question-answering pipeline: the agent
// orchestrator and the response composer.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/apperrors"
	"github.com/retailvoice/askdb/pkg/config"
	"github.com/retailvoice/askdb/pkg/llm"
	"github.com/retailvoice/askdb/pkg/prompts"
	"github.com/retailvoice/askdb/pkg/retry"
	"github.com/retailvoice/askdb/pkg/schema"
	sqlcheck "github.com/retailvoice/askdb/pkg/sql"
)

// ErrInvalidTopK indicates a non-positive or oversized row limit in the
// request.
var ErrInvalidTopK = errors.New("top_k must be a positive integer")

// AgentState tracks where a request is in the pipeline. The reprompt loop
// is an explicit state machine rather than nested error handling so the
// retry bound and failure-context threading stay visible.
type AgentState int

const (
	StateDrafting AgentState = iota
	StateValidating
	StateRepairing
	StateExecuting
	StateComposing
	StateFailed
	StateDone
)

func (s AgentState) String() string {
	switch s {
	case StateDrafting:
		return "drafting"
	case StateValidating:
		return "validating"
	case StateRepairing:
		return "repairing"
	case StateExecuting:
		return "executing"
	case StateComposing:
		return "composing"
	case StateFailed:
		return "failed"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

const generationTemperature = 0.0

// AskResult is the externally visible outcome of a successful request.
type AskResult struct {
	Status                  string                  `json:"status"`
	SQLQuery                string                  `json:"sql_query"`
	RawResult               []map[string]any        `json:"raw_result"`
	NaturalLanguageResponse string                  `json:"natural_language_response"`
	TablesUsed              []string                `json:"tables_used"`
	Question                string                  `json:"question"`
	RowCountCapped          bool                    `json:"row_count_capped,omitempty"`
}

// Agent orchestrates one question through prompt, completion, validation,
// execution and composition. It holds no per-request state; concurrent
// Ask calls share only the immutable catalog.
type Agent struct {
	catalog  *schema.Catalog
	client   llm.CompletionClient
	executor datasource.QueryExecutor
	composer *Composer
	cfg      config.AgentConfig
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewAgent wires the pipeline components together.
func NewAgent(
	catalog *schema.Catalog,
	client llm.CompletionClient,
	executor datasource.QueryExecutor,
	composer *Composer,
	cfg config.AgentConfig,
	logger *zap.Logger,
) *Agent {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.MaxCompletionRetries

	return &Agent{
		catalog:  catalog,
		client:   client,
		executor: executor,
		composer: composer,
		cfg:      cfg,
		retryCfg: retryCfg,
		logger:   logger.Named("agent"),
	}
}

// Ask answers a natural-language question against the configured database.
// topK caps returned rows; zero or negative values are rejected rather than
// silently producing empty results.
func (a *Agent) Ask(ctx context.Context, question string, topK int) (*AskResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if topK > a.cfg.MaxRowLimit {
		return nil, fmt.Errorf("%w: %d exceeds maximum %d", ErrInvalidTopK, topK, a.cfg.MaxRowLimit)
	}

	requestID := uuid.New().String()
	logger := a.logger.With(zap.String("request_id", requestID))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.RequestBudgetSeconds)*time.Second)
	defer cancel()

	logger.Info("question received",
		zap.Int("top_k", topK),
		zap.String("model", a.client.GetModel()))

	validated, err := a.draftAndValidate(ctx, logger, question, topK)
	if err != nil {
		return nil, a.deadlineOr(ctx, err)
	}

	logger.Info("statement validated",
		zap.String("state", StateExecuting.String()),
		zap.Strings("tables", validated.Tables))

	result, err := a.execute(ctx, validated.Statement, topK)
	if err != nil {
		return nil, a.deadlineOr(ctx, err)
	}

	logger.Info("query executed",
		zap.String("state", StateComposing.String()),
		zap.Int("rows", result.RowCount),
		zap.Bool("capped", result.Capped))

	answer := a.composer.Compose(ctx, question, validated.Statement, result)

	logger.Info("request complete", zap.String("state", StateDone.String()))

	return &AskResult{
		Status:                  "success",
		SQLQuery:                validated.Statement,
		RawResult:               result.Rows,
		NaturalLanguageResponse: answer,
		TablesUsed:              validated.Tables,
		Question:                question,
		RowCountCapped:          result.Capped,
	}, nil
}

// draftAndValidate runs the bounded draft/validate/repair loop. Each failed
// attempt feeds its rejection back into the next prompt.
func (a *Agent) draftAndValidate(ctx context.Context, logger *zap.Logger, question string, topK int) (*sqlcheck.ValidationResult, error) {
	validator := sqlcheck.NewValidator(a.catalog, topK, a.executor.Dialect())
	schemaText := a.catalog.Describe()

	state := StateDrafting
	var failure *prompts.PriorFailure
	var lastErr error

	for attempt := 0; attempt <= a.cfg.MaxValidationRetries; attempt++ {
		logger.Debug("drafting statement",
			zap.String("state", state.String()),
			zap.Int("attempt", attempt))

		prompt := prompts.BuildSQLGenerationPrompt(prompts.GenerationInput{
			Question:   question,
			SchemaText: schemaText,
			Dialect:    a.executor.Dialect(),
			RowLimit:   topK,
			Failure:    failure,
		})

		completion, err := a.complete(ctx, prompt)
		if err != nil {
			return nil, err
		}

		state = StateValidating
		statement, err := sqlcheck.Extract(completion)
		if err != nil {
			logger.Warn("extraction failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = fmt.Errorf("%w: %v", apperrors.ErrExtraction, err)
			failure = &prompts.PriorFailure{
				Query:  completion,
				Reason: err.Error(),
			}
			state = StateRepairing
			continue
		}

		result := validator.Validate(statement)
		if result.Valid {
			return &result, nil
		}

		logger.Warn("validation rejected statement",
			zap.Int("attempt", attempt),
			zap.String("reason", result.Reason),
			zap.String("offending_token", result.OffendingToken))
		lastErr = fmt.Errorf("%w: %s", apperrors.ErrValidationExhausted, result.Reason)
		failure = &prompts.PriorFailure{
			Query:          statement,
			Reason:         result.Reason,
			OffendingToken: result.OffendingToken,
		}
		state = StateRepairing
	}

	return nil, lastErr
}

// complete calls the completion backend, retrying transient failures up to
// the configured bound. Permanent failures return immediately.
func (a *Agent) complete(ctx context.Context, prompt string) (string, error) {
	var completion string
	err := retry.DoIfRetryable(ctx, a.retryCfg, func() error {
		var err error
		completion, err = a.client.Complete(ctx, prompt,
			prompts.SQLGenerationSystemMessage, generationTemperature)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCompletionUnavailable, err)
	}
	return completion, nil
}

// execute runs the validated statement under the per-query timeout. Expiry
// is terminal; a slow query is never re-run.
func (a *Agent) execute(ctx context.Context, statement string, topK int) (*datasource.QueryResult, error) {
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.QueryTimeoutSeconds)*time.Second)
	defer cancel()

	result, err := a.executor.Query(queryCtx, statement, topK)
	if err != nil {
		var execErr *datasource.ExecutionError
		if errors.As(err, &execErr) {
			switch execErr.Kind {
			case datasource.ErrorKindTimeout:
				return nil, fmt.Errorf("%w: %v", apperrors.ErrQueryTimeout, err)
			case datasource.ErrorKindConnectionLost:
				return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectionLost, err)
			}
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEngineRejected, err)
	}
	return result, nil
}

// deadlineOr converts errors observed after the request budget expired into
// the budget error; everything else passes through.
func (a *Agent) deadlineOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrRequestTimeout, err)
	}
	return err
}
