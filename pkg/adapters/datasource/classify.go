package datasource

import (
	"context"
	"errors"
	"strings"
)

// ClassifyQueryError maps a driver error to an ExecutionError.
// Context expiry maps to timeout; connection-level failures to
// connection_lost; everything else (syntax errors, permission
// violations, writes rejected by a read-only transaction) to
// engine_rejected.
func ClassifyQueryError(ctx context.Context, err error) *ExecutionError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewExecutionError(ErrorKindTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewExecutionError(ErrorKindTimeout, err)
	}

	lower := strings.ToLower(err.Error())
	connPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"unexpected eof",
		"conn closed",
		"connection closed",
		"network is unreachable",
	}
	for _, p := range connPatterns {
		if strings.Contains(lower, p) {
			return NewExecutionError(ErrorKindConnectionLost, err)
		}
	}

	return NewExecutionError(ErrorKindEngineRejected, err)
}
