package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQueryError_ContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	execErr := ClassifyQueryError(ctx, ctx.Err())
	assert.Equal(t, ErrorKindTimeout, execErr.Kind)
}

func TestClassifyQueryError_DeadlineError(t *testing.T) {
	execErr := ClassifyQueryError(context.Background(), context.DeadlineExceeded)
	assert.Equal(t, ErrorKindTimeout, execErr.Kind)
}

func TestClassifyQueryError_ConnectionLost(t *testing.T) {
	for _, msg := range []string{
		"connection refused",
		"connection reset by peer",
		"broken pipe",
		"unexpected EOF",
	} {
		execErr := ClassifyQueryError(context.Background(), errors.New(msg))
		assert.Equal(t, ErrorKindConnectionLost, execErr.Kind, msg)
	}
}

func TestClassifyQueryError_EngineRejected(t *testing.T) {
	execErr := ClassifyQueryError(context.Background(), errors.New(`syntax error at or near "FORM"`))
	assert.Equal(t, ErrorKindEngineRejected, execErr.Kind)
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	execErr := NewExecutionError(ErrorKindEngineRejected, cause)

	require.ErrorIs(t, execErr, cause)
	assert.Contains(t, execErr.Error(), "engine_rejected")
}
