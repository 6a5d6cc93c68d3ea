package apperrors

import "errors"

var (
	ErrSchemaLoad            = errors.New("schema load failed")
	ErrExtraction            = errors.New("no usable SQL statement in completion")
	ErrValidationExhausted   = errors.New("validation retries exhausted")
	ErrRequestTimeout        = errors.New("request budget exceeded")
	ErrEngineRejected        = errors.New("engine rejected statement")
	ErrConnectionLost        = errors.New("database connection lost")
	ErrQueryTimeout          = errors.New("query execution timed out")
	ErrCompletionUnavailable = errors.New("completion backend unavailable")
)
