package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse indicates the model returned no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// APIError is a non-2xx response from the runtime.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("llm api error: status %d: %s", e.StatusCode, e.Message)
}

// UnreachableError indicates the runtime could not be reached at all, e.g.
// a local Ollama that is not running.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("llm runtime unreachable at %s: %v", e.Host, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
