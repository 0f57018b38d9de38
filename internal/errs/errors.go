package errs

import (
	"errors"
	"fmt"
)

// Error classes for the query pipeline. Wrap with fmt.Errorf("...: %w", Err*)
// and test with errors.Is so callers never match on message text.
var (
	// ErrValidation covers malformed queries and URLs, rejected before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrRetrieval covers search and fetch failures. Recovered locally: the
	// pipeline degrades to fewer (or zero) sources.
	ErrRetrieval = errors.New("retrieval error")

	// ErrSynthesis covers model call failures. Fatal to the whole query.
	ErrSynthesis = errors.New("synthesis error")

	// ErrPersistence covers store failures. Reads degrade to empty state;
	// writes are logged and the already-computed answer is still returned.
	ErrPersistence = errors.New("persistence error")

	// ErrOrchestration is the single generic failure surfaced to callers when
	// no answer could be produced. Internal detail stays in logs.
	ErrOrchestration = errors.New("failed to process the query")

	// ErrNotFound is returned by the store when a chat does not exist.
	ErrNotFound = errors.New("not found")
)

// Validation wraps a message as a validation error.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Retrieval wraps an underlying error as a retrieval error.
func Retrieval(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRetrieval, op, err)
}

// Synthesis wraps an underlying error as a synthesis error.
func Synthesis(err error) error {
	return fmt.Errorf("%w: %v", ErrSynthesis, err)
}

// Persistence wraps an underlying error as a persistence error.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
