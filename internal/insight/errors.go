package insight

import (
	"errors"
	"fmt"
)

// ErrTenantNotFound means the tenant id resolved by the auth layer does
// not match any business.
var ErrTenantNotFound = errors.New("business not found")

// UnsafeQueryError is returned when the guard rejects a model-generated
// candidate. The rejected text is kept for the audit trail; only a short
// preview should ever reach the caller.
type UnsafeQueryError struct {
	SQL     string
	Verdict Verdict
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("unsafe query rejected: %s", e.Verdict.Reason)
}

// Preview returns at most n characters of the rejected text.
func (e *UnsafeQueryError) Preview(n int) string {
	if len(e.SQL) <= n {
		return e.SQL
	}
	return e.SQL[:n]
}

// GenerationError wraps a model-provider failure. Both the SQL and the
// narrative call are fatal for the request: without a candidate there is
// nothing for the guard to prove safe.
type GenerationError struct {
	Stage string // "sql" or "narrative"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failure (%s): %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ExecutionError wraps a data-layer failure for a guard-accepted query,
// e.g. a nonexistent column the guard has no grammar for.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failure: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
