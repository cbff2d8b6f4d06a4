package transwarp

import "fmt"

// Error codes for specific failure types
const (
	ErrCodeExecutor  = "EXECUTOR_ERROR"
	ErrCodeCompute   = "COMPUTE_FAILED"
	ErrCodeUpstream  = "UPSTREAM_FAILED"
	ErrCodeCycle     = "GRAPH_CYCLE"
	ErrCodeGraphFile = "GRAPH_FILE_ERROR"
	ErrCodeCancelled = "EXECUTION_CANCELLED"
	ErrCodeInternal  = "INTERNAL_ERROR"
)

// TranswarpError is a custom error type for transwarp specific errors.
type TranswarpError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeCompute)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "construction", "scheduling")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *TranswarpError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *TranswarpError) Unwrap() error {
	return e.Cause
}

// NewError creates a new TranswarpError.
func NewError(code, stage, message string, cause error) *TranswarpError {
	return &TranswarpError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// Specific error constructors

func NewExecutorError(message string, cause error) *TranswarpError {
	return NewError(ErrCodeExecutor, "construction", message, cause)
}

func NewComputeError(label string, cause error) *TranswarpError {
	return NewError(ErrCodeCompute, "scheduling", fmt.Sprintf("computation of node '%s' failed", label), cause)
}

// NewUpstreamError marks a node as failed because one of its transitive
// dependencies failed. The cause chain always terminates at the original
// compute failure, so errors.Is/As see through any number of hops.
func NewUpstreamError(label, depLabel string, cause error) *TranswarpError {
	msg := fmt.Sprintf("node '%s' skipped: upstream dependency '%s' failed", label, depLabel)
	return NewError(ErrCodeUpstream, "scheduling", msg, cause)
}

func NewCycleError(message string, cause error) *TranswarpError {
	return NewError(ErrCodeCycle, "construction", message, cause)
}

func NewGraphFileError(message string, cause error) *TranswarpError {
	return NewError(ErrCodeGraphFile, "loading", message, cause)
}

func NewCancelledError(stage string, cause error) *TranswarpError {
	return NewError(ErrCodeCancelled, stage, "execution cancelled", cause)
}

func NewInternalError(stage, message string, cause error) *TranswarpError {
	return NewError(ErrCodeInternal, stage, message, cause)
}

// IsTranswarpError checks if the error is a TranswarpError.
func IsTranswarpError(err error) bool {
	_, ok := err.(*TranswarpError)
	return ok
}

// IsUpstream reports whether err marks a node that was skipped because of an
// upstream failure, as opposed to a node whose own computation failed.
func IsUpstream(err error) bool {
	te, ok := err.(*TranswarpError)
	return ok && te.Code == ErrCodeUpstream
}
