// Package errors implements the graph projection's error taxonomy: NotFound,
// Validation, Timeout, SizeExceeded, and Transient, each carrying an HTTP-like
// status code so external collaborators (the HTTP surface, out of scope here)
// can translate without inspecting message strings.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorType is the taxonomy a caller switches on.
type ErrorType int

const (
	// ErrorTypeNotFound covers DocumentNotFound, StartNodeNotFound, TraceNodeNotFound.
	ErrorTypeNotFound ErrorType = iota
	// ErrorTypeValidation covers ProcessAlreadyStarted, StatusError, InappropriateStatus, GraphBuildingError.
	ErrorTypeValidation
	// ErrorTypeTimeout covers graph queries aborted by the store.
	ErrorTypeTimeout
	// ErrorTypeSizeExceeded covers responses beyond a caller-specified cap.
	ErrorTypeSizeExceeded
	// ErrorTypeTransient covers store/gRPC/consumer connectivity issues eligible for retry.
	ErrorTypeTransient
	// ErrorTypeInternal is the catch-all for unexpected internal state.
	ErrorTypeInternal
)

// Severity indicates how the caller should react.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// StatusCode returns the HTTP-like status code for a type, per spec §6/§7.
func (t ErrorType) StatusCode() int {
	switch t {
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeValidation:
		return 409
	case ErrorTypeTimeout:
		return 408
	case ErrorTypeSizeExceeded:
		return 510
	default:
		return 500
	}
}

// Error is a structured error carrying taxonomy, severity, and context.
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func (e *Error) IsFatal() bool { return e.Severity == SeverityCritical }

func (e *Error) DetailedString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n", severityString(e.Severity), typeString(e.Type), e.Message))
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}
	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}
	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}
	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeSizeExceeded:
		return "SIZE_EXCEEDED"
	case ErrorTypeTransient:
		return "TRANSIENT"
	default:
		return "INTERNAL"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}

func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message, Context: make(map[string]interface{}), StackTrace: captureStackTrace(2)}
}

func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err, Context: make(map[string]interface{}), StackTrace: captureStackTrace(2)}
}

// Sentinel constructors matching the named exceptions of spec §7 and of
// task/models/errors.py.

func NewDocumentNotFound(message string) *Error {
	return New(ErrorTypeNotFound, SeverityHigh, message)
}

func NewStartNodeNotFound(message string) *Error {
	return New(ErrorTypeNotFound, SeverityHigh, message)
}

func NewTraceNodeNotFound(message string) *Error {
	return New(ErrorTypeNotFound, SeverityHigh, message)
}

func NewProcessAlreadyStarted(message string) *Error {
	return New(ErrorTypeValidation, SeverityMedium, message)
}

func NewStatusError(message string) *Error {
	return New(ErrorTypeValidation, SeverityMedium, message)
}

func NewInappropriateStatus(message string) *Error {
	return New(ErrorTypeValidation, SeverityMedium, message)
}

func NewGraphBuildingError(message string) *Error {
	return New(ErrorTypeValidation, SeverityHigh, message)
}

// NewTimeOutError preserves the documented message text verbatim (scenario S5).
func NewTimeOutError() *Error {
	return New(ErrorTypeTimeout, SeverityHigh,
		"The request could not be completed within the allotted time. Most likely there is no connection between the elements")
}

// NodeEdgeErrorResponse is the §7 SizeExceeded payload shape.
type NodeEdgeErrorResponse struct {
	Description string
	Size        int
	MaxSize     int
}

func NewSizeExceeded(size, maxSize int) *Error {
	return New(ErrorTypeSizeExceeded, SeverityMedium, fmt.Sprintf("response of size %d exceeds the maximum of %d", size, maxSize)).
		WithContext("size", size).
		WithContext("max_size", maxSize)
}

func NewTransient(err error, message string) *Error {
	return Wrap(err, ErrorTypeTransient, SeverityMedium, message)
}

func NewConcurrencyError(message string) *Error {
	return New(ErrorTypeValidation, SeverityMedium, message)
}

func InternalError(message string) *Error {
	return New(ErrorTypeInternal, SeverityCritical, message)
}

func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal reports whether err should stop the current worker.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.IsFatal()
	}
	return false
}

// IsTransient reports whether err is eligible for retry per §5/§7.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Type == ErrorTypeTransient
	}
	return false
}

// Is reports whether err belongs to the given taxonomy type.
func Is(err error, t ErrorType) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == t
	}
	return false
}
