package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork indicates the remote service could not be reached.
	ErrNetwork = errors.New("network error")
	// ErrRemote indicates the remote service answered with a non-2xx status.
	ErrRemote = errors.New("remote error")
	// ErrDecode indicates the remote response body could not be decoded.
	ErrDecode = errors.New("decode error")
	// ErrValidation indicates user input was rejected before any network call.
	ErrValidation = errors.New("validation error")
	// ErrInvalidArgument indicates a workflow precondition was violated.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientStock indicates the requested quantity exceeds current stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrBusy indicates the operation is already in flight; the second call is ignored.
	ErrBusy = errors.New("operation in progress")
)

// NetworkError wraps a transport failure where no response was received.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// RemoteError reports a non-2xx HTTP status from a remote service.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: remote error (%d): %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: remote error (%d)", e.Op, e.Status)
}

// Is matches ErrRemote.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// DecodeError reports a malformed response payload.
type DecodeError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: decode error: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying decoding error.
func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// FieldError describes a single rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError lists every field rejected by client-side validation.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("validation failed [%s]", strings.Join(parts, ", "))
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Has reports whether the named field was rejected.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// InsufficientStockError reports a checkout quantity above the current stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InvalidArgument returns an error wrapping ErrInvalidArgument with context.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
