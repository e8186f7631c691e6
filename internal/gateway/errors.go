package gateway

import (
	"errors"
	"fmt"
)

// Result codes reported by gateway backends. Negative values are failures;
// anything below CodeInvalidArgument is backend-specific.
const (
	CodeOK              = 0
	CodeUnknown         = -1
	CodeInvalidHandle   = -2
	CodeInvalidArgument = -3
)

var (
	ErrUnknown         = errors.New("gateway: unknown error")
	ErrInvalidHandle   = errors.New("gateway: invalid handle")
	ErrInvalidArgument = errors.New("gateway: invalid argument")
)

// CodeError wraps a backend-specific failure code that has no dedicated
// sentinel.
type CodeError struct {
	Code int
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("gateway: engine error (code %d)", e.Code)
}

// FromCode maps an engine result code onto the closed error taxonomy.
// Non-negative codes are success.
func FromCode(code int) error {
	switch {
	case code >= CodeOK:
		return nil
	case code == CodeUnknown:
		return ErrUnknown
	case code == CodeInvalidHandle:
		return ErrInvalidHandle
	case code == CodeInvalidArgument:
		return ErrInvalidArgument
	default:
		return &CodeError{Code: code}
	}
}
