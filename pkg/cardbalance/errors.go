package cardbalance

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the balance ledger.
var (
	ErrCardNotFound         = errors.New("card not found")
	ErrCardInactive         = errors.New("card not active")
	ErrInsufficientCredit   = errors.New("insufficient credit balance")
	ErrInvalidCard          = errors.New("invalid card")
	ErrInvalidCardStatus    = errors.New("invalid card status")
	ErrInvalidDeltaAmount   = errors.New("invalid delta amount")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
