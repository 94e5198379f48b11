// Package errors provides custom error types for index computation failures.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("no usable data found")
	ErrComputationGuard   = errors.New("computation guard tripped")
	ErrInsufficientData   = errors.New("insufficient data for calculation")
	ErrSharesUnavailable  = errors.New("shares outstanding unavailable for every ticker")
	ErrUnknownBasket      = errors.New("unknown basket")
	ErrProviderNotCapable = errors.New("provider does not support this lookup")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDatabaseError      = errors.New("database error")
	ErrCacheMiss          = errors.New("cache miss")
)

// InputError represents a request that can never succeed as given:
// an empty basket, an inverted date range, an unusable share table.
type InputError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("input error: %s (%v): %s: %v", e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("input error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Is makes every InputError match ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError creates a new InputError.
func NewInputError(field string, value interface{}, message string) *InputError {
	return &InputError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related failure for one ticker.
// These are recovered locally and only ever logged.
type DataError struct {
	DataType string
	Ticker   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Ticker, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Ticker, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, ticker, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Ticker:   ticker,
		Message:  message,
		Err:      err,
	}
}

// GuardError reports a basket-wide arithmetic guard, such as a zero base
// market cap or an empty price/shares intersection.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("computation guard: %s", e.Reason)
}

// Is makes every GuardError match ErrComputationGuard.
func (e *GuardError) Is(target error) bool {
	return target == ErrComputationGuard
}

// NewGuardError creates a new GuardError.
func NewGuardError(reason string) *GuardError {
	return &GuardError{Reason: reason}
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
