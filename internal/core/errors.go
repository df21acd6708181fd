package core

import (
	"errors"
	"net/http"
)

type ErrorCode int

const (
	ErrorCodeInternal ErrorCode = iota
	ErrorCodeValidation
	ErrorCodeNotFound
	// ErrorCodeNetwork marks a failed comments fetch. The only code that
	// is allowed to reach the state's error field.
	ErrorCodeNetwork
	// Persistence-layer codes. Absorbed at the adapter boundary, never
	// surfaced through the state.
	ErrorCodeDeserialization
	ErrorCodeMigration
	ErrorCodeStorageWrite
)

type AppError struct {
	Code    ErrorCode
	Message string
	Err     error

	Operation string
	// SafeToShow indicates the message may be shown to users.
	SafeToShow bool
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); !ok {
		return false
	} else {
		return e.Code == t.Code
	}
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case ErrorCodeValidation:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (e *AppError) PublicMessage() string {
	if e == nil {
		return "internal error"
	}
	if e.SafeToShow {
		return e.Message
	}
	return "internal error"
}

// WithOper returns a copy of the error with the operation set.
func (e *AppError) WithOper(o string) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Operation = o
	return &c
}

func AsAppError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Some useful constructors.

func NewNetworkError(message string, err error, op string) *AppError {
	return &AppError{
		Code:       ErrorCodeNetwork,
		Message:    message,
		Err:        err,
		Operation:  op,
		SafeToShow: true,
	}
}

func NewDeserializationError(message string, err error, op string) *AppError {
	return &AppError{
		Code:      ErrorCodeDeserialization,
		Message:   message,
		Err:       err,
		Operation: op,
	}
}

func NewMigrationError(message string, op string) *AppError {
	return &AppError{
		Code:      ErrorCodeMigration,
		Message:   message,
		Operation: op,
	}
}

func NewStorageWriteError(message string, err error, op string) *AppError {
	return &AppError{
		Code:      ErrorCodeStorageWrite,
		Message:   message,
		Err:       err,
		Operation: op,
	}
}

func NewValidationError(message string, err error, op string) *AppError {
	return &AppError{
		Code:       ErrorCodeValidation,
		Message:    message,
		Err:        err,
		Operation:  op,
		SafeToShow: true,
	}
}

func NewInternalError(message string, err error, op string) *AppError {
	return &AppError{
		Code:      ErrorCodeInternal,
		Message:   message,
		Err:       err,
		Operation: op,
	}
}
