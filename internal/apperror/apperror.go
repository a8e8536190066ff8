// Package apperror defines the error taxonomy shared by the service and HTTP layers.
//
// Every failure the service reports is an *AppError carrying two things:
//   - a KIND (one of the sentinel errors below) that decides the HTTP status
//   - a CODE (a short machine-readable string) that names the exact failure
//
// Handlers never inspect messages. They call errors.Is for the kind and
// CodeOf for the code.
package apperror

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Code is a machine-readable failure name returned to API clients.
type Code string

const (
	CodeInvalidNickname     Code = "invalid-nickname"
	CodeNicknameTaken       Code = "nickname-taken"
	CodeMissingVFile        Code = "missing-vfile"
	CodeMissingFile         Code = "missing-file"
	CodeBadVFileFormat      Code = "bad-vfile-format"
	CodeUnknownToken        Code = "unknown-token"
	CodeInvalidToken        Code = "invalid-token"
	CodeBadSignature        Code = "bad-signature"
	CodePayloadTooLarge     Code = "payload-too-large"
	CodeRedirectActive      Code = "redirect-active"
	CodeMissingTarget       Code = "missing-target"
	CodeInvalidTargetScheme Code = "invalid-target-scheme"
	CodeAccountNotFound     Code = "account-not-found"
	CodeNoRedirect          Code = "no-redirect-configured"
	CodeEmptyContent        Code = "empty-content"
	CodeInvalidEncoding     Code = "invalid-encoding"
	CodeTokenCollision      Code = "token-collision"
	CodeBadRequest          Code = "bad-request"
)

type AppError struct {
	Err     error  // kind sentinel
	Code    Code   // machine-readable failure name
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(code Code, message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    code,
		Message: message,
	}
}

func ValidationFailed(code Code, field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a request that is well-formed but clashes with the
// current state of a record (duplicate nickname, active redirect, ...).
func Conflict(code Code, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    code,
		Message: message,
	}
}

// Unauthorized reports a credential that could not be accepted.
// HTTP handlers map this to 401.
func Unauthorized(code Code, message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    code,
		Message: message,
	}
}

func PayloadTooLarge(message string) *AppError {
	return &AppError{
		Err:     ErrPayloadTooLarge,
		Code:    CodePayloadTooLarge,
		Message: message,
	}
}

// CodeOf returns the Code of the first *AppError in err's chain,
// or "" when the chain holds none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
