// Package common holds the error taxonomy shared by the store, the assignment
// engine, the RPC layer and client replicas.
package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy. Callers match with errors.Is.
var (
	// ErrNotFound covers a missing session, participant or item, and any
	// session past its TTL.
	ErrNotFound = errors.New("not found or expired")
	// ErrForbidden is a host-only operation attempted without the owner
	// token, or an editor acting on another participant.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCapacity is a claim that would exceed a scope's capacity.
	ErrInvalidCapacity = errors.New("invalid capacity")
	// ErrInvalidState is a mutation not allowed in the session's status.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput is a malformed request (bad scope, negative value, ...).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNetwork is a transient transport failure seen by a client.
	ErrNetwork = errors.New("network failure")
)

// NewAppError builds an AppError wrapping cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NotFoundf returns an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return NewAppError("NOT_FOUND", fmt.Sprintf(format, args...), ErrNotFound)
}

// Forbiddenf returns an ErrForbidden with a formatted message.
func Forbiddenf(format string, args ...any) error {
	return NewAppError("FORBIDDEN", fmt.Sprintf(format, args...), ErrForbidden)
}

// Capacityf returns an ErrInvalidCapacity with a formatted message.
func Capacityf(format string, args ...any) error {
	return NewAppError("INVALID_CAPACITY", fmt.Sprintf(format, args...), ErrInvalidCapacity)
}

// Statef returns an ErrInvalidState with a formatted message.
func Statef(format string, args ...any) error {
	return NewAppError("INVALID_STATE", fmt.Sprintf(format, args...), ErrInvalidState)
}

// Invalidf returns an ErrInvalidInput with a formatted message.
func Invalidf(format string, args ...any) error {
	return NewAppError("INVALID_INPUT", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// IsTerminal reports whether err must be surfaced to the user without retry.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
