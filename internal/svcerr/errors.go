// Package svcerr provides the unified error taxonomy for the league.v2
// protocol (spec §7): a structured error carrying the stable error code
// strings the protocol exchanges in LEAGUE_ERROR / GAME_ERROR payloads.
// The error carries no HTTP status; internal/transport maps codes to one.
package svcerr

import (
	"errors"
	"fmt"
)

// Code is one of the stable error code strings from spec.md §6.
type Code string

const (
	CodeTimeout              Code = "TIMEOUT_ERROR"
	CodeInvalidChoice        Code = "INVALID_CHOICE"
	CodeMissingField         Code = "MISSING_REQUIRED_FIELD"
	CodeConnection           Code = "CONNECTION_ERROR"
	CodeAuthTokenMissing     Code = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid     Code = "AUTH_TOKEN_INVALID"
	CodePlayerNotFound       Code = "PLAYER_NOT_FOUND"
	CodeLeagueNotFound       Code = "LEAGUE_NOT_FOUND"
	CodePlayerNotRegistered  Code = "PLAYER_NOT_REGISTERED"
	CodeProtocolError        Code = "PROTOCOL_ERROR"
)

// ServiceError is a structured, wrappable domain error.
type ServiceError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair of contextual detail and returns e.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError.
func New(code Code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// Wrap wraps an existing error with a ServiceError.
func Wrap(code Code, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, Err: err}
}

// As extracts a *ServiceError from an error chain.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Is reports whether err is (or wraps) a ServiceError with the given code.
func Is(err error, code Code) bool {
	se, ok := As(err)
	return ok && se.Code == code
}

func Timeout(op string) *ServiceError {
	return New(CodeTimeout, "operation timed out").WithDetails("operation", op)
}

func MissingField(field string) *ServiceError {
	return New(CodeMissingField, "missing required field").WithDetails("field", field)
}

func Connection(op string, err error) *ServiceError {
	return Wrap(CodeConnection, "connection error", err).WithDetails("operation", op)
}

func AuthTokenMissing() *ServiceError {
	return New(CodeAuthTokenMissing, "auth token missing")
}

func AuthTokenInvalid(reason string) *ServiceError {
	return New(CodeAuthTokenInvalid, "auth token invalid").WithDetails("reason", reason)
}

func PlayerNotFound(id string) *ServiceError {
	return New(CodePlayerNotFound, "player not found").WithDetails("player_id", id)
}

func LeagueNotFound(id string) *ServiceError {
	return New(CodeLeagueNotFound, "league not found").WithDetails("league_id", id)
}

func PlayerNotRegistered(id string) *ServiceError {
	return New(CodePlayerNotRegistered, "player not registered").WithDetails("player_id", id)
}

func InvalidChoice(choice string) *ServiceError {
	return New(CodeInvalidChoice, "invalid parity choice").WithDetails("choice", choice)
}

func Protocol(reason string) *ServiceError {
	return New(CodeProtocolError, "protocol error").WithDetails("reason", reason)
}
