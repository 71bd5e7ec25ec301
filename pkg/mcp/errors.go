// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of provider-client error.
type ErrorCode string

const (
	// ErrorCodeSpawnFailed indicates the subprocess could not be launched.
	ErrorCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	// ErrorCodeHandshakeFailed indicates the initialize exchange failed or timed out.
	ErrorCodeHandshakeFailed ErrorCode = "HANDSHAKE_FAILED"
	// ErrorCodeNotConnected indicates an operation was attempted without a live session.
	ErrorCodeNotConnected ErrorCode = "NOT_CONNECTED"
	// ErrorCodeTimeout indicates a request exceeded its bound.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"
	// ErrorCodeProtocol indicates a malformed or unexpected protocol exchange.
	ErrorCodeProtocol ErrorCode = "PROTOCOL"
)

// Error is a typed provider-client error with a category code.
type Error struct {
	// Code is the error category.
	Code ErrorCode
	// Server is the owning server's identifier.
	Server string
	// Message is the primary error message.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Server != "" {
		msg = fmt.Sprintf("server %s: %s", e.Server, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by category code so callers can write
// errors.Is(err, &Error{Code: ErrorCodeNotConnected}).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == "" || other.Code == e.Code
}

// ErrSpawnFailed creates an error for a subprocess that could not be launched.
func ErrSpawnFailed(server string, cause error) *Error {
	return &Error{
		Code:    ErrorCodeSpawnFailed,
		Server:  server,
		Message: "failed to spawn provider process",
		Cause:   cause,
	}
}

// ErrHandshakeFailed creates an error for a failed initialize exchange.
func ErrHandshakeFailed(server string, cause error) *Error {
	return &Error{
		Code:    ErrorCodeHandshakeFailed,
		Server:  server,
		Message: "initialize handshake failed",
		Cause:   cause,
	}
}

// ErrNotConnected creates an error for an operation on a closed or
// never-connected client.
func ErrNotConnected(server string) *Error {
	return &Error{
		Code:    ErrorCodeNotConnected,
		Server:  server,
		Message: "not connected",
	}
}

// ErrRequestTimeout creates an error for a request that exceeded its bound.
func ErrRequestTimeout(server, operation string, cause error) *Error {
	return &Error{
		Code:    ErrorCodeTimeout,
		Server:  server,
		Message: fmt.Sprintf("%s timed out", operation),
		Cause:   cause,
	}
}

// ErrProtocol creates an error for a malformed protocol exchange.
func ErrProtocol(server string, cause error) *Error {
	return &Error{
		Code:    ErrorCodeProtocol,
		Server:  server,
		Message: "protocol error",
		Cause:   cause,
	}
}

// IsNotConnected reports whether err is a NOT_CONNECTED client error.
func IsNotConnected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrorCodeNotConnected
}
