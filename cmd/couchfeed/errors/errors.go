// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

// Package errors maps feed and transport failures to process exit codes.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Exit status codes
//
// See https://man.openbsd.org/sysexits.3
const (
	// ErrUsage indicates an incorrect command, option, or unparseable
	// configuration or command line options.
	ErrUsage = 2
	// ErrUnknown indicates that the server responded with an unexpected HTTP
	// status above 500.
	ErrUnknown = 3
	// ErrInternalServerError indicates that the server responded with a 500
	// error.
	ErrInternalServerError = 4

	// ErrBadRequest indicates that the server responded with a 400 error, or
	// that a feed option was rejected before any request was made.
	ErrBadRequest = 10
	// ErrUnauthorized indicates that the server responded with a 401 error.
	ErrUnauthorized = 11
	// ErrForbidden indicates that the server responded with a 403 error.
	ErrForbidden = 13
	// ErrNotFound indicates that the server responded with a 404 error.
	ErrNotFound = 14

	// ErrData indicates an invalid configuration file.
	ErrData = 65
	// ErrUnavailable indicates that the server could not be reached, such as
	// a connection refused.
	ErrUnavailable = 69
	// ErrIO indicates an I/O error while writing output.
	ErrIO = 74
	// ErrProtocol indicates a protocol error, such as a feed which could not
	// be read to completion.
	ErrProtocol = 76
)

type statusErr struct {
	error
	code int
}

func (e *statusErr) Unwrap() error {
	return e.error
}

func (e *statusErr) ExitStatus() int {
	return e.code
}

// WithCode wraps err with an exit code.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &statusErr{
		error: err,
		code:  code,
	}
}

// InspectErrorCode returns the exit code for err, or 0 if none can be
// determined.
func InspectErrorCode(err error) int {
	if err == nil {
		return 0
	}
	exitErr := new(statusErr)
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUnavailable
	}

	jsonSyntax := new(json.SyntaxError)
	if errors.As(err, &jsonSyntax) {
		return ErrProtocol
	}

	var statusErr interface {
		HTTPStatus() int
	}
	if errors.As(err, &statusErr) {
		return fromHTTPStatus(statusErr.HTTPStatus())
	}

	return 0
}

func fromHTTPStatus(status int) int {
	switch {
	case status == http.StatusInternalServerError:
		return ErrInternalServerError
	case status == http.StatusBadGateway:
		return ErrProtocol
	case status == http.StatusServiceUnavailable:
		return ErrUnavailable
	case status >= 400 && status < 500:
		return status - 390 // nolint:gomnd
	default:
		return ErrUnknown
	}
}

// Transient reports whether err is worth retrying: network failures, and
// server-side errors. Client errors, such as rejected options or a missing
// database, are permanent, as is anything already assigned an exit code.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	exitErr := new(statusErr)
	if errors.As(err, &exitErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var coder interface {
		HTTPStatus() int
	}
	if !errors.As(err, &coder) {
		return true
	}
	switch status := coder.HTTPStatus(); {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	}
	return false
}

// Code returns a new error with an error code. If err is an existing error, it
// is wrapped with the error code. All other values are passed to fmt.Sprint.
//
// If err is a single nil value, nil is returned.
func Code(code int, err ...interface{}) error {
	if len(err) == 1 {
		if err[0] == nil {
			return nil
		}
		if e, ok := err[0].(error); ok {
			return &statusErr{
				error: e,
				code:  code,
			}
		}
	}
	return &statusErr{
		error: errors.New(fmt.Sprint(err...)),
		code:  code,
	}
}

// Codef wraps the output of fmt.Errorf with a code.
func Codef(code int, format string, args ...interface{}) error {
	return &statusErr{
		error: fmt.Errorf(format, args...),
		code:  code,
	}
}

// As calls errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is calls errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
