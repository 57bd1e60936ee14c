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

// Package internal holds types shared between the cloudant packages which are
// not part of the public API.
package internal

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an error which carries an HTTP status.
type Error struct {
	// Status is the HTTP status code associated with this error. Defaults to
	// 500 if unset.
	Status int

	// Message is a textual description of the error, prepended to Err.
	Message string

	// Err is the underlying error, if any.
	Err error
}

var _ interface {
	error
	fmt.Formatter
	HTTPStatus() int
} = (*Error)(nil)

func (e *Error) Error() string {
	if e.Err == nil {
		return e.msg()
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) msg() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.HTTPStatus())
}

// HTTPStatus returns the HTTP status code associated with the error, or 500
// if none is set.
func (e *Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Format implements fmt.Formatter. The %+v verb includes the HTTP status.
func (e *Error) Format(f fmt.State, c rune) {
	const partsLen = 3
	parts := make([]string, 0, partsLen)
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if c == 'v' && f.Flag('+') {
		parts = append(parts, fmt.Sprintf("%d / %s", e.HTTPStatus(), http.StatusText(e.HTTPStatus())))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		parts = append(parts, e.msg())
	}
	for i, part := range parts {
		if i > 0 {
			_, _ = fmt.Fprint(f, ": ")
		}
		_, _ = fmt.Fprint(f, part)
	}
}

// HTTPStatus returns the HTTP status code embedded in err, if any. A nil
// error yields 0, and an error without a status yields 500.
func HTTPStatus(err error) int {
	if err == nil {
		return 0
	}
	var coder interface {
		HTTPStatus() int
	}
	if errors.As(err, &coder) {
		return coder.HTTPStatus()
	}
	return http.StatusInternalServerError
}
