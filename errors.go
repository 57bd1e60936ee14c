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

package cloudant

import (
	"net/http"

	"github.com/go-kivik/cloudant/internal"
)

// Error represents an error returned by this package, or by the server. Use
// [HTTPStatus] to read the status of any error.
type Error = internal.Error

// ErrClientClosed is returned by any operation started after [Client.Close].
var ErrClientClosed = &Error{Status: http.StatusServiceUnavailable, Message: "cloudant: client closed"}

// HTTPStatus returns the HTTP status code embedded in the error, or 500
// (internal server error), if there was no specified status code.  If err is
// nil, HTTPStatus returns 0. This provides a convenient way to determine the
// status code embedded in an error.
func HTTPStatus(err error) int {
	return internal.HTTPStatus(err)
}

// ErrNotFound returns true if the error is the result of an HTTP 404/Not Found
// response.
func ErrNotFound(err error) bool {
	return HTTPStatus(err) == http.StatusNotFound
}
