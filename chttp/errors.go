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

package chttp

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// HTTPError is an error that represents an HTTP transport error.
type HTTPError struct {
	// Response is the HTTP response received by the client.  The response body
	// should already be closed, but the response and request headers and other
	// metadata will typically be in tact for debugging purposes.
	Response *http.Response `json:"-"`

	// ErrorID is the server-supplied error identifier, such as "not_found".
	ErrorID string `json:"error"`

	// Reason is the server-supplied error reason.
	Reason string `json:"reason"`
}

func (e *HTTPError) detail() string {
	switch {
	case e.ErrorID != "" && e.Reason != "":
		return e.ErrorID + " " + e.Reason
	case e.Reason != "":
		return e.Reason
	}
	return e.ErrorID
}

func (e *HTTPError) Error() string {
	detail := e.detail()
	if detail == "" {
		return http.StatusText(e.HTTPStatus())
	}
	if statusText := http.StatusText(e.HTTPStatus()); statusText != "" {
		return fmt.Sprintf("%s: %s", statusText, detail)
	}
	return detail
}

// HTTPStatus returns the embedded status code.
func (e *HTTPError) HTTPStatus() int {
	return e.Response.StatusCode
}

// ResponseError returns an *HTTPError for a response with a status of 400 or
// above, and nil otherwise. The error document in a JSON body, if any, fills
// ErrorID and Reason. The body is closed.
func ResponseError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	if resp.Body != nil {
		defer closeBody(resp.Body)
	}
	httpErr := &HTTPError{Response: resp}
	if hasErrorDocument(resp) {
		_ = json.NewDecoder(resp.Body).Decode(httpErr)
	}
	return httpErr
}

// hasErrorDocument reports whether resp may carry a JSON error document.
func hasErrorDocument(resp *http.Response) bool {
	if resp.Body == nil || resp.ContentLength == 0 {
		return false
	}
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return ct == typeJSON
}
