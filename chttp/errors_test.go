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
	"fmt"
	"net/http"
	"testing"

	"gitlab.com/flimzy/testy"

	"github.com/go-kivik/cloudant/internal"
)

func TestHTTPErrorError(t *testing.T) {
	type tst struct {
		status  int
		errorID string
		reason  string
		detail  string
		want    string
	}
	tests := testy.NewTable()
	tests.Add("status only", tst{
		status: http.StatusBadRequest,
		want:   "Bad Request",
	})
	tests.Add("reason only", tst{
		status: http.StatusBadRequest,
		reason: "Bad stuff",
		detail: "Bad stuff",
		want:   "Bad Request: Bad stuff",
	})
	tests.Add("error id and reason", tst{
		status:  http.StatusNotFound,
		errorID: "not_found",
		reason:  "Database does not exist.",
		detail:  "not_found Database does not exist.",
		want:    "Not Found: not_found Database does not exist.",
	})
	tests.Add("error id only", tst{
		status:  http.StatusUnauthorized,
		errorID: "unauthorized",
		detail:  "unauthorized",
		want:    "Unauthorized: unauthorized",
	})
	tests.Add("unknown status with error id", tst{
		status:  604,
		errorID: "odd",
		reason:  "Bad stuff",
		detail:  "odd Bad stuff",
		want:    "odd Bad stuff",
	})
	tests.Add("unknown status without detail", tst{
		status: 604,
		want:   "",
	})

	tests.Run(t, func(t *testing.T, tt tst) {
		err := &HTTPError{
			Response: &http.Response{StatusCode: tt.status},
			ErrorID:  tt.errorID,
			Reason:   tt.reason,
		}
		if got := err.detail(); got != tt.detail {
			t.Errorf("Unexpected detail: %q", got)
		}
		if got := err.Error(); got != tt.want {
			t.Errorf("Unexpected error: %q", got)
		}
		if got := err.HTTPStatus(); got != tt.status {
			t.Errorf("Unexpected status: %d", got)
		}
	})
}

func TestResponseError(t *testing.T) {
	type tst struct {
		resp    *http.Response
		errorID string
		reason  string
		status  int
		err     string
	}
	jsonResponse := func(status int, method, body string) *http.Response {
		return &http.Response{
			StatusCode:    status,
			Header:        http.Header{"Content-Type": {"application/json; charset=utf-8"}},
			ContentLength: int64(len(body)),
			Body:          Body(body),
			Request:       &http.Request{Method: method},
		}
	}
	tests := testy.NewTable()
	tests.Add("success", tst{
		resp: &http.Response{StatusCode: http.StatusOK},
	})
	tests.Add("redirect", tst{
		resp: &http.Response{StatusCode: http.StatusNotModified},
	})
	tests.Add("HEAD", tst{
		resp:   jsonResponse(http.StatusNotFound, http.MethodHead, `{"error":"not_found"}`),
		status: http.StatusNotFound,
		err:    "Not Found",
	})
	tests.Add("error document", tst{
		resp:    jsonResponse(http.StatusNotFound, http.MethodGet, `{"error":"not_found","reason":"Database does not exist."}`),
		errorID: "not_found",
		reason:  "Database does not exist.",
		status:  http.StatusNotFound,
		err:     "Not Found: not_found Database does not exist.",
	})
	tests.Add("error id only", tst{
		resp:    jsonResponse(http.StatusForbidden, http.MethodGet, `{"error":"forbidden"}`),
		errorID: "forbidden",
		status:  http.StatusForbidden,
		err:     "Forbidden: forbidden",
	})
	tests.Add("chunked error document", func(*testing.T) interface{} {
		resp := jsonResponse(http.StatusBadRequest, http.MethodGet, `{"error":"bad_request","reason":"invalid since"}`)
		resp.ContentLength = -1
		return tst{
			resp:    resp,
			errorID: "bad_request",
			reason:  "invalid since",
			status:  http.StatusBadRequest,
			err:     "Bad Request: bad_request invalid since",
		}
	})
	tests.Add("invalid JSON", tst{
		resp:   jsonResponse(http.StatusInternalServerError, http.MethodGet, "invalid json"),
		status: http.StatusInternalServerError,
		err:    "Internal Server Error",
	})
	tests.Add("non-JSON body", tst{
		resp: &http.Response{
			StatusCode:    http.StatusBadGateway,
			Header:        http.Header{"Content-Type": {"text/html"}},
			ContentLength: -1,
			Body:          Body(`{"error":"ignored"}`),
			Request:       &http.Request{Method: http.MethodGet},
		},
		status: http.StatusBadGateway,
		err:    "Bad Gateway",
	})
	tests.Add("no body", tst{
		resp:   &http.Response{StatusCode: http.StatusServiceUnavailable},
		status: http.StatusServiceUnavailable,
		err:    "Service Unavailable",
	})

	tests.Run(t, func(t *testing.T, tt tst) {
		err := ResponseError(tt.resp)
		if httpErr, ok := err.(*HTTPError); ok {
			if httpErr.ErrorID != tt.errorID || httpErr.Reason != tt.reason {
				t.Errorf("Unexpected error document: %q %q", httpErr.ErrorID, httpErr.Reason)
			}
			if httpErr.Response != tt.resp {
				t.Error("Response not retained")
			}
		}
		testy.StatusError(t, tt.err, tt.status, err)
	})
}

func TestHTTPErrorStatusWrapped(t *testing.T) {
	err := ResponseError(&http.Response{StatusCode: http.StatusTooManyRequests})
	wrapped := fmt.Errorf("feed: %w", err)
	if got := internal.HTTPStatus(wrapped); got != http.StatusTooManyRequests {
		t.Errorf("Unexpected status: %d", got)
	}
}
