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
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// fakeServer is a minimal CouchDB stand-in, recording the query of every
// feed request it serves.
type fakeServer struct {
	*httptest.Server

	mu      sync.Mutex
	queries []url.Values
}

func (s *fakeServer) record(r *http.Request) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, r.URL.Query())
	return len(s.queries) - 1
}

func (s *fakeServer) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// feedHandler answers the nth feed request with the nth body; further
// requests get the last body again.
func (s *fakeServer) feedHandler(bodies ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := s.record(r)
		if n >= len(bodies) {
			n = len(bodies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, bodies[n])
	}
}

func jsonError(w http.ResponseWriter, status int, errID, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"reason":%q}`, errID, reason)
}

func newFakeServer(t *testing.T, routes func(*fakeServer, chi.Router)) *fakeServer {
	t.Helper()
	s := &fakeServer{}
	r := chi.NewRouter()
	routes(s, r)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, s *fakeServer, options ...Option) *Client {
	t.Helper()
	c, err := New(s.URL, options...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}
