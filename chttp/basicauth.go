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
	"strings"
)

// credentials is the HTTP Basic Auth identity sent with every request.
type credentials struct {
	user     string
	password string
}

var _ Option = credentials{}

func (c credentials) Apply(target interface{}) {
	if client, ok := target.(*Client); ok {
		client.auth = &c
	}
}

func (c credentials) String() string {
	return fmt.Sprintf("[BasicAuth{user:%s,pass:%s}]", c.user, strings.Repeat("*", len(c.password)))
}

// authTransport adds credentials to requests before passing them on.
type authTransport struct {
	credentials
	next http.RoundTripper
}

// RoundTrip satisfies the http.RoundTripper interface. The caller's request
// is cloned rather than modified.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.user, t.password)
	return t.next.RoundTrip(req)
}

// installAuth wraps the client's transport with its credentials, if any.
func (c *Client) installAuth() {
	if c.auth == nil {
		return
	}
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c.Transport = &authTransport{credentials: *c.auth, next: next}
}

// OptionBasicAuth authenticates every request with HTTP Basic Auth,
// overriding any credentials in the DSN.
func OptionBasicAuth(username, password string) Option {
	return credentials{user: username, password: password}
}
