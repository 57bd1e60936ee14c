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

// Package chttp provides a minimal HTTP transport for communicating with
// CouchDB and Cloudant servers.
package chttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"

	"github.com/go-kivik/cloudant/internal"
)

const typeJSON = "application/json"

// The default User-Agent product and version.
const (
	Product = "cloudant-go"
	Version = "0.1.0"
)

// UserAgent formats a User-Agent header value for product and version,
// including the Go runtime and platform.
func UserAgent(product, version string) string {
	return fmt.Sprintf("%s/%s (Language=%s; Platform=%s/%s)",
		product, version, runtime.Version(), runtime.GOARCH, runtime.GOOS)
}

// Client represents a client connection. It embeds an *http.Client
type Client struct {
	*http.Client

	rawDSN    string
	dsn       *url.URL
	basePath  string
	userAgent string
	auth      *credentials
}

// New returns a connection to a remote CouchDB server. If credentials are
// included in the URL, requests are authenticated with HTTP Basic Auth,
// unless OptionBasicAuth is also passed, which takes precedence.
//
// client is copied, so installing authentication never alters the caller's
// transport. A nil client is equivalent to an empty one.
func New(client *http.Client, dsn string, opts ...Option) (*Client, error) {
	dsnURL, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}
	hc := *client
	user := dsnURL.User
	dsnURL.User = nil
	c := &Client{
		Client:    &hc,
		dsn:       dsnURL,
		basePath:  strings.TrimSuffix(dsnURL.Path, "/"),
		rawDSN:    dsn,
		userAgent: UserAgent(Product, Version),
	}
	if user != nil {
		password, _ := user.Password()
		c.auth = &credentials{user: user.Username(), password: password}
	}
	for _, opt := range opts {
		opt.Apply(c)
	}
	c.installAuth()
	return c, nil
}

func parseDSN(dsn string) (*url.URL, error) {
	if dsn == "" {
		return nil, &internal.Error{Status: http.StatusBadRequest, Err: errors.New("no URL specified")}
	}
	if !strings.HasPrefix(dsn, "http://") && !strings.HasPrefix(dsn, "https://") {
		dsn = "http://" + dsn
	}
	dsnURL, err := url.Parse(dsn)
	if err != nil {
		return nil, &internal.Error{Status: http.StatusBadRequest, Err: err}
	}
	if dsnURL.Path == "" {
		dsnURL.Path = "/"
	}
	return dsnURL, nil
}

// DSN returns the unparsed DSN used to connect.
func (c *Client) DSN() string {
	return c.rawDSN
}

// URL returns the server URL, without credentials.
func (c *Client) URL() *url.URL {
	u := *c.dsn
	return &u
}

// UserAgentHeader returns the User-Agent header value sent on every request.
func (c *Client) UserAgentHeader() string {
	return c.userAgent
}

// DecodeJSON unmarshals the response body into i. This method consumes and
// closes the response body.
func DecodeJSON(r *http.Response, i interface{}) error {
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(i); err != nil {
		return &internal.Error{Status: http.StatusBadGateway, Err: err}
	}
	return nil
}

// DoJSON combines [Client.DoReq], [ResponseError], and [DecodeJSON], and
// closes the response body.
func (c *Client) DoJSON(ctx context.Context, method, path string, opts *Options, i interface{}) error {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return err
	}
	if res.Body != nil {
		defer closeBody(res.Body)
	}
	if err = ResponseError(res); err != nil {
		return err
	}
	return DecodeJSON(res, i)
}

func (c *Client) path(path string) string {
	if c.basePath != "" {
		return c.basePath + "/" + strings.TrimPrefix(path, "/")
	}
	return path
}

// NewRequest returns a new *http.Request to the CouchDB server, and the
// specified path. The host, schema, etc, of the specified path are ignored.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	reqPath, err := url.Parse(c.path(path))
	if err != nil {
		return nil, &internal.Error{Status: http.StatusBadRequest, Err: err}
	}
	u := *c.dsn // Make a copy
	u.Path = reqPath.Path
	u.RawQuery = reqPath.RawQuery
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &internal.Error{Status: http.StatusBadRequest, Err: err}
	}
	req.Header.Add("User-Agent", c.userAgent)
	return req, nil
}

// DoReq does an HTTP request. An error is returned only if there was an error
// processing the request. In particular, an error status code, such as 400
// or 500, does _not_ cause an error to be returned.
func (c *Client) DoReq(ctx context.Context, method, path string, opts *Options) (*http.Response, error) {
	if method == "" {
		return nil, errors.New("chttp: method required")
	}
	var body io.Reader
	if opts != nil && opts.Body != nil {
		body = opts.Body
		defer opts.Body.Close() // nolint: errcheck
	}
	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	c.fixPath(req, path)
	setHeaders(req, opts)
	setQuery(req, opts)

	response, err := c.Do(req)
	return response, netError(err)
}

func netError(err error) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		status := internal.HTTPStatus(urlErr.Err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		return &internal.Error{Status: status, Err: err}
	}
	if status := internal.HTTPStatus(err); status != http.StatusInternalServerError {
		return err
	}
	return &internal.Error{Status: http.StatusBadGateway, Err: err}
}

// fixPath sets the request's URL.RawPath so that escaped characters in
// database names, such as %2F, survive.
func (c *Client) fixPath(req *http.Request, path string) {
	parts := strings.SplitN(path, "?", 2) // nolint:gomnd
	req.URL.RawPath = "/" + strings.TrimPrefix(c.path(parts[0]), "/")
}

func setHeaders(req *http.Request, opts *Options) {
	accept := typeJSON
	contentType := typeJSON
	if opts != nil {
		if opts.Accept != "" {
			accept = opts.Accept
		}
		if opts.ContentType != "" {
			contentType = opts.ContentType
		}
		for k, v := range opts.Header {
			if _, ok := req.Header[k]; !ok {
				req.Header[k] = v
			}
		}
	}
	req.Header.Add("Accept", accept)
	req.Header.Add("Content-Type", contentType)
}

func setQuery(req *http.Request, opts *Options) {
	if opts == nil || len(opts.Query) == 0 {
		return
	}
	if req.URL.RawQuery == "" {
		req.URL.RawQuery = opts.Query.Encode()
		return
	}
	req.URL.RawQuery = strings.Join([]string{req.URL.RawQuery, opts.Query.Encode()}, "&")
}

// DoError is the same as DoReq(), followed by checking the response error. This
// method is meant for cases where the only information you need from the
// response is the status code. It unconditionally closes the response body.
func (c *Client) DoError(ctx context.Context, method, path string, opts *Options) (*http.Response, error) {
	res, err := c.DoReq(ctx, method, path, opts)
	if err != nil {
		return res, err
	}
	if res.Body != nil {
		defer closeBody(res.Body)
	}
	err = ResponseError(res)
	return res, err
}

// Stream issues a GET request for path with the given query, and returns the
// response body unread. Any status of 400 or above is returned as an
// *HTTPError, and the body closed. The caller must close the returned body.
func (c *Client) Stream(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	res, err := c.DoReq(ctx, http.MethodGet, path, &Options{Query: query})
	if err != nil {
		return nil, err
	}
	if err := ResponseError(res); err != nil {
		return nil, err
	}
	return res.Body, nil
}

func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
