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
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/go-kivik/cloudant/chttp"
	"github.com/go-kivik/cloudant/feed"
)

// Option configures a Client or a Feed. Each option applies only to the
// targets it recognizes, and is silently ignored by others.
type Option interface {
	Apply(target interface{})
}

type allOptions []Option

var _ Option = (allOptions)(nil)

func (o allOptions) Apply(t interface{}) {
	for _, opt := range o {
		if opt != nil {
			opt.Apply(t)
		}
	}
}

// Params is a collection of feed query parameters, such as "since" or
// "include_docs". Values are validated when the feed starts.
type Params map[string]interface{}

var _ Option = Params(nil)

// Apply applies p to target. The following target types are supported:
//
//   - *feed.Config
//   - map[string]interface{}
func (p Params) Apply(target interface{}) {
	switch t := target.(type) {
	case *feed.Config:
		if t.Options == nil {
			t.Options = feed.Options{}
		}
		for k, v := range p {
			t.Options[k] = v
		}
	case map[string]interface{}:
		for k, v := range p {
			t[k] = v
		}
	}
}

func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%v", k, p[k])
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Param returns an option which sets a single feed query parameter.
func Param(key string, value interface{}) Option {
	return Params{key: value}
}

// clientConfig collects the options passed to New.
type clientConfig struct {
	httpClient  *http.Client
	transport   []chttp.Option
	flavor      Flavor
	dbCacheSize int
	feedDefault feed.Config
}

type optionHTTPClient struct {
	*http.Client
}

func (o optionHTTPClient) Apply(target interface{}) {
	if cfg, ok := target.(*clientConfig); ok {
		cfg.httpClient = o.Client
	}
}

func (optionHTTPClient) String() string { return "[HTTPClient]" }

// OptionHTTPClient sets the HTTP client used for all requests. The client is
// copied; authentication never modifies it.
func OptionHTTPClient(client *http.Client) Option {
	return optionHTTPClient{Client: client}
}

type optionUserAgent string

func (a optionUserAgent) Apply(target interface{}) {
	if cfg, ok := target.(*clientConfig); ok {
		cfg.transport = append(cfg.transport, chttp.OptionUserAgent(string(a)))
	}
}

func (a optionUserAgent) String() string {
	return fmt.Sprintf("[UserAgent:%s]", string(a))
}

// OptionUserAgent sets the User-Agent header sent on every request. The value
// is used verbatim; see [chttp.UserAgent] to build one.
func OptionUserAgent(ua string) Option {
	return optionUserAgent(ua)
}

type basicAuth struct {
	username, password string
}

func (a basicAuth) Apply(target interface{}) {
	if cfg, ok := target.(*clientConfig); ok {
		cfg.transport = append(cfg.transport, chttp.OptionBasicAuth(a.username, a.password))
	}
}

func (a basicAuth) String() string {
	return fmt.Sprintf("[BasicAuth{user:%s,pass:%s}]", a.username, strings.Repeat("*", len(a.password)))
}

// BasicAuth authenticates every request with HTTP Basic Auth. It takes
// precedence over credentials embedded in the DSN.
func BasicAuth(username, password string) Option {
	return basicAuth{username: username, password: password}
}

type optionFlavor Flavor

func (f optionFlavor) Apply(target interface{}) {
	if cfg, ok := target.(*clientConfig); ok {
		cfg.flavor = Flavor(f)
	}
}

func (f optionFlavor) String() string {
	return fmt.Sprintf("[Flavor:%s]", Flavor(f))
}

// OptionFlavor sets the server flavor, which selects the _db_updates option
// set. The default is FlavorCloudant.
func OptionFlavor(f Flavor) Option {
	return optionFlavor(f)
}

type optionDBCacheSize int

func (s optionDBCacheSize) Apply(target interface{}) {
	if cfg, ok := target.(*clientConfig); ok {
		cfg.dbCacheSize = int(s)
	}
}

func (s optionDBCacheSize) String() string {
	return fmt.Sprintf("[DBCacheSize:%d]", int(s))
}

// OptionDBCacheSize sets the number of database handles retained by
// [Client.DB]. A size of zero or less retains all of them.
func OptionDBCacheSize(size int) Option {
	return optionDBCacheSize(size)
}

type optionRawData struct{}

func (optionRawData) Apply(target interface{}) {
	if cfg, ok := target.(*feed.Config); ok {
		cfg.Raw = true
	}
}

func (optionRawData) String() string { return "[RawData]" }

// OptionRawData returns every line of a feed undecoded, including
// heartbeats and framing. It is ignored by infinite feeds.
func OptionRawData() Option {
	return optionRawData{}
}

type optionChunkSize int

func (s optionChunkSize) Apply(target interface{}) {
	if cfg, ok := target.(*feed.Config); ok {
		cfg.ChunkSize = int(s)
	}
}

func (s optionChunkSize) String() string {
	return fmt.Sprintf("[ChunkSize:%d]", int(s))
}

// OptionChunkSize sets the read buffer size for feed responses. The default
// is [feed.DefaultChunkSize].
func OptionChunkSize(size int) Option {
	return optionChunkSize(size)
}

type optionLogger struct {
	logrus.FieldLogger
}

func (o optionLogger) Apply(target interface{}) {
	switch t := target.(type) {
	case *feed.Config:
		t.Logger = o.FieldLogger
	case *clientConfig:
		t.feedDefault.Logger = o.FieldLogger
	}
}

func (optionLogger) String() string { return "[Logger]" }

// OptionLogger sets the logger which receives feed debug output. Passed to
// New, it becomes the default for every feed of the client.
func OptionLogger(l logrus.FieldLogger) Option {
	return optionLogger{FieldLogger: l}
}

type optionMetrics struct {
	*feed.Metrics
}

func (o optionMetrics) Apply(target interface{}) {
	switch t := target.(type) {
	case *feed.Config:
		t.Metrics = o.Metrics
	case *clientConfig:
		t.feedDefault.Metrics = o.Metrics
	}
}

func (optionMetrics) String() string { return "[Metrics]" }

// OptionMetrics sets the collectors which receive feed statistics. Passed to
// New, it becomes the default for every feed of the client.
func OptionMetrics(m *feed.Metrics) Option {
	return optionMetrics{Metrics: m}
}
