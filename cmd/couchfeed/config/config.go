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

// Package config reads the couchfeed configuration file of named server
// contexts.
package config

import (
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/go-kivik/cloudant/cmd/couchfeed/errors"
	"github.com/go-kivik/cloudant/cmd/couchfeed/log"
)

// Config is the full app configuration file.
type Config struct {
	Contexts       map[string]*Context `yaml:"contexts" validate:"dive,required"`
	CurrentContext string              `yaml:"current-context"`
	log            log.Logger
}

// Context represents a complete, or partial CouchDB DSN context.
type Context struct {
	Scheme   string `yaml:"scheme" validate:"omitempty,oneof=http https"`
	Host     string `yaml:"host" validate:"required"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Flavor   string `yaml:"flavor" validate:"omitempty,oneof=auto cloudant couchdb"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Context) String() string {
	dsn := c.dsn()
	if dsn.User != nil {
		dsn.User = url.User(dsn.User.Username())
	}
	return dsn.String()
}

func (c *Context) dsn() *url.URL {
	var user *url.Userinfo
	if c.User != "" || c.Password != "" {
		user = url.UserPassword(c.User, c.Password)
	}
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{
		Scheme: scheme,
		Host:   c.Host,
		User:   user,
		Path:   "/",
	}
	if c.Database != "" {
		u.Path = "/" + c.Database
	}
	return u
}

// DSN returns the full DSN of the context, including any database.
func (c *Context) DSN() string {
	return c.dsn().String()
}

// ServerDSN returns just the server DSN, with no database.
func (c *Context) ServerDSN() (string, error) {
	if c.Host == "" {
		return "", errors.Code(errors.ErrUsage, "server hostname required")
	}
	dsn := c.dsn()
	dsn.Path = "/"
	return dsn.String(), nil
}

// UnmarshalYAML handles parsing of a Context from YAML input. A context may
// be given either as a single dsn key, or as its separate fields.
func (c *Context) UnmarshalYAML(v *yaml.Node) error {
	dsn := struct {
		DSN    string `yaml:"dsn"`
		Flavor string `yaml:"flavor"`
	}{}
	if err := v.Decode(&dsn); err != nil {
		return err
	}
	if dsn.DSN == "" {
		type alias Context
		intl := alias{}
		err := v.Decode(&intl)
		*c = Context(intl)
		return err
	}
	cx, _, err := ContextFromDSN(dsn.DSN)
	if err != nil {
		return err
	}
	cx.Flavor = dsn.Flavor
	*c = *cx
	return nil
}

// New returns an empty configuration object. Call Read() to populate it.
func New() *Config {
	return &Config{
		Contexts: make(map[string]*Context),
	}
}

// Read populates c with app configuration found in filename, which may be
// empty or missing. If envDSN is non-empty, it's added as a context called
// '*' and made current.
func (c *Config) Read(filename, envDSN string, lg log.Logger) error {
	c.log = lg
	if err := c.readYAML(filename); err != nil {
		return errors.WithCode(err, errors.ErrData)
	}
	if err := validate.Struct(c); err != nil {
		return errors.Codef(errors.ErrData, "invalid config file %q: %w", filename, err)
	}
	if envDSN != "" {
		if _, err := c.SetURL(envDSN); err != nil {
			return err
		}
		lg.Debug("set default DSN from environment")
	}
	return nil
}

func (c *Config) readYAML(filename string) error {
	if filename == "" {
		c.log.Debug("no config file specified")
		return nil
	}
	f, err := os.Open(filename)
	if err != nil {
		c.log.Debugf("failed to read config: %s", err)
		if os.IsNotExist(err) {
			err = nil
		}
		return err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		c.log.Debugf("YAML parse error: %s", err)
		return err
	}
	c.log.Debugf("successfully read config file %q", filename)
	return nil
}

// CurrentCx returns the current context.
func (c *Config) CurrentCx() (*Context, error) {
	if c.CurrentContext == "" {
		if len(c.Contexts) == 1 {
			for _, cx := range c.Contexts {
				return cx, nil
			}
		}
		return nil, errors.Code(errors.ErrUsage, "no context specified")
	}
	cx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, errors.Codef(errors.ErrUsage, "context %q not found", c.CurrentContext)
	}
	return cx, nil
}

// ContextFromDSN parses a DSN into a context object, and a map of feed
// parameters read from the url query parameters.
func ContextFromDSN(dsn string) (*Context, map[string]string, error) {
	uri, err := url.Parse(dsn)
	if err != nil {
		return nil, nil, errors.WithCode(err, errors.ErrUsage)
	}
	var user, password string
	if u := uri.User; u != nil {
		user = u.Username()
		password, _ = u.Password()
	}
	cx := &Context{
		Scheme:   uri.Scheme,
		Host:     uri.Host,
		User:     user,
		Password: password,
		Database: strings.Trim(uri.Path, "/"),
	}
	if err := validate.Struct(cx); err != nil {
		return nil, nil, errors.Codef(errors.ErrUsage, "invalid DSN %q: %w", dsn, err)
	}
	return cx, query2options(uri.Query()), nil
}

// SetURL sets the current context based on a DSN passed on the command line,
// or in the environment. The returned map holds any query parameters of the
// DSN.
func (c *Config) SetURL(dsn string) (map[string]string, error) {
	if dsn == "" {
		return nil, nil
	}
	cx, opts, err := ContextFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if curCx, _ := c.CurrentCx(); curCx != nil && cx.Flavor == "" {
		cx.Flavor = curCx.Flavor
	}
	c.Contexts["*"] = cx
	c.CurrentContext = "*"
	return opts, nil
}

func query2options(q url.Values) map[string]string {
	opts := make(map[string]string, len(q))
	for k := range q {
		opts[k] = q.Get(k)
	}
	return opts
}
