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

// Package cmd implements the couchfeed commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-kivik/cloudant"
	"github.com/go-kivik/cloudant/chttp"
	"github.com/go-kivik/cloudant/cmd/couchfeed/config"
	"github.com/go-kivik/cloudant/cmd/couchfeed/errors"
	"github.com/go-kivik/cloudant/cmd/couchfeed/log"
)

const envPrefix = "COUCHFEED"

const (
	flavorAuto     = "auto"
	flavorCloudant = "cloudant"
	flavorCouchDB  = "couchdb"
)

type root struct {
	log  log.Logger
	conf *config.Config
	cmd  *cobra.Command
	v    *viper.Viper

	parsedConnectTimeout time.Duration
	stringOptions        map[string]string
	options              map[string]interface{}
	flavor               string

	// retry attempts
	retryCount         int
	retryDelay         string
	retryDelayParsed   time.Duration
	retryTimeoutParsed time.Duration

	// resolveHome is used to resolve ~ in the default config file path
	resolveHome func(string) string
}

// Execute runs the command line, returning the process exit status.
func Execute(ctx context.Context) int {
	lg := log.New()
	root := rootCmd(lg)
	return root.execute(ctx)
}

func (r *root) execute(ctx context.Context) int {
	err := r.cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	r.log.Error(err)
	return extractExitCode(err)
}

func extractExitCode(err error) int {
	if code := errors.InspectErrorCode(err); code != 0 {
		return code
	}

	// Any unhandled errors are assumed to be from Cobra, so return a "failed
	// to initialize" error
	return errors.ErrUsage
}

func resolveHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	return filepath.Join(usr.HomeDir, path[2:])
}

func rootCmd(lg log.Logger) *root {
	r := &root{
		log:         lg,
		conf:        config.New(),
		resolveHome: resolveHome,
		v:           viper.New(),
	}
	r.v.SetEnvPrefix(envPrefix)
	r.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	r.v.AutomaticEnv()

	r.cmd = &cobra.Command{
		Use:               "couchfeed",
		Short:             "couchfeed follows CouchDB and Cloudant change feeds",
		Long:              `couchfeed reads _changes and _db_updates feeds, printing one JSON line per event.`,
		PersistentPreRunE: r.init,
		SilenceErrors:     true,
	}

	pf := r.cmd.PersistentFlags()
	pf.String("config", "~/.couchfeed/config", "Path to config file of server contexts")
	pf.Bool("debug", false, "Enable debug output")
	pf.Int("retry", 0, "In case of transient error, resume the feed up to this many times. A negative value retries forever.")
	pf.String("retry-delay", "", "Delay between retry attempts. Disables the default exponential backoff algorithm.")
	pf.String("retry-timeout", "", "When used with --retry, no more retries will be attempted after this timeout.")
	pf.String("connect-timeout", "", "Limits the time spent establishing a TCP connection.")
	pf.String("flavor", "", "Server flavor: auto, cloudant or couchdb. Defaults to the context's flavor, or auto.")
	pf.StringToStringVarP(&r.stringOptions, "option", "O", nil, "Feed option, specified as key=value. May be repeated.")

	r.cmd.AddCommand(followCmd(r))
	r.cmd.AddCommand(versionCmd(r))

	return r
}

func parseDuration(val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	if d, err := strconv.ParseFloat(val, 64); err == nil {
		if d < 0 {
			return 0, errors.Code(errors.ErrUsage, "negative timeout not permitted")
		}
		return time.Duration(d * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.Code(errors.ErrUsage, err)
	}
	if d < 0 {
		return 0, errors.Code(errors.ErrUsage, "negative timeout not permitted")
	}
	return d, nil
}

// isDSN reports whether a positional argument names a server, rather than a
// database.
func isDSN(arg string) bool {
	return strings.Contains(arg, "://")
}

// parseOptionValue converts a command line option value to the type the
// feed expects: JSON arrays and objects are decoded, integers and booleans
// converted, and anything else is passed through as a string.
func parseOptionValue(val string) interface{} {
	if strings.HasPrefix(val, "[") || strings.HasPrefix(val, "{") {
		var v interface{}
		if err := json.Unmarshal([]byte(val), &v); err == nil {
			return v
		}
	}
	if i, err := strconv.Atoi(val); err == nil {
		return i
	}
	switch val {
	case "true":
		return true
	case "false":
		return false
	}
	return val
}

func (r *root) init(cmd *cobra.Command, args []string) error {
	// The command line parsed, so usage is no help for any later failure.
	r.cmd.SilenceUsage = true
	r.log.SetErr(cmd.ErrOrStderr())
	if err := r.v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Code(errors.ErrUsage, err)
	}
	r.log.SetDebug(r.v.GetBool("debug"))

	r.log.Debug("Debug mode enabled")

	var err error
	r.parsedConnectTimeout, err = parseDuration(r.v.GetString("connect-timeout"))
	if err != nil {
		return err
	}
	r.retryDelay = r.v.GetString("retry-delay")
	r.retryDelayParsed, err = parseDuration(r.retryDelay)
	if err != nil {
		return err
	}
	r.retryTimeoutParsed, err = parseDuration(r.v.GetString("retry-timeout"))
	if err != nil {
		return err
	}
	r.retryCount = r.v.GetInt("retry")

	switch r.flavor = r.v.GetString("flavor"); r.flavor {
	case "", flavorAuto, flavorCloudant, flavorCouchDB:
	default:
		return errors.Codef(errors.ErrUsage, "invalid flavor %q, must be one of auto, cloudant, couchdb", r.flavor)
	}

	if err := r.conf.Read(r.resolveHome(r.v.GetString("config")), r.v.GetString("dsn"), r.log); err != nil {
		return err
	}

	r.options = map[string]interface{}{}
	if len(args) > 0 && isDSN(args[0]) {
		opts, err := r.conf.SetURL(args[0])
		if err != nil {
			return err
		}
		for k, v := range opts {
			r.options[k] = parseOptionValue(v)
		}
	}
	for k, v := range r.stringOptions {
		r.options[k] = parseOptionValue(v)
	}

	if len(r.options) > 0 {
		r.log.Debugf("feed options: %v", r.options)
	}

	return nil
}

// flavorName returns the flavor selected by flag, or by the context.
func (r *root) flavorName(cx *config.Context) string {
	if r.flavor != "" {
		return r.flavor
	}
	if cx.Flavor != "" {
		return cx.Flavor
	}
	return flavorAuto
}

func (r *root) client(cx *config.Context, options ...cloudant.Option) (*cloudant.Client, error) {
	dsn, err := cx.ServerDSN()
	if err != nil {
		return nil, err
	}
	r.log.Debugf("DSN: %s", cx)
	opts := []cloudant.Option{
		cloudant.OptionHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: r.parsedConnectTimeout,
				}).DialContext,
			},
		}),
		cloudant.OptionUserAgent(chttp.UserAgent("couchfeed", cloudant.Version)),
		cloudant.OptionLogger(r.log.FieldLogger()),
	}
	if r.flavorName(cx) == flavorCouchDB {
		opts = append(opts, cloudant.OptionFlavor(cloudant.FlavorCouchDB))
	}
	client, err := cloudant.New(dsn, append(opts, options...)...)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrUsage)
	}
	return client, nil
}

// retry calls fn until it succeeds, returns a permanent error, or the retry
// budget is exhausted.
func (r *root) retry(ctx context.Context, fn func() error) error {
	if r.retryCount == 0 {
		return fn()
	}
	var bo backoff.BackOff
	switch {
	case r.retryDelayParsed == 0 && r.retryDelay != "": // Disables retry delay
		bo = &backoff.ZeroBackOff{}
	case r.retryDelayParsed != 0:
		bo = backoff.NewConstantBackOff(r.retryDelayParsed)
	default:
		bo = backoff.NewExponentialBackOff()
	}
	if r.retryCount > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(r.retryCount))
	}
	if r.retryTimeoutParsed > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.retryTimeoutParsed)
		defer cancel()
	}
	bo = backoff.WithContext(bo, ctx)

	var count int
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !errors.Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, next time.Duration) {
		count++
		msg := fmt.Sprintf("Warning: Transient problem: %s. Will retry in %s.", err, fmtDuration(next))
		if remain := r.retryCount - count; r.retryCount > 0 {
			msg += fmt.Sprintf(" %d retries left.", remain)
		}
		r.log.Info(msg)
	})
}

// nolint:gomnd
func fmtDuration(dur time.Duration) string {
	s := dur.Seconds()
	if s < 60 {
		return fmt.Sprintf("%0.2fs", s)
	}
	m := int(s / 60)
	s -= float64(m) * 60
	if m < 60 {
		return fmt.Sprintf("%dm%ds", m, int(s))
	}
	h := m / 60
	m -= h * 60
	if h < 24 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	d := h / 24
	h -= d * 24
	return fmt.Sprintf("%dd%dh%dm", d, h, m)
}
