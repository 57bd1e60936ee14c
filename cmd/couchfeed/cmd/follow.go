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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/go-kivik/cloudant"
	"github.com/go-kivik/cloudant/cmd/couchfeed/config"
	"github.com/go-kivik/cloudant/cmd/couchfeed/errors"
	"github.com/go-kivik/cloudant/feed"
)

type follow struct {
	*root
}

func followCmd(r *root) *cobra.Command {
	c := &follow{
		root: r,
	}
	cmd := &cobra.Command{
		Use:     "follow [dsn] [db...]",
		Aliases: []string{"changes"},
		Short:   "Follow the changes feeds of one or more databases",
		Long: `Follow the _changes feed of each named database concurrently, printing one
JSON line per event. With no database, the server's _db_updates feed is
followed instead.

The DSN may be omitted when provided by the config file, or by the
COUCHFEED_DSN environment variable.`,
		RunE: c.RunE,
	}

	addFeedFlags(cmd.Flags())

	return cmd
}

func addFeedFlags(f *pflag.FlagSet) {
	f.String("feed", "", "Feed mode: normal, longpoll or continuous")
	f.String("since", "", "Start the feed after this update sequence")
	f.Int("limit", 0, "Maximum number of rows to return")
	f.String("heartbeat", "", "Heartbeat interval in milliseconds, or true for the server default")
	f.Int("timeout", 0, "Server-side timeout in milliseconds")
	f.Bool("include-docs", false, "Include the document body with each change")
	f.String("style", "", "Revisions to list: main_only or all_docs")
	f.String("filter", "", "Filter function, as ddoc/name")
	f.Bool("infinite", false, "Reconnect from the last checkpoint whenever the server ends the feed")
	f.Bool("raw", false, "Print feed lines without decoding them")
	f.Int("chunk-size", 0, "Read buffer size in bytes")
	f.String("metrics-addr", "", "Serve Prometheus metrics at /metrics on this address")
}

// feedParams returns the feed options gathered from the command line, with
// dedicated flags taking precedence over -O options.
func (c *follow) feedParams() cloudant.Params {
	params := cloudant.Params{}
	for k, v := range c.options {
		params[k] = v
	}
	for _, flag := range []struct {
		name, key string
		value     func(string) interface{}
	}{
		{"feed", "feed", func(k string) interface{} { return c.v.GetString(k) }},
		{"since", "since", func(k string) interface{} { return c.v.GetString(k) }},
		{"limit", "limit", func(k string) interface{} { return c.v.GetInt(k) }},
		{"heartbeat", "heartbeat", func(k string) interface{} { return parseOptionValue(c.v.GetString(k)) }},
		{"timeout", "timeout", func(k string) interface{} { return c.v.GetInt(k) }},
		{"include-docs", "include_docs", func(k string) interface{} { return c.v.GetBool(k) }},
		{"style", "style", func(k string) interface{} { return c.v.GetString(k) }},
		{"filter", "filter", func(k string) interface{} { return c.v.GetString(k) }},
	} {
		if c.v.IsSet(flag.name) {
			params[flag.key] = flag.value(flag.name)
		}
	}
	return params
}

func (c *follow) RunE(cmd *cobra.Command, args []string) error {
	dbs := args
	if len(dbs) > 0 && isDSN(dbs[0]) {
		dbs = dbs[1:]
	}
	cx, err := c.conf.CurrentCx()
	if err != nil {
		return err
	}
	if len(dbs) == 0 && cx.Database != "" {
		dbs = []string{cx.Database}
	}

	reg := prometheus.NewRegistry()
	client, err := c.client(cx, cloudant.OptionMetrics(feed.NewMetrics(reg)))
	if err != nil {
		return err
	}
	defer client.Close() // nolint:errcheck

	ctx := cmd.Context()
	if len(dbs) == 0 {
		if err := c.resolveFlavor(ctx, cx, client); err != nil {
			return err
		}
	}

	if addr := c.v.GetString("metrics-addr"); addr != "" {
		_, stop, err := c.serveMetrics(addr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	out := newLineWriter(cmd.OutOrStdout())
	params := c.feedParams()
	g, ctx := errgroup.WithContext(ctx)
	if len(dbs) == 0 {
		g.Go(func() error {
			return c.followFeed(ctx, client, "", params, out)
		})
	}
	for _, db := range dbs {
		db := db
		g.Go(func() error {
			return c.followFeed(ctx, client, db, params, out)
		})
	}
	return g.Wait()
}

// resolveFlavor asks the server for its flavor, when not set explicitly.
func (c *follow) resolveFlavor(ctx context.Context, cx *config.Context, client *cloudant.Client) error {
	if c.flavorName(cx) != flavorAuto {
		return nil
	}
	return c.retry(ctx, func() error {
		flavor, err := client.DetectFlavor(ctx)
		if err != nil {
			return err
		}
		c.log.Debugf("detected server flavor: %s", flavor)
		return nil
	})
}

// followFeed reads a single feed to its end, resuming after transient
// failures from the last sequence seen. db is empty for _db_updates.
func (c *follow) followFeed(ctx context.Context, client *cloudant.Client, db string, params cloudant.Params, out *lineWriter) error {
	name := db
	if name == "" {
		name = "_db_updates"
	}
	// The single-tenant CouchDB _db_updates feed knows nothing of sequences,
	// and takes heartbeat as a boolean.
	legacy := db == "" && client.Flavor() == cloudant.FlavorCouchDB

	var opts []cloudant.Option
	if c.v.GetBool("raw") {
		opts = append(opts, cloudant.OptionRawData())
	}
	if n := c.v.GetInt("chunk-size"); n > 0 {
		opts = append(opts, cloudant.OptionChunkSize(n))
	}
	infinite := c.v.GetBool("infinite")

	var since string
	err := c.retry(ctx, func() error {
		p := cloudant.Params{}
		for k, v := range params {
			p[k] = v
		}
		if legacy {
			if n, ok := p["heartbeat"].(int); ok {
				p["heartbeat"] = n > 0
			}
		} else if since != "" {
			c.log.Debugf("%s: resuming from %s", name, since)
			p["since"] = since
		}
		f := c.open(ctx, client, db, infinite, append([]cloudant.Option{p}, opts...))
		defer f.Close() // nolint:errcheck

		for f.Next() {
			ev, err := f.Event()
			if err != nil {
				return err
			}
			if ev.Kind == feed.KindRecord && ev.Row.Seq != "" {
				since = string(ev.Row.Seq)
			}
			if err := out.write(db, ev); err != nil {
				return err
			}
		}
		if seq := f.LastSeq(); seq != "" {
			since = seq
		}
		return f.Err()
	})
	if err != nil && ctx.Err() != nil {
		// Interrupted, or another feed failed.
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *follow) open(ctx context.Context, client *cloudant.Client, db string, infinite bool, opts []cloudant.Option) *cloudant.Feed {
	switch {
	case db == "" && infinite:
		return client.InfiniteDBUpdates(ctx, opts...)
	case db == "":
		return client.DBUpdates(ctx, opts...)
	case infinite:
		return client.DB(db).InfiniteChanges(ctx, opts...)
	}
	return client.DB(db).Changes(ctx, opts...)
}

// eventLine is the output format of a single feed event.
type eventLine struct {
	DB   string          `json:"db,omitempty"`
	Kind string          `json:"kind"`
	Row  json.RawMessage `json:"row,omitempty"`
	Line string          `json:"line,omitempty"`
}

// lineWriter serializes events from concurrent feeds, one JSON object per
// line.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (w *lineWriter) write(db string, ev feed.Event) error {
	line := eventLine{DB: db, Kind: ev.Kind.String()}
	switch ev.Kind {
	case feed.KindRecord:
		line.Row = ev.Row.Raw
	case feed.KindMalformed:
		line.Line = ev.Line
	case feed.KindRaw:
		line.Line = string(ev.Raw)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(line); err != nil {
		return errors.WithCode(err, errors.ErrIO)
	}
	return nil
}
