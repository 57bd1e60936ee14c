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

// Package feed reads CouchDB and Cloudant _changes and _db_updates feeds.
//
// A Reader consumes a streaming response line by line, in any of the normal,
// longpoll or continuous framing modes, and returns one Event per call to
// Next. It records the last sequence checkpoint seen, so that a feed may be
// resumed; the infinite variant does so automatically whenever the server
// closes a continuous feed.
package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/go-kivik/cloudant/internal"
)

// Session issues streaming feed requests. Stream must return an error for
// any non-2xx response; the returned body is owned by the caller.
type Session interface {
	Stream(ctx context.Context, path string, query url.Values) (io.ReadCloser, error)
}

// SessionFunc adapts a function to the Session interface.
type SessionFunc func(ctx context.Context, path string, query url.Values) (io.ReadCloser, error)

// Stream calls fn.
func (fn SessionFunc) Stream(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	return fn(ctx, path, query)
}

// Config configures a Reader.
type Config struct {
	// Variant selects the permitted option set.
	Variant Variant

	// Raw disables line decoding; every line, including blank heartbeats
	// and framing, is returned as a KindRaw event.
	Raw bool

	// ChunkSize is the response read buffer size. Defaults to
	// DefaultChunkSize.
	ChunkSize int

	// Options are the feed query options. They are copied, and validated
	// only when a request is issued.
	Options Options

	// Logger receives debug output. Defaults to discarding everything.
	Logger logrus.FieldLogger

	// Metrics, if non-nil, receives feed statistics.
	Metrics *Metrics
}

// Wire constants of the normal and longpoll framing. Each is matched
// literally; the results wrapper is not parsed as a whole document.
const (
	resultsOpen     = `{"results":[`
	resultsClose    = `],`
	lastSeqFragment = `"last_seq"`
)

// Reader reads a single feed. A Reader is not safe for concurrent use, with
// the exception of Stop, LastSeq and Pending.
type Reader struct {
	ctx      context.Context
	session  Session
	path     string
	variant  Variant
	raw      bool
	infinite bool
	chunk    int
	options  Options
	log      logrus.FieldLogger
	metrics  *Metrics

	body  io.ReadCloser
	lines *lineReader
	done  bool
	stop  atomic.Bool
	cp    atomic.Pointer[checkpoint]
}

// checkpoint is the last summary record seen.
type checkpoint struct {
	seq     string
	pending int64
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// New returns a new Reader for the feed at path. No request is made until
// the first call to Next.
func New(ctx context.Context, session Session, path string, cfg Config) *Reader {
	r := &Reader{
		ctx:     ctx,
		session: session,
		path:    path,
		variant: cfg.Variant,
		raw:     cfg.Raw,
		chunk:   cfg.ChunkSize,
		options: cfg.Options.clone(),
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if r.chunk <= 0 {
		r.chunk = DefaultChunkSize
	}
	if r.log == nil {
		r.log = discardLogger
	}
	r.log = r.log.WithField("feed", path)
	if r.variant == LegacyServerFeed {
		r.options.setDefault("feed", ModeLongpoll)
		r.options.setDefault("heartbeat", true)
	}
	return r
}

// LastSeq returns the last sequence checkpoint seen. For normal and longpoll
// feeds it is set once the feed has been read to completion.
// LastSeq may be called from any goroutine.
func (r *Reader) LastSeq() string {
	if cp := r.cp.Load(); cp != nil {
		return cp.seq
	}
	return ""
}

// Pending returns the number of pending changes reported alongside the last
// checkpoint, if any.
func (r *Reader) Pending() int64 {
	if cp := r.cp.Load(); cp != nil {
		return cp.pending
	}
	return 0
}

// Stop ends iteration. It takes effect on the next call to Next, which will
// return io.EOF; a call already blocked on the network is not interrupted.
// Stop may be called any number of times, from any goroutine.
func (r *Reader) Stop() {
	r.stop.Store(true)
}

// Close releases the current response, if any. Subsequent calls to Next
// return io.EOF.
func (r *Reader) Close() error {
	r.done = true
	return r.release()
}

func (r *Reader) release() error {
	r.lines = nil
	if r.body == nil {
		return nil
	}
	body := r.body
	r.body = nil
	return body.Close()
}

// start issues the feed request, replacing any previous response.
func (r *Reader) start() error {
	query, err := Translate(r.variant, r.infinite, r.options)
	if err != nil {
		return err
	}
	_ = r.release()
	r.metrics.request()
	r.log.WithField("query", query.Encode()).Debug("starting feed")
	body, err := r.session.Stream(r.ctx, r.path, query)
	if err != nil {
		r.metrics.requestError()
		return err
	}
	r.body = body
	r.lines = newLineReader(body, r.chunk)
	return nil
}

// Next reads the next event into ev. It returns io.EOF when the feed is
// exhausted or stopped.
func (r *Reader) Next(ev *Event) error {
	if r.infinite && r.variant == LegacyServerFeed {
		return unsupportedFeedMode()
	}
	for {
		if r.done {
			return io.EOF
		}
		if r.infinite && r.LastSeq() != "" {
			r.restart()
		}
		if r.lines == nil {
			if err := r.start(); err != nil {
				return err
			}
		}
		if r.stop.Load() {
			return io.EOF
		}
		line, err := r.lines.next()
		if err != nil {
			r.done = true
			_ = r.release()
			if err == io.EOF {
				return io.EOF
			}
			return &internal.Error{Status: http.StatusBadGateway, Err: err}
		}
		if skip := r.processLine(line, ev); !skip {
			r.metrics.event(ev.Kind)
			return nil
		}
	}
}

// processLine converts line to an event, reporting whether it should be
// skipped instead of returned.
func (r *Reader) processLine(line []byte, ev *Event) (skip bool) {
	if r.raw {
		*ev = Event{Kind: KindRaw, Raw: line}
		return false
	}
	text := string(line)
	switch {
	case text == "":
		if r.reportHeartbeats() && r.LastSeq() == "" {
			*ev = Event{Kind: KindHeartbeat}
			return false
		}
		return true
	case text == resultsOpen || text == resultsClose:
		return true
	case text[len(text)-1] == ',':
		text = text[:len(text)-1]
	case strings.HasPrefix(text, lastSeqFragment):
		text = "{" + text
	}

	fields, ok := decodeObject(text)
	if !ok {
		r.log.WithField("line", string(line)).Debug("malformed feed line")
		*ev = Event{Kind: KindMalformed, Line: string(line)}
		return false
	}
	if lastSeq := fields["last_seq"]; truthyJSON(lastSeq) {
		var seq SequenceID
		_ = json.Unmarshal(lastSeq, &seq)
		pending := r.Pending()
		if val, ok := fields["pending"]; ok {
			_ = json.Unmarshal(val, &pending)
		}
		r.cp.Store(&checkpoint{seq: string(seq), pending: pending})
		return true
	}
	*ev = Event{Kind: KindRecord, Row: newRow(fields, text)}
	return false
}

// reportHeartbeats reports whether blank lines should be surfaced as
// heartbeat events.
func (r *Reader) reportHeartbeats() bool {
	if !truthy(r.options["heartbeat"]) {
		return false
	}
	mode, _ := r.options["feed"].(string)
	return mode == ModeContinuous || mode == ModeLongpoll
}
