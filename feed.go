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
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-kivik/cloudant/feed"
)

type feedIterator struct{ *feed.Reader }

var _ iterator = &feedIterator{}

func (f *feedIterator) Next(i interface{}) error { return f.Reader.Next(i.(*feed.Event)) }

// Feed is an iterator over a _changes or _db_updates feed.
//
// Call Next to advance to each event. Records, heartbeats and malformed lines
// are all events; use Event, or the IsHeartbeat and ID family of accessors,
// to tell them apart.
type Feed struct {
	*iter
	reader *feed.Reader
}

func newFeed(ctx context.Context, cancel func(), r *feed.Reader, onDone func()) *Feed {
	return &Feed{
		iter:   newIterator(ctx, cancel, &feedIterator{r}, &feed.Event{}, onDone),
		reader: r,
	}
}

// Stop ends the feed after the event being read, if any. The next call to
// Next returns false, with a nil Err. Stop does not interrupt a Next call
// blocked waiting for data; cancel the feed's context for that. Stop is safe
// to call from any goroutine, any number of times.
func (f *Feed) Stop() {
	if f.reader != nil {
		f.reader.Stop()
	}
}

// LastSeq returns the last sequence checkpoint reported by the server, which
// may be passed as the "since" parameter of a new feed. For normal and
// longpoll feeds it is set only once the feed has been read to the end. It
// remains available after the feed is closed, and may be called while
// another goroutine is blocked in Next.
func (f *Feed) LastSeq() string {
	if f.reader == nil {
		return ""
	}
	return f.reader.LastSeq()
}

// Pending returns the number of changes remaining after LastSeq, as reported
// by the server.
func (f *Feed) Pending() int64 {
	if f.reader == nil {
		return 0
	}
	return f.reader.Pending()
}

func (f *Feed) current() *feed.Event {
	return f.curVal.(*feed.Event)
}

// Event returns the current event.
func (f *Feed) Event() (feed.Event, error) {
	runlock, err := f.rlock()
	if err != nil {
		return feed.Event{}, err
	}
	defer runlock()
	return *f.current(), nil
}

func (f *Feed) row() *feed.Row {
	runlock, err := f.rlock()
	if err != nil {
		return nil
	}
	defer runlock()
	return f.current().Row
}

// IsHeartbeat returns true if the current event is a heartbeat.
func (f *Feed) IsHeartbeat() bool {
	runlock, err := f.rlock()
	if err != nil {
		return false
	}
	defer runlock()
	return f.current().Kind == feed.KindHeartbeat
}

// ID returns the document ID of the current change, or "" if the current
// event is not a record.
func (f *Feed) ID() string {
	if row := f.row(); row != nil {
		return row.ID
	}
	return ""
}

// Seq returns the update sequence of the current record.
func (f *Feed) Seq() string {
	if row := f.row(); row != nil {
		return string(row.Seq)
	}
	return ""
}

// Changes returns the list of changed revisions of the current change.
func (f *Feed) Changes() []string {
	if row := f.row(); row != nil {
		return row.Revs()
	}
	return nil
}

// Deleted returns true if the current change relates to a deleted document.
func (f *Feed) Deleted() bool {
	if row := f.row(); row != nil {
		return row.Deleted
	}
	return false
}

// ScanDoc unmarshals the doc field of the current change into dest. It is
// only valid for feeds which include documents.
func (f *Feed) ScanDoc(dest interface{}) error {
	runlock, err := f.rlock()
	if err != nil {
		return err
	}
	defer runlock()
	row := f.current().Row
	if row == nil {
		return &Error{Status: http.StatusBadRequest, Message: "cloudant: current event is not a record"}
	}
	if len(row.Doc) == 0 {
		return &Error{Status: http.StatusBadRequest, Message: "cloudant: no doc in result"}
	}
	return scan(dest, row.Doc)
}

// ScanRow unmarshals the complete current record into dest. In raw mode, it
// unmarshals the raw line instead.
func (f *Feed) ScanRow(dest interface{}) error {
	runlock, err := f.rlock()
	if err != nil {
		return err
	}
	defer runlock()
	ev := f.current()
	switch ev.Kind {
	case feed.KindRecord:
		return scan(dest, ev.Row.Raw)
	case feed.KindRaw:
		return scan(dest, ev.Raw)
	}
	return &Error{Status: http.StatusBadRequest, Message: "cloudant: current event is a " + ev.Kind.String()}
}

func scan(dest interface{}, val json.RawMessage) error {
	if dest == nil {
		return &Error{Status: http.StatusBadRequest, Err: errors.New("cloudant: destination is nil")}
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return &Error{Status: http.StatusInternalServerError, Err: err}
	}
	return nil
}
