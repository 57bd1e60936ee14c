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
	"io"
	"net/http"
	"sync"
)

type iterator interface {
	Next(interface{}) error
	Close() error
}

// possible states of the iterator
const (
	// stateReady is the initial state before [Feed.Next] is called.
	stateReady = iota
	// stateRowReady is the state after [Feed.Next] has returned true.
	stateRowReady
	// stateClosed means the last event has been retrieved, or the iterator
	// was closed. The iterator is no longer usable.
	stateClosed
)

type iter struct {
	feed iterator

	mu      sync.RWMutex
	state   int
	lasterr error // non-nil only if state == stateClosed

	cancel func() // cancel function to exit context goroutine when iterator is closed
	onDone func() // called once, when the iterator closes

	curVal interface{}
}

func (i *iter) rlock() (unlock func(), err error) {
	i.mu.RLock()
	if i.state == stateClosed {
		i.mu.RUnlock()
		return nil, &Error{Status: http.StatusBadRequest, Message: "cloudant: Iterator is closed"}
	}
	if i.state != stateRowReady {
		i.mu.RUnlock()
		return nil, &Error{Status: http.StatusBadRequest, Message: "cloudant: Iterator access before calling Next"}
	}
	return i.mu.RUnlock, nil
}

// newIterator instantiates a new iterator.
//
// ctx must be the context the feed was created with, and cancel its cancel
// function; both are released when the iterator closes. zeroValue is the
// value passed to every call to feed.Next. onDone, if non-nil, is called
// once the iterator is closed.
func newIterator(ctx context.Context, cancel func(), feed iterator, zeroValue interface{}, onDone func()) *iter {
	i := &iter{
		feed:   feed,
		curVal: zeroValue,
		cancel: cancel,
		onDone: onDone,
	}
	go i.awaitDone(ctx)
	return i
}

// errIterator returns an iterator which is already closed with err.
func errIterator(err error) *iter {
	return &iter{
		state:   stateClosed,
		lasterr: err,
	}
}

// awaitDone blocks until the iterator is closed or the context is cancelled,
// then closes the iterator if it's still open.
func (i *iter) awaitDone(ctx context.Context) {
	<-ctx.Done()
	_ = i.close(ctx.Err())
}

// Next prepares the next iterator result value for reading. It returns true on
// success, or false if there is no next result or an error occurs while
// preparing it. [iter.Err] should be consulted to distinguish between the two.
func (i *iter) Next() bool {
	doClose, ok := i.next()
	if doClose {
		_ = i.Close()
	}
	return ok
}

func (i *iter) next() (doClose, ok bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.state == stateClosed {
		return false, false
	}
	err := i.feed.Next(i.curVal)
	i.state = stateRowReady
	i.lasterr = err
	if i.lasterr != nil {
		return true, false
	}
	return false, true
}

// Close closes the iterator, preventing further enumeration, and freeing any
// resources (such as the http response body) of the underlying feed. If Next
// is called and there are no further results, the iterator is closed
// automatically and it will suffice to check the result of [iter.Err]. Close
// is idempotent and does not affect the result of [iter.Err].
//
// Close waits for a Next call in progress on another goroutine; use Stop, or
// cancel the context, to end a feed which is blocked waiting for changes.
func (i *iter) Close() error {
	return i.close(nil)
}

func (i *iter) close(err error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == stateClosed {
		return nil
	}
	i.state = stateClosed

	if i.lasterr == nil {
		i.lasterr = err
	}

	err = i.feed.Close()

	if i.cancel != nil {
		i.cancel()
	}
	if i.onDone != nil {
		i.onDone()
	}

	return err
}

// Err returns the error, if any, that was encountered during iteration. Err
// may be called after an explicit or implicit Close.
func (i *iter) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.lasterr == io.EOF {
		return nil
	}
	return i.lasterr
}
