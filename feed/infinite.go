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

package feed

import (
	"context"
)

// NewInfinite returns a Reader for a continuous feed which never ends of its
// own accord. Whenever the server closes the feed with a last_seq record, the
// Reader reconnects with since set to that checkpoint. Delivery is
// at-least-once: rows may be repeated across a reconnection.
//
// cfg.Raw is ignored, and the feed option may only be continuous. Infinite
// feeds are not supported for LegacyServerFeed; Next returns
// ErrUnsupportedFeedMode.
func NewInfinite(ctx context.Context, session Session, path string, cfg Config) *Reader {
	cfg.Raw = false
	r := New(ctx, session, path, cfg)
	r.infinite = true
	r.options.setDefault("feed", ModeContinuous)
	return r
}

func (r *Reader) restart() {
	since := r.LastSeq()
	r.log.WithField("since", since).Debug("restarting feed from checkpoint")
	r.options["since"] = since
	r.cp.Store(&checkpoint{pending: r.Pending()})
	_ = r.release()
	r.metrics.restart()
}
