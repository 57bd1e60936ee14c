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

	"github.com/go-kivik/cloudant/feed"
)

// DB is a handle to a database.
type DB struct {
	client *Client
	name   string
}

// Client returns the client used to connect to the database.
func (db *DB) Client() *Client {
	return db.client
}

// Name returns the database name as passed when creating the DB connection.
func (db *DB) Name() string {
	return db.name
}

// Exists returns true if the database exists.
func (db *DB) Exists(ctx context.Context) (bool, error) {
	return db.client.DBExists(ctx, db.name)
}

// Changes returns an iterator over the database's _changes feed. With the
// default "normal" feed mode, it ends after the current changes; pass
// Param("feed", "continuous") to follow new changes as they happen.
//
// See https://docs.couchdb.org/en/stable/api/database/changes.html
func (db *DB) Changes(ctx context.Context, options ...Option) *Feed {
	return db.client.newFeed(ctx, db.path("_changes"), feed.DatabaseFeed, false, options)
}

// InfiniteChanges returns a continuous _changes feed which reconnects from
// its last checkpoint whenever the server closes it, so it ends only when
// stopped, closed, or on error. Rows may be repeated across reconnections.
func (db *DB) InfiniteChanges(ctx context.Context, options ...Option) *Feed {
	return db.client.newFeed(ctx, db.path("_changes"), feed.DatabaseFeed, true, options)
}

func (db *DB) path(endpoint string) string {
	return dbPath(db.name) + "/" + endpoint
}
