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
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind distinguishes the mutually exclusive kinds of Event.
type Kind int

// Event kinds.
const (
	// KindRecord is a decoded change or database update.
	KindRecord Kind = iota + 1
	// KindHeartbeat is a blank keep-alive line.
	KindHeartbeat
	// KindMalformed is a line which could not be decoded as a JSON object.
	KindMalformed
	// KindRaw is an undecoded line, produced only in raw mode.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindHeartbeat:
		return "heartbeat"
	case KindMalformed:
		return "malformed"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

// Event is a single unit read from a feed.
type Event struct {
	Kind Kind

	// Row is set for KindRecord.
	Row *Row

	// Line is the offending text for KindMalformed.
	Line string

	// Raw is the unprocessed line for KindRaw.
	Raw []byte
}

// Revision is an entry of a change's changes list.
type Revision struct {
	Rev string `json:"rev"`
}

// Row is a decoded feed record. _changes rows populate ID, Changes, Deleted
// and Doc; _db_updates rows populate DBName, Type and Account.
type Row struct {
	ID      string          `json:"id,omitempty"`
	Seq     SequenceID      `json:"seq,omitempty"`
	Changes []Revision      `json:"changes,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
	Doc     json.RawMessage `json:"doc,omitempty"`
	DBName  string          `json:"db_name,omitempty"`
	Type    string          `json:"type,omitempty"`
	Account string          `json:"account,omitempty"`

	// Raw is the complete JSON object as received, for access to fields not
	// mapped above.
	Raw json.RawMessage `json:"-"`
}

// Revs returns the revisions listed in the row's changes.
func (r *Row) Revs() []string {
	if len(r.Changes) == 0 {
		return nil
	}
	revs := make([]string, len(r.Changes))
	for i, c := range r.Changes {
		revs[i] = c.Rev
	}
	return revs
}

// SequenceID is an opaque update sequence. CouchDB 1.x sends integers,
// 2.x and later send strings, and some older clustered servers send arrays.
// All forms are held as a string; non-string values keep their JSON text.
type SequenceID string

// UnmarshalJSON satisfies the json.Unmarshaler interface.
func (id *SequenceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SequenceID(s)
		return nil
	}
	if string(data) == "null" {
		*id = ""
		return nil
	}
	*id = SequenceID(data)
	return nil
}

// decodeObject decodes text as a single JSON object. Only a syntax error, or
// a value other than an object, fails.
func decodeObject(text string) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// newRow fills a Row from the fields of a decoded object. A field of an
// unexpected type is left at its zero value; Raw still holds it.
func newRow(fields map[string]json.RawMessage, raw string) *Row {
	row := &Row{Raw: json.RawMessage(raw)}
	for key, dest := range map[string]interface{}{
		"id":      &row.ID,
		"seq":     &row.Seq,
		"deleted": &row.Deleted,
		"db_name": &row.DBName,
		"type":    &row.Type,
		"account": &row.Account,
	} {
		if val, ok := fields[key]; ok {
			_ = json.Unmarshal(val, dest)
		}
	}
	if val, ok := fields["changes"]; ok {
		var changes []Revision
		if err := json.Unmarshal(val, &changes); err == nil {
			row.Changes = changes
		}
	}
	if val, ok := fields["doc"]; ok {
		row.Doc = val
	}
	return row
}

// truthyJSON reports whether a JSON value would be considered set: null,
// false, zero, and empty strings, arrays and objects are not.
func truthyJSON(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	switch s {
	case "", "null", "false", `""`, "[]", "{}":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return true
}
