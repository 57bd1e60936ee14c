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
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Feed framing modes.
const (
	ModeNormal     = "normal"
	ModeLongpoll   = "longpoll"
	ModeContinuous = "continuous"
)

// Options holds feed query options, keyed by their CouchDB query parameter
// name. Values are validated and encoded when the feed request is issued.
type Options map[string]interface{}

func (o Options) clone() Options {
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

func (o Options) setDefault(key string, value interface{}) {
	if _, ok := o[key]; !ok {
		o[key] = value
	}
}

// Variant identifies the endpoint a feed reads from, which determines the set
// of permitted options.
type Variant int

const (
	// DatabaseFeed is a database _changes feed.
	DatabaseFeed Variant = iota
	// ClientFeed is the _db_updates feed of a multi-tenant Cloudant server.
	ClientFeed
	// LegacyServerFeed is the _db_updates feed of a single-tenant CouchDB
	// server, which accepts a narrower option set.
	LegacyServerFeed
)

func (v Variant) String() string {
	switch v {
	case DatabaseFeed:
		return "_changes"
	case ClientFeed:
		return "_db_updates"
	case LegacyServerFeed:
		return "_db_updates (CouchDB)"
	}
	return "unknown"
}

type argType uint

const (
	typeString argType = 1 << iota
	typeBool
	typeInt
	typeNull
	typeList
	typeAny argType = 0
)

var argTypeNames = []struct {
	t    argType
	name string
}{
	{typeString, "string"},
	{typeBool, "bool"},
	{typeInt, "int"},
	{typeNull, "nil"},
	{typeList, "list"},
}

func (t argType) String() string {
	if t == typeAny {
		return "any"
	}
	names := make([]string, 0, len(argTypeNames))
	for _, n := range argTypeNames {
		if t&n.t != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ", ")
}

var legacyServerArgs = map[string]argType{
	"feed":      typeString,
	"heartbeat": typeBool,
	"timeout":   typeInt | typeNull,
}

var clientArgs = map[string]argType{
	"descending": typeBool,
	"limit":      typeInt | typeNull,
	"since":      typeInt | typeString,
	"feed":       typeString,
	"heartbeat":  typeInt | typeNull,
	"timeout":    typeInt | typeNull,
}

var databaseArgs = func() map[string]argType {
	args := map[string]argType{
		"conflicts":    typeBool,
		"doc_ids":      typeList,
		"filter":       typeString,
		"include_docs": typeBool,
		"style":        typeString,
	}
	for k, v := range clientArgs {
		args[k] = v
	}
	return args
}()

func (v Variant) args() map[string]argType {
	switch v {
	case ClientFeed:
		return clientArgs
	case LegacyServerFeed:
		return legacyServerArgs
	}
	return databaseArgs
}

// acceptsExtra reports whether unknown keys are permitted, as parameters for
// custom filter functions.
func (v Variant) acceptsExtra() bool {
	return v == DatabaseFeed
}

func (v Variant) feedModes() []string {
	if v == LegacyServerFeed {
		return []string{ModeContinuous, ModeLongpoll}
	}
	return []string{ModeContinuous, ModeNormal, ModeLongpoll}
}

func typeOf(val interface{}) argType {
	switch val.(type) {
	case nil:
		return typeNull
	case string:
		return typeString
	case bool:
		return typeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return typeInt
	case []string, []interface{}, []int:
		return typeList
	}
	return typeAny
}

func isNegative(val interface{}) bool {
	switch t := val.(type) {
	case int:
		return t < 0
	case int8:
		return t < 0
	case int16:
		return t < 0
	case int32:
		return t < 0
	case int64:
		return t < 0
	}
	return false
}

// Validate checks a single option against the rules of variant. The infinite
// flag restricts the feed option to continuous.
func Validate(variant Variant, infinite bool, key string, val interface{}) error {
	if infinite && key == "feed" && val != ModeContinuous {
		return invalidOption(key, val, "infinite feed must be %s, found %v", ModeContinuous, val)
	}
	want, ok := variant.args()[key]
	if !ok {
		if !variant.acceptsExtra() {
			return invalidOption(key, val, "not supported by %s", variant)
		}
		want = typeAny
	}
	if want == typeAny {
		return nil
	}
	// bool and the integer kinds are distinct Go types, so a bool is never
	// accepted where only an integer is.
	if typeOf(val)&want == 0 {
		return invalidOption(key, val, "%T is not an instance of expected type: %s", val, want)
	}
	if isNegative(val) {
		return invalidOption(key, val, "must be >= 0, found %v", val)
	}
	switch key {
	case "feed":
		modes := variant.feedModes()
		if !contains(modes, val.(string)) {
			return invalidOption(key, val, "invalid value %q, must be one of %s", val, strings.Join(modes, ", "))
		}
	case "style":
		if s := val.(string); s != "main_only" && s != "all_docs" {
			return invalidOption(key, val, "invalid value %q, must be main_only or all_docs", s)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Translate validates opts against variant and converts them to query
// parameters. Strings are passed through unquoted, nil values are omitted,
// booleans become true/false, integers decimal, and everything else is JSON
// encoded.
func Translate(variant Variant, infinite bool, opts Options) (url.Values, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	query := make(url.Values, len(opts))
	for _, key := range keys {
		val := opts[key]
		if err := Validate(variant, infinite, key, val); err != nil {
			return nil, err
		}
		value, ok, err := encodeValue(val)
		if err != nil {
			return nil, invalidOption(key, val, "error converting argument: %s", err)
		}
		if ok {
			query.Set(key, value)
		}
	}
	return query, nil
}

func encodeValue(val interface{}) (string, bool, error) {
	switch t := val.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), true, nil
	}
	enc, err := json.Marshal(val)
	if err != nil {
		return "", false, err
	}
	return string(enc), true, nil
}

// truthy reports whether an option value is set to something other than a
// zero value.
func truthy(val interface{}) bool {
	switch t := val.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if typeOf(val) == typeInt {
		return fmt.Sprintf("%d", val) != "0"
	}
	return true
}
