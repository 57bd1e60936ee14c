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
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/cloudant/internal"
)

var (
	// ErrInvalidOption is matched, via errors.Is, by every option validation
	// failure.
	ErrInvalidOption = errors.New("invalid feed option")

	// ErrUnsupportedFeedMode is returned by the first call to Next on an
	// infinite feed against a single-tenant CouchDB _db_updates endpoint.
	ErrUnsupportedFeedMode = errors.New("infinite _db_updates feed not supported for CouchDB")
)

// OptionError describes a rejected feed option.
type OptionError struct {
	Key    string
	Value  interface{}
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidOption, e.Key, e.Reason)
}

// Is reports whether target is ErrInvalidOption.
func (e *OptionError) Is(target error) bool {
	return target == ErrInvalidOption
}

func invalidOption(key string, val interface{}, format string, args ...interface{}) error {
	return &internal.Error{
		Status: http.StatusBadRequest,
		Err: &OptionError{
			Key:    key,
			Value:  val,
			Reason: fmt.Sprintf(format, args...),
		},
	}
}

func unsupportedFeedMode() error {
	return &internal.Error{Status: http.StatusBadRequest, Err: ErrUnsupportedFeedMode}
}
