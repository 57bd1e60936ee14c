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

package log

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// TestLogger records every entry, at every level, for inspection by tests.
type TestLogger struct {
	*logrus.Logger
	hook *test.Hook
}

var _ Logger = &TestLogger{}

func NewTest() *TestLogger {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return &TestLogger{Logger: l, hook: hook}
}

func (*TestLogger) SetErr(io.Writer) {}
func (*TestLogger) SetDebug(bool)    {}

func (l *TestLogger) FieldLogger() logrus.FieldLogger { return l.Logger }

// Logs returns the recorded entries, one per line, as "[LEVEL] message".
// Structured fields are omitted.
func (l *TestLogger) Logs() string {
	entries := l.hook.AllEntries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("[%s] %s", strings.ToUpper(e.Level.String()), strings.TrimSpace(e.Message))
	}
	return strings.Join(lines, "\n")
}
