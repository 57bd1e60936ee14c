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

// Package log provides the diagnostic logger of the couchfeed command. All
// log output goes to stderr, leaving stdout to the feed events.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	// SetErr sets the destination for log output.
	SetErr(io.Writer)
	// SetDebug turns debug mode on or off.
	SetDebug(bool)
	// Debug logs debug output.
	Debug(...any)
	// Debugf logs formatted debug output.
	Debugf(string, ...any)
	// Info logs normal priority messages.
	Info(...any)
	// Infof logs formatted normal priority messages.
	Infof(string, ...any)
	// Error logs error messages.
	Error(...any)
	// Errorf logs formatted error messages.
	Errorf(string, ...any)
	// FieldLogger returns the underlying structured logger, for handing to
	// feed readers.
	FieldLogger() logrus.FieldLogger
}

type logger struct {
	*logrus.Logger
}

var _ Logger = &logger{}

// New returns a Logger writing text lines to stderr, at info level.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return &logger{Logger: l}
}

func (l *logger) SetErr(err io.Writer) { l.SetOutput(err) }

func (l *logger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(logrus.DebugLevel)
		return
	}
	l.SetLevel(logrus.InfoLevel)
}

func (l *logger) FieldLogger() logrus.FieldLogger { return l.Logger }
