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
	"bufio"
	"bytes"
	"io"
)

// DefaultChunkSize is the default read buffer size for a feed response.
const DefaultChunkSize = 512

// lineReader splits a response body into lines.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(body io.Reader, chunkSize int) *lineReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &lineReader{r: bufio.NewReaderSize(body, chunkSize)}
}

// next returns the next line, stripped of its line terminator. A final
// unterminated line is returned before io.EOF.
func (l *lineReader) next() ([]byte, error) {
	line, err := l.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return bytes.TrimRight(line, "\r"), nil
		}
		return nil, err
	}
	line = line[:len(line)-1]
	return bytes.TrimRight(line, "\r"), nil
}
