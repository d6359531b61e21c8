// Copyright 2026 The Tandem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tandem

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type recordedLine struct {
	process string
	stream  Stream
	text    string
}

// recordSink keeps every relayed line, for later inspection.
type recordSink struct {
	lines []recordedLine
	sync.Mutex
}

func (r *recordSink) Line(process string, stream Stream, text string) {
	r.Lock()
	r.lines = append(r.lines, recordedLine{process, stream, text})
	r.Unlock()
}

func (r *recordSink) get(process string, stream Stream) []string {
	r.Lock()
	defer r.Unlock()
	rv := []string{}
	for _, l := range r.lines {
		if l.process == process && l.stream == stream {
			rv = append(rv, l.text)
		}
	}
	return rv
}

func (r *recordSink) has(process string, stream Stream, text string) bool {
	for _, l := range r.get(process, stream) {
		if l == text {
			return true
		}
	}
	return false
}

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// waitFor polls cond until it holds or d elapses.
func waitFor(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
