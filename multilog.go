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
)

// MultiSink fans every relayed line out to a set of sinks.  This is how
// the same output reaches the console logger and the in-memory log used by
// the status API.  Sinks are called in the order they were added, and the
// fan out is serialized, so each sink sees one consistent interleaving.
type MultiSink struct {
	sinks []Sink
	lock  sync.Mutex
}

// NewMultiSink returns a MultiSink delivering to the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		m.AddSink(s)
	}
	return m
}

// Line implements Sink.
func (m *MultiSink) Line(process string, stream Stream, text string) {
	m.lock.Lock()
	for _, s := range m.sinks {
		s.Line(process, stream, text)
	}
	m.lock.Unlock()
}

// AddSink adds a sink.  Once called, all new lines will be fanned out to
// this sink as well as any registered earlier.  A sink can only be added
// once; sinks must be comparable.
func (m *MultiSink) AddSink(s Sink) {
	if s == nil {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, x := range m.sinks {
		if x == s {
			return
		}
	}
	m.sinks = append(m.sinks, s)
}

// DelSink removes a sink from the list of destinations.
func (m *MultiSink) DelSink(s Sink) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i, x := range m.sinks {
		if x == s {
			m.sinks = append(m.sinks[:i], m.sinks[i+1:]...)
			break
		}
	}
}
