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

	"go.uber.org/zap"
)

// Stream names one of the two output pipes of a child.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Sink receives relayed output, one line at a time, without the trailing
// newline.  Lines from a single stream arrive in order.  Implementations
// must be safe for concurrent use, since every stream of every child is
// relayed from its own goroutine.
type Sink interface {
	Line(process string, stream Stream, text string)
}

// ZapSink writes relayed lines to a zap logger.  Each process/stream pair
// gets a child logger named "<process> > <stream>"; stderr lines are logged
// at error level and stdout lines at info level.
type ZapSink struct {
	base    *zap.Logger
	loggers map[string]*zap.Logger
	mx      sync.Mutex
}

// NewZapSink returns a ZapSink on top of base.  A nil base discards
// everything.
func NewZapSink(base *zap.Logger) *ZapSink {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapSink{base: base, loggers: make(map[string]*zap.Logger)}
}

func (s *ZapSink) logger(process string, stream Stream) *zap.Logger {
	name := process + " > " + string(stream)
	s.mx.Lock()
	defer s.mx.Unlock()
	l, ok := s.loggers[name]
	if !ok {
		l = s.base.Named(name)
		s.loggers[name] = l
	}
	return l
}

// Line implements Sink.
func (s *ZapSink) Line(process string, stream Stream, text string) {
	l := s.logger(process, stream)
	if stream == StreamStderr {
		l.Error(text)
	} else {
		l.Info(text)
	}
}
