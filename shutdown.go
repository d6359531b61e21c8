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
	"sync/atomic"
)

// ShutdownCoordinator holds the process wide "shutdown requested" flag.
// The flag only ever goes from false to true.
type ShutdownCoordinator struct {
	requested atomic.Bool
	done      chan struct{}
}

// NewShutdownCoordinator returns a coordinator with the flag clear.
func NewShutdownCoordinator() *ShutdownCoordinator {
	return &ShutdownCoordinator{done: make(chan struct{})}
}

// RequestShutdown sets the flag.  It returns true only for the call that
// actually changed it, so exactly one caller ever sees true.
func (c *ShutdownCoordinator) RequestShutdown() bool {
	if !c.requested.CompareAndSwap(false, true) {
		return false
	}
	close(c.done)
	return true
}

// IsRequested reports the flag.  It never blocks.
func (c *ShutdownCoordinator) IsRequested() bool {
	return c.requested.Load()
}

// Done is closed once shutdown has been requested.
func (c *ShutdownCoordinator) Done() <-chan struct{} {
	return c.done
}
