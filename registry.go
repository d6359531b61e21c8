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
	"sort"
	"sync"
)

// Registry tracks the live process handles, keyed by handle id.  A handle
// is inserted when its child is spawned and removed once Wait has collected
// the exit status.  It is safe for concurrent use.
type Registry struct {
	handles map[string]*ProcessHandle
	mx      sync.RWMutex
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*ProcessHandle)}
}

func (r *Registry) insert(h *ProcessHandle) {
	r.mx.Lock()
	r.handles[h.id] = h
	r.mx.Unlock()
}

func (r *Registry) remove(id string) {
	r.mx.Lock()
	delete(r.handles, id)
	r.mx.Unlock()
}

// Snapshot returns the handles that are live right now, oldest first.
// The caller owns the returned slice; later inserts and removals do not
// affect it.
func (r *Registry) Snapshot() []*ProcessHandle {
	r.mx.RLock()
	rv := make([]*ProcessHandle, 0, len(r.handles))
	for _, h := range r.handles {
		rv = append(rv, h)
	}
	r.mx.RUnlock()

	sort.Slice(rv, func(i, j int) bool {
		if rv[i].started.Equal(rv[j].started) {
			return rv[i].id < rv[j].id
		}
		return rv[i].started.Before(rv[j].started)
	})
	return rv
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.handles)
}
