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
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"pgregory.net/rapid"
)

func fakeHandle(id string, started time.Time) *ProcessHandle {
	return &ProcessHandle{
		id:      id,
		spec:    ProcessSpec{Name: id, Command: "true"},
		started: started,
		done:    make(chan struct{}),
	}
}

func TestRegistry(t *testing.T) {
	Convey("Registry snapshots are ordered copies", t, func() {
		r := NewRegistry()
		now := time.Now()
		r.insert(fakeHandle("b", now.Add(time.Second)))
		r.insert(fakeHandle("a", now))
		r.insert(fakeHandle("c", now.Add(2*time.Second)))
		So(r.Len(), ShouldEqual, 3)

		snap := r.Snapshot()
		So(len(snap), ShouldEqual, 3)
		So(snap[0].ID(), ShouldEqual, "a")
		So(snap[1].ID(), ShouldEqual, "b")
		So(snap[2].ID(), ShouldEqual, "c")

		r.remove("b")
		r.remove("nope")
		So(r.Len(), ShouldEqual, 2)
		So(len(snap), ShouldEqual, 3)
	})

	Convey("Registry survives concurrent use", t, func() {
		r := NewRegistry()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					id := fmt.Sprintf("%d-%d", i, j)
					r.insert(fakeHandle(id, time.Now()))
					r.remove(id)
				}
			}(i)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					for _, h := range r.Snapshot() {
						_ = h.ID()
					}
				}
			}()
		}
		wg.Wait()
		So(r.Len(), ShouldEqual, 0)
	})
}

func TestPropertyRegistryMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		model := map[string]bool{}
		ids := rapid.SliceOfN(rapid.StringMatching(`[a-f]{1,3}`), 1, 8).Draw(t, "ids")

		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			if rapid.Bool().Draw(t, "insert") {
				r.insert(fakeHandle(id, time.Now()))
				model[id] = true
			} else {
				r.remove(id)
				delete(model, id)
			}
		}

		if r.Len() != len(model) {
			t.Fatalf("registry has %d handles, model has %d", r.Len(), len(model))
		}
		got := []string{}
		for _, h := range r.Snapshot() {
			got = append(got, h.ID())
		}
		want := []string{}
		for id := range model {
			want = append(want, id)
		}
		sort.Strings(got)
		sort.Strings(want)
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("snapshot %v, model %v", got, want)
		}
	})
}
