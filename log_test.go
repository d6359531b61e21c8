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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogRecords(t *testing.T) {
	Convey("A log keeps the newest records", t, func() {
		log := NewLog(3)
		recs, id0 := log.GetRecords(0)
		So(len(recs), ShouldEqual, 0)

		for i := 1; i <= 5; i++ {
			log.Append(StreamStdout, fmt.Sprintf("line %d", i))
		}
		recs, id := log.GetRecords(id0)
		So(id, ShouldNotEqual, id0)
		So(len(recs), ShouldEqual, 3)
		So(recs[0].Text, ShouldEqual, "line 3")
		So(recs[2].Text, ShouldEqual, "line 5")
		So(recs[2].Id, ShouldEqual, id)
		So(recs[0].Id, ShouldBeLessThan, recs[1].Id)

		Convey("An unchanged log returns nothing", func() {
			recs, again := log.GetRecords(id)
			So(recs, ShouldBeNil)
			So(again, ShouldEqual, id)
		})
	})

	Convey("Watch wakes up on new records", t, func() {
		log := NewLog(10)
		_, id := log.GetRecords(0)

		go func() {
			time.Sleep(20 * time.Millisecond)
			log.Append(StreamStderr, "oops")
		}()
		nid := log.Watch(id, 5*time.Second)
		So(nid, ShouldNotEqual, id)
		recs, _ := log.GetRecords(id)
		So(len(recs), ShouldEqual, 1)
		So(recs[0].Stream, ShouldEqual, StreamStderr)
	})

	Convey("Watch gives up after expiring", t, func() {
		log := NewLog(10)
		_, id := log.GetRecords(0)
		start := time.Now()
		So(log.Watch(id, 20*time.Millisecond), ShouldEqual, id)
		So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 20*time.Millisecond)
		So(log.Watch(id, 0), ShouldEqual, id)
	})
}

func TestOutputLog(t *testing.T) {
	Convey("Output is kept per process", t, func() {
		o := NewOutputLog(0)
		o.Line("db", StreamStdout, "ready")
		o.Line("api", StreamStderr, "boom")
		o.Line("db", StreamStdout, "still ready")

		So(o.Names(), ShouldResemble, []string{"api", "db"})
		recs, _ := o.Log("db").GetRecords(0)
		So(len(recs), ShouldEqual, 2)
		So(recs[1].Text, ShouldEqual, "still ready")
		So(o.Log("db"), ShouldPointTo, o.Log("db"))
	})
}
