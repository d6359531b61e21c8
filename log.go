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
	"time"
)

const (
	MaxLogRecords = 1000
)

type LogRecord struct {
	Id     int64     `json:"id,string"`
	Time   time.Time `json:"time"`
	Stream Stream    `json:"stream"`
	Text   string    `json:"text"`
}

// Log is a bounded ring of the most recent output lines of one process.
type Log struct {
	records    []LogRecord
	numRecords int
	maxRecords int
	id         int64
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
}

func (log *Log) lock() {
	log.mx.Lock()
}

func (log *Log) unlock() {
	log.mx.Unlock()
}

// Append records a line.
func (log *Log) Append(stream Stream, text string) {
	log.lock()
	idx := log.numRecords % log.maxRecords
	log.id++
	log.records[idx] = LogRecord{
		Id:     log.id,
		Time:   time.Now(),
		Stream: stream,
		Text:   text,
	}
	// NB: numRecords may exceed maxRecords once we have wrapped; it is
	// really used to track the next index.
	log.numRecords++
	for cv := range log.cvs {
		cv.Broadcast()
	}
	log.unlock()
}

// GetRecords returns the records that are stored, as well as an ID
// suitable for use as an Etag.  The last parameter can be the last ID
// that was checked, in which case this function will return nil immediately
// if the log has not changed since that ID was returned, without duplicating
// any records.  Note that IDs are not unique across different Log instances.
func (log *Log) GetRecords(last int64) ([]LogRecord, int64) {
	log.lock()
	defer log.unlock()
	if log.id == last {
		return nil, last
	}
	cnt := log.numRecords
	if cnt > log.maxRecords {
		cnt = log.maxRecords
	}
	recs := make([]LogRecord, 0, cnt)
	index := log.numRecords - cnt
	for j := 0; j < cnt; j++ {
		recs = append(recs, log.records[index%log.maxRecords])
		index++
	}
	return recs, log.id
}

// Watch blocks until the log changes from the state identified by last,
// or until expire elapses.  It returns the current ID.  An expire of zero
// just polls.
func (log *Log) Watch(last int64, expire time.Duration) int64 {
	expired := false
	var timer *time.Timer
	cv := sync.NewCond(&log.mx)
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			log.lock()
			expired = true
			cv.Broadcast()
			log.unlock()
		})
	} else {
		expired = true
	}

	log.lock()
	log.cvs[cv] = true
	for log.id == last && !expired {
		cv.Wait()
	}
	delete(log.cvs, cv)
	last = log.id
	log.unlock()
	if timer != nil {
		timer.Stop()
	}
	return last
}

// NewLog returns a Log keeping at most max records; a non-positive max
// selects MaxLogRecords.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Log{
		records:    make([]LogRecord, max),
		maxRecords: max,
		// Start from the clock so that etags differ across supervisor runs.
		id:  time.Now().UnixNano(),
		cvs: make(map[*sync.Cond]bool),
	}
}

// OutputLog is a Sink keeping a separate Log per process name.
type OutputLog struct {
	logs map[string]*Log
	max  int
	mx   sync.Mutex
}

// NewOutputLog returns an OutputLog whose per-process logs keep at most
// max records each.
func NewOutputLog(max int) *OutputLog {
	return &OutputLog{logs: make(map[string]*Log), max: max}
}

// Log returns the log of a process, creating it if needed.
func (o *OutputLog) Log(process string) *Log {
	o.mx.Lock()
	defer o.mx.Unlock()
	l, ok := o.logs[process]
	if !ok {
		l = NewLog(o.max)
		o.logs[process] = l
	}
	return l
}

// Names returns the processes that have a log, sorted.
func (o *OutputLog) Names() []string {
	o.mx.Lock()
	rv := make([]string, 0, len(o.logs))
	for n := range o.logs {
		rv = append(rv, n)
	}
	o.mx.Unlock()
	sort.Strings(rv)
	return rv
}

// Line implements Sink.
func (o *OutputLog) Line(process string, stream Stream, text string) {
	o.Log(process).Append(stream, text)
}
