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
	"sync"
	"time"
)

// State is where a supervised process is in its life.  A process moves
// through these states as follows:
//
//	Idle ---> Running ---> Exited ---> Running ...
//	  |                      |
//	  +-------------------> Terminal
//
// Terminal is final and carries the loop's Outcome.  Idle goes straight
// to Terminal when shutdown was requested before the first launch, or when
// the launch itself failed.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateExited
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTerminal:
		return "terminal"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProcessStatus is a point in time view of one supervised process.
type ProcessStatus struct {
	Spec     ProcessSpec `json:"spec"`
	State    State       `json:"state"`
	Pid      int         `json:"pid,omitempty"`
	Starts   int         `json:"starts"`
	ExitCode *int        `json:"exitCode,omitempty"`
	Outcome  *Outcome    `json:"outcome,omitempty"`
	Since    time.Time   `json:"since"`
}

type processState struct {
	status ProcessStatus
	mx     sync.Mutex
}

func newProcessState(spec ProcessSpec) *processState {
	return &processState{status: ProcessStatus{
		Spec:  spec,
		State: StateIdle,
		Since: time.Now(),
	}}
}

func (ps *processState) running(pid int) {
	ps.mx.Lock()
	if ps.status.State != StateTerminal {
		ps.status.State = StateRunning
		ps.status.Pid = pid
		ps.status.Starts++
		ps.status.Since = time.Now()
	}
	ps.mx.Unlock()
}

func (ps *processState) exited(code int) {
	ps.mx.Lock()
	if ps.status.State == StateRunning {
		ps.status.State = StateExited
		ps.status.Pid = 0
		ps.status.ExitCode = &code
		ps.status.Since = time.Now()
	}
	ps.mx.Unlock()
}

func (ps *processState) terminal(o Outcome) {
	ps.mx.Lock()
	if ps.status.State != StateTerminal {
		ps.status.State = StateTerminal
		ps.status.Pid = 0
		ps.status.Outcome = &o
		ps.status.Since = time.Now()
	}
	ps.mx.Unlock()
}

func (ps *processState) snapshot() ProcessStatus {
	ps.mx.Lock()
	defer ps.mx.Unlock()
	rv := ps.status
	if rv.ExitCode != nil {
		c := *rv.ExitCode
		rv.ExitCode = &c
	}
	if rv.Outcome != nil {
		o := *rv.Outcome
		rv.Outcome = &o
	}
	return rv
}
