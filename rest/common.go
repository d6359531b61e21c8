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

// Package rest exposes a read-only JSON view of a running supervisor over
// HTTP, and a client for it.
package rest

import (
	"time"

	"github.com/tandem-run/tandem"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollTimeHeader asks the server to hold a conditional request (one
	// with If-None-Match) for up to this many seconds, until the resource
	// changes.
	PollTimeHeader = "X-Tandem-Poll-Time"

	// MaxPollTime caps PollTimeHeader.
	MaxPollTime = 5 * time.Minute
)

type SupervisorInfo struct {
	Name              string    `json:"name"`
	Created           time.Time `json:"created"`
	ShutdownRequested bool      `json:"shutdownRequested"`
	Live              int       `json:"live"`
}

type ProcessInfo struct {
	Name         string        `json:"name"`
	Command      string        `json:"command"`
	Restart      bool          `json:"restart"`
	Critical     bool          `json:"critical"`
	RestartDelay time.Duration `json:"restartDelay,omitempty"`
	State        string        `json:"state"`
	Pid          int           `json:"pid,omitempty"`
	Starts       int           `json:"starts"`
	ExitCode     *int          `json:"exitCode,omitempty"`
	Outcome      string        `json:"outcome,omitempty"`
	TimeStamp    time.Time     `json:"tstamp"`
}

func newProcessInfo(st tandem.ProcessStatus) *ProcessInfo {
	info := &ProcessInfo{
		Name:         st.Spec.Name,
		Command:      st.Spec.Command,
		Restart:      st.Spec.Restart,
		Critical:     st.Spec.Critical,
		RestartDelay: st.Spec.RestartDelay,
		State:        st.State.String(),
		Pid:          st.Pid,
		Starts:       st.Starts,
		ExitCode:     st.ExitCode,
		TimeStamp:    st.Since,
	}
	if st.Outcome != nil {
		info.Outcome = st.Outcome.String()
	}
	return info
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
