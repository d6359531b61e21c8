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
	"strings"
	"time"
)

// ProcessSpec describes one supervised process.  It is a plain value and is
// never modified once handed to a Supervisor.
type ProcessSpec struct {
	// Name identifies the process in logs and in the status API.
	Name string `json:"name"`

	// Command is a shell command line, run through the platform shell.
	Command string `json:"command"`

	// Restart relaunches the command every time it exits, until shutdown.
	Restart bool `json:"restart"`

	// Critical makes the supervisor fail when the process ends for good
	// without a shutdown having been requested.
	Critical bool `json:"critical"`

	// RestartDelay is waited between an exit and the relaunch.  Zero
	// relaunches immediately.
	RestartDelay time.Duration `json:"restartDelay,omitempty"`
}

// Validate checks a single spec.
func (s ProcessSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("%s: %w", s.Name, ErrEmptyCommand)
	}
	if s.RestartDelay < 0 {
		return fmt.Errorf("%s: %w", s.Name, ErrNegativeDelay)
	}
	return nil
}

// ValidateSpecs checks every spec, and that names are unique.
func ValidateSpecs(specs []ProcessSpec) error {
	if len(specs) == 0 {
		return ErrNoProcesses
	}
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if e := s.Validate(); e != nil {
			return e
		}
		if seen[s.Name] {
			return fmt.Errorf("%s: %w", s.Name, ErrDuplicateName)
		}
		seen[s.Name] = true
	}
	return nil
}

// Outcome is how a RestartLoop ended.
type Outcome int

const (
	// OutcomeStopped means the loop ended without a failure signal.
	OutcomeStopped Outcome = iota

	// OutcomeEscalate means the supervisor as a whole must fail.
	OutcomeEscalate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStopped:
		return "stopped"
	case OutcomeEscalate:
		return "escalate"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText renders the outcome as its name, for the status API.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
