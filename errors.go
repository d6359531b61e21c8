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
	"errors"
	"fmt"
)

var (
	ErrSpawn         = errors.New("unable to spawn process")
	ErrInternal      = errors.New("internal supervisor error")
	ErrNotStarted    = errors.New("process was never started")
	ErrEmptyName     = errors.New("process name is empty")
	ErrEmptyCommand  = errors.New("process command is empty")
	ErrDuplicateName = errors.New("duplicate process name")
	ErrNegativeDelay = errors.New("restart delay is negative")
	ErrNoProcesses   = errors.New("no processes to supervise")
)

// SpawnError reports that the operating system refused to create the child
// for a process.  A SpawnError always escalates, whatever the process policy.
type SpawnError struct {
	Name    string
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q (%s): %v", e.Name, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSpawn) match any SpawnError.
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawn
}
