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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Launcher spawns the children of ProcessSpecs.  Every child it spawns is
// inserted into Registry and relays its output into Sink.
type Launcher struct {
	// Shell is the argv prefix used to run a command line; the command
	// is appended as the last argument.  Empty selects the platform
	// default, /bin/sh -c on POSIX systems.
	Shell []string

	// Env, when non-nil, replaces the supervisor's own environment.
	Env []string

	Registry *Registry
	Sink     Sink

	// onSpawn, if set, sees every handle once it is registered.
	onSpawn func(*ProcessHandle)
}

// NewLauncher returns a Launcher using the default shell.
func NewLauncher(reg *Registry, sink Sink) *Launcher {
	return &Launcher{Registry: reg, Sink: sink}
}

func (l *Launcher) command(spec ProcessSpec) *exec.Cmd {
	shell := l.Shell
	if len(shell) == 0 {
		shell = defaultShell
	}
	args := append(copyArray(shell[1:]), spec.Command)
	cmd := exec.Command(shell[0], args...)
	if l.Env != nil {
		cmd.Env = copyArray(l.Env)
	}
	return cmd
}

// shellSyntax holds the characters that make a command line more than a
// program name followed by plain arguments.
const shellSyntax = "|&;<>()$`\\\"'*?[]#~={}\n"

// lookup checks that the program of a simple command line exists, so that
// a missing program is reported as a SpawnError rather than as the shell's
// exit status 127.  Command lines using shell syntax or starting with a
// builtin are left to the shell, as are those run under a custom shell or
// environment, where our PATH says nothing.
func (l *Launcher) lookup(spec ProcessSpec) error {
	if !lookupCommands || len(l.Shell) != 0 || l.Env != nil {
		return nil
	}
	if strings.ContainsAny(spec.Command, shellSyntax) {
		return nil
	}
	words := strings.Fields(spec.Command)
	if len(words) == 0 || shellBuiltins[words[0]] {
		return nil
	}
	_, e := exec.LookPath(words[0])
	return e
}

func copyArray(src []string) []string {
	rv := make([]string, 0, len(src)+1)
	rv = append(rv, src...)
	return rv
}

// Spawn starts a child for spec.  The returned handle is already present
// in the registry, and both of its output streams are being relayed.  The
// caller must eventually call Wait on it.  If the program cannot be found
// or the operating system cannot create the child, the error is a
// *SpawnError.
func (l *Launcher) Spawn(spec ProcessSpec) (*ProcessHandle, error) {
	if e := l.lookup(spec); e != nil {
		return nil, &SpawnError{Name: spec.Name, Command: spec.Command, Err: e}
	}
	cmd := l.command(spec)

	stdout, e := cmd.StdoutPipe()
	if e != nil {
		return nil, &SpawnError{Name: spec.Name, Command: spec.Command, Err: e}
	}
	stderr, e := cmd.StderrPipe()
	if e != nil {
		return nil, &SpawnError{Name: spec.Name, Command: spec.Command, Err: e}
	}
	if e := cmd.Start(); e != nil {
		return nil, &SpawnError{Name: spec.Name, Command: spec.Command, Err: e}
	}

	h := &ProcessHandle{
		id:       uuid.NewString(),
		spec:     spec,
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		started:  time.Now(),
		registry: l.Registry,
		sink:     l.Sink,
		done:     make(chan struct{}),
	}
	if h.registry != nil {
		h.registry.insert(h)
	}
	h.relay.Add(2)
	go h.relayOutput(stdout, StreamStdout)
	go h.relayOutput(stderr, StreamStderr)
	if l.onSpawn != nil {
		l.onSpawn(h)
	}
	return h, nil
}

// ProcessHandle is one running (or recently exited) child.  It is owned by
// whoever spawned it; the registry only refers to it so that signals can
// be forwarded.
type ProcessHandle struct {
	id       string
	spec     ProcessSpec
	cmd      *exec.Cmd
	pid      int
	started  time.Time
	registry *Registry
	sink     Sink

	relay    sync.WaitGroup
	waitOnce sync.Once
	done     chan struct{}
	code     int
	err      error
}

// ID returns the opaque id of the handle.  Ids are never reused.
func (h *ProcessHandle) ID() string {
	return h.id
}

func (h *ProcessHandle) Spec() ProcessSpec {
	return h.spec
}

func (h *ProcessHandle) Pid() int {
	return h.pid
}

// Started returns the time the child was spawned.
func (h *ProcessHandle) Started() time.Time {
	return h.started
}

// relayOutput copies r to the sink line by line until EOF.  A final line
// without a newline is still delivered.
func (h *ProcessHandle) relayOutput(r io.Reader, stream Stream) {
	defer h.relay.Done()
	reader := bufio.NewReader(r)
	for {
		line, e := reader.ReadString('\n')
		if len(line) != 0 && h.sink != nil {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			h.sink.Line(h.spec.Name, stream, line)
		}
		if e != nil {
			// EOF, or the pipe was closed under us; either way the
			// stream is finished.
			return
		}
	}
}

// Wait blocks until the child has exited and both of its streams have been
// fully relayed, then removes the handle from the registry and returns the
// exit code.  A child killed by a signal reports the negated signal number.
// Wait may be called any number of times, from any goroutine; all callers
// get the same result.  The error is non-nil only when the exit status
// could not be collected at all, and then wraps ErrInternal.
func (h *ProcessHandle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		// Pipes must be drained before cmd.Wait, which closes them.
		h.relay.Wait()
		h.code, h.err = exitStatus(h.cmd.Wait())
		if h.err != nil {
			h.err = fmt.Errorf("%w: wait %q: %v", ErrInternal, h.spec.Name, h.err)
		}
		if h.registry != nil {
			h.registry.remove(h.id)
		}
		close(h.done)
	})
	return h.code, h.err
}

// Exited reports whether Wait has completed.
func (h *ProcessHandle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Signal delivers sig to the child without waiting for any reaction.
// Signaling a child that has already exited is not an error.
func (h *ProcessHandle) Signal(sig os.Signal) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return ErrNotStarted
	}
	if h.Exited() {
		return nil
	}
	e := h.cmd.Process.Signal(sig)
	if errors.Is(e, os.ErrProcessDone) {
		return nil
	}
	return e
}

// Terminate asks the child to exit, with SIGTERM on POSIX systems.  It
// never kills the child forcefully.
func (h *ProcessHandle) Terminate() error {
	return h.Signal(terminateSignal)
}

func exitStatus(e error) (int, error) {
	if e == nil {
		return 0, nil
	}
	var xe *exec.ExitError
	if errors.As(e, &xe) {
		return exitCode(xe.ProcessState), nil
	}
	return -1, e
}
