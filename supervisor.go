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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Supervisor runs one RestartLoop per ProcessSpec and turns their outcomes
// into an exit code.
type Supervisor struct {
	name           string
	logger         *zap.Logger
	sinks          []Sink
	output         *OutputLog
	maxLog         int
	shell          []string
	env            []string
	signals        bool
	stopOnEscalate bool
	registry       *Registry
	shutdown       *ShutdownCoordinator
	bridge         *SignalBridge
	loops          []*RestartLoop
	created        time.Time
	running        atomic.Bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithName sets the name reported by the status API.
func WithName(name string) Option {
	return func(s *Supervisor) { s.name = name }
}

// WithLogger sets the logger for supervisor events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSink adds a destination for relayed output.  Output is always kept
// in the supervisor's OutputLog as well.
func WithSink(sink Sink) Option {
	return func(s *Supervisor) { s.sinks = append(s.sinks, sink) }
}

// WithOutputLogSize bounds the lines kept per process in the OutputLog.
func WithOutputLogSize(n int) Option {
	return func(s *Supervisor) { s.maxLog = n }
}

// WithShell overrides the shell used to run command lines.
func WithShell(shell ...string) Option {
	return func(s *Supervisor) { s.shell = shell }
}

// WithEnv replaces the environment of the children.
func WithEnv(env []string) Option {
	return func(s *Supervisor) { s.env = env }
}

// WithSignals controls whether Run installs the OS signal handlers.  It
// defaults to true.  Embedders that do their own signal handling turn it
// off and cancel Run's context, or call Shutdown, instead.
func WithSignals(on bool) Option {
	return func(s *Supervisor) { s.signals = on }
}

// WithStopOnEscalate controls what happens to the other processes once one
// loop has escalated.  By default nothing happens to them: they keep
// running under their own policy, Run returns 1 once they have all ended,
// and restarting the whole supervisor is left to whoever started it.  With
// it on, a shutdown is requested as if a signal had arrived, so the
// remaining children are terminated.
func WithStopOnEscalate(on bool) Option {
	return func(s *Supervisor) { s.stopOnEscalate = on }
}

// New validates specs and returns a Supervisor for them.
func New(specs []ProcessSpec, opts ...Option) (*Supervisor, error) {
	if e := ValidateSpecs(specs); e != nil {
		return nil, e
	}
	s := &Supervisor{
		name:     "tandem",
		logger:   zap.NewNop(),
		signals:  true,
		registry: NewRegistry(),
		shutdown: NewShutdownCoordinator(),
		created:  time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.output = NewOutputLog(s.maxLog)

	launcher := &Launcher{
		Shell:    s.shell,
		Env:      s.env,
		Registry: s.registry,
		Sink:     NewMultiSink(append([]Sink{s.output}, s.sinks...)...),
	}
	s.bridge = NewSignalBridge(s.shutdown, s.registry, s.logger)
	for _, spec := range specs {
		s.loops = append(s.loops, NewRestartLoop(spec, launcher, s.shutdown, s.logger))
		s.output.Log(spec.Name)
	}
	return s, nil
}

// ExitCode aggregates loop outcomes: 1 if any loop escalated or an
// internal error occurred, 0 otherwise.
func ExitCode(outcomes []Outcome, err error) int {
	if err != nil {
		return 1
	}
	for _, o := range outcomes {
		if o == OutcomeEscalate {
			return 1
		}
	}
	return 0
}

type loopResult struct {
	outcome Outcome
	err     error
}

func (s *Supervisor) runLoop(l *RestartLoop) (res loopResult) {
	defer func() {
		if r := recover(); r != nil {
			res = loopResult{
				outcome: OutcomeEscalate,
				err:     fmt.Errorf("%w: %s: panic: %v", ErrInternal, l.spec.Name, r),
			}
			l.state.terminal(OutcomeEscalate)
			s.logger.Error("restart loop panicked", zap.String("process", l.spec.Name), zap.Any("panic", r))
		}
	}()
	o, e := l.Run()
	return loopResult{outcome: o, err: e}
}

// Run starts every loop and blocks until the exit code is known.  Canceling
// ctx has the same effect as a termination signal.  Run may only be called
// once; later calls return 1 at once.
func (s *Supervisor) Run(ctx context.Context) int {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Error("supervisor already ran")
		return 1
	}
	s.logger.Info("starting process supervisor", zap.String("name", s.name), zap.Int("processes", len(s.loops)))

	if s.signals {
		s.bridge.Start()
		defer s.bridge.Stop()
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.bridge.Shutdown("context canceled")
		case <-stop:
		}
	}()

	// Outcomes are collected as they arrive so that an escalation can be
	// acted on while other loops still run; errors come from the group.
	results := make(chan Outcome, len(s.loops))
	var g errgroup.Group
	for _, l := range s.loops {
		l := l
		g.Go(func() error {
			res := s.runLoop(l)
			results <- res.outcome
			return res.err
		})
	}

	outcomes := make([]Outcome, 0, len(s.loops))
	for range s.loops {
		outcomes = append(outcomes, <-results)
		if s.stopOnEscalate && !s.shutdown.IsRequested() && ExitCode(outcomes, nil) != 0 {
			s.bridge.Shutdown("process escalated")
		}
	}
	err := g.Wait()

	code := ExitCode(outcomes, err)
	if code == 0 {
		s.logger.Info("all processes have ended without indication of error")
	} else {
		s.logger.Error("supervisor is exiting with failure",
			zap.Int("code", code), zap.Int("live", s.registry.Len()), zap.Error(err))
	}
	return code
}

// Shutdown requests a shutdown as if a termination signal had arrived.
func (s *Supervisor) Shutdown(reason string) bool {
	return s.bridge.Shutdown(reason)
}

func (s *Supervisor) Name() string {
	return s.name
}

// Created returns the time the supervisor was created.
func (s *Supervisor) Created() time.Time {
	return s.created
}

// ShutdownRequested reports whether shutdown has been requested.
func (s *Supervisor) ShutdownRequested() bool {
	return s.shutdown.IsRequested()
}

// Live returns the number of children currently alive.
func (s *Supervisor) Live() int {
	return s.registry.Len()
}

// Registry returns the registry of live children.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Output returns the in-memory log of relayed output.
func (s *Supervisor) Output() *OutputLog {
	return s.output
}

// Processes returns the status of every supervised process, in spec order.
func (s *Supervisor) Processes() []ProcessStatus {
	rv := make([]ProcessStatus, 0, len(s.loops))
	for _, l := range s.loops {
		rv = append(rv, l.Status())
	}
	return rv
}

// Process returns the status of the named process.
func (s *Supervisor) Process(name string) (ProcessStatus, bool) {
	for _, l := range s.loops {
		if l.spec.Name == name {
			return l.Status(), true
		}
	}
	return ProcessStatus{}, false
}
