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
	"time"

	"go.uber.org/zap"
)

// RestartLoop applies the restart and criticality policy of one spec.
type RestartLoop struct {
	spec     ProcessSpec
	launcher *Launcher
	shutdown *ShutdownCoordinator
	logger   *zap.Logger
	state    *processState
}

// NewRestartLoop returns a loop for spec.  A nil logger discards events.
func NewRestartLoop(spec ProcessSpec, launcher *Launcher, shutdown *ShutdownCoordinator, logger *zap.Logger) *RestartLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestartLoop{
		spec:     spec,
		launcher: launcher,
		shutdown: shutdown,
		logger:   logger.With(zap.String("process", spec.Name)),
		state:    newProcessState(spec),
	}
}

// Status returns the current status of the loop's process.
func (l *RestartLoop) Status() ProcessStatus {
	return l.state.snapshot()
}

func shouldRestart(spec ProcessSpec, shutdownRequested bool) bool {
	return spec.Restart && !shutdownRequested
}

// settle decides the outcome of a loop whose child ended for good.
func settle(spec ProcessSpec, shutdownRequested bool) Outcome {
	if spec.Critical && !shutdownRequested {
		return OutcomeEscalate
	}
	return OutcomeStopped
}

// Run launches the child, waits for it, and relaunches it for as long as
// the policy says so.  It returns once the child has ended for good.  A
// launch failure always yields OutcomeEscalate.  The error is non-nil only
// for internal failures, which the supervisor treats as fatal.  Run must
// be called only once.
func (l *RestartLoop) Run() (Outcome, error) {
	log := l.logger
	log.Info("creating subprocess", zap.String("command", l.spec.Command))

	for {
		if l.shutdown.IsRequested() {
			log.Info("shutdown requested, subprocess will not be launched")
			break
		}

		h, e := l.launcher.Spawn(l.spec)
		if e != nil {
			log.Error("failed to spawn subprocess", zap.Error(e))
			return l.finish(OutcomeEscalate), nil
		}
		l.state.running(h.Pid())
		log.Info("subprocess started", zap.Int("pid", h.Pid()), zap.String("id", h.ID()))

		// A shutdown requested between the spawn and now may have missed
		// this handle in the registry snapshot.
		if l.shutdown.IsRequested() {
			if e := h.Terminate(); e != nil {
				log.Warn("failed to terminate subprocess", zap.Int("pid", h.Pid()), zap.Error(e))
			}
		}

		code, e := h.Wait()
		if e != nil {
			log.Error("failed to collect subprocess exit status", zap.Error(e))
			return l.finish(OutcomeEscalate), e
		}
		l.state.exited(code)
		log.Info("subprocess exited", zap.Int("pid", h.Pid()), zap.Int("code", code))

		if !shouldRestart(l.spec, l.shutdown.IsRequested()) {
			log.Info("subprocess will NOT be restarted")
			break
		}

		log.Info("restarting subprocess", zap.String("command", l.spec.Command),
			zap.Duration("delay", l.spec.RestartDelay))
		if l.spec.RestartDelay > 0 {
			t := time.NewTimer(l.spec.RestartDelay)
			select {
			case <-t.C:
			case <-l.shutdown.Done():
				t.Stop()
			}
		}
	}

	return l.finish(settle(l.spec, l.shutdown.IsRequested())), nil
}

func (l *RestartLoop) finish(o Outcome) Outcome {
	l.state.terminal(o)
	if o == OutcomeEscalate {
		l.logger.Error("process has ended, escalating", zap.Stringer("outcome", o))
	} else {
		l.logger.Info("process has ended", zap.Stringer("outcome", o))
	}
	return o
}
