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

//go:build !windows

package tandem

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type loopFixture struct {
	reg      *Registry
	shutdown *ShutdownCoordinator
	bridge   *SignalBridge
	launcher *Launcher
	sink     *recordSink
}

func newLoopFixture(t *testing.T) *loopFixture {
	f := &loopFixture{
		reg:      NewRegistry(),
		shutdown: NewShutdownCoordinator(),
		sink:     &recordSink{},
	}
	f.bridge = NewSignalBridge(f.shutdown, f.reg, testLogger(t))
	f.launcher = NewLauncher(f.reg, f.sink)
	return f
}

func (f *loopFixture) loop(t *testing.T, spec ProcessSpec) *RestartLoop {
	return NewRestartLoop(spec, f.launcher, f.shutdown, testLogger(t))
}

// start runs the loop in the background; the result arrives on the
// returned channel.
func start(l *RestartLoop) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		o, _ := l.Run()
		ch <- o
	}()
	return ch
}

func TestRestartLoopCriticalExit(t *testing.T) {
	Convey("A critical process that exits on its own escalates", t, func() {
		f := newLoopFixture(t)
		l := f.loop(t, ProcessSpec{Name: "db", Command: "true", Critical: true})

		o, e := l.Run()
		So(e, ShouldBeNil)
		So(o, ShouldEqual, OutcomeEscalate)

		st := l.Status()
		So(st.State, ShouldEqual, StateTerminal)
		So(st.Starts, ShouldEqual, 1)
		So(*st.ExitCode, ShouldEqual, 0)
		So(*st.Outcome, ShouldEqual, OutcomeEscalate)
		So(f.reg.Len(), ShouldEqual, 0)
	})

	Convey("A non-critical process that exits just stops", t, func() {
		f := newLoopFixture(t)
		l := f.loop(t, ProcessSpec{Name: "job", Command: "exit 5"})

		o, e := l.Run()
		So(e, ShouldBeNil)
		So(o, ShouldEqual, OutcomeStopped)
		So(*l.Status().ExitCode, ShouldEqual, 5)
	})
}

func TestRestartLoopRestarts(t *testing.T) {
	Convey("A restartable process is relaunched until shutdown", t, func() {
		f := newLoopFixture(t)
		l := f.loop(t, ProcessSpec{
			Name:    "api",
			Command: "echo up; sleep 0.05; exit 3",
			Restart: true,
		})
		done := start(l)

		So(waitFor(10*time.Second, func() bool {
			return l.Status().Starts >= 3
		}), ShouldBeTrue)

		So(f.bridge.Shutdown("test"), ShouldBeTrue)

		var o Outcome
		select {
		case o = <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("loop did not stop after shutdown")
		}
		So(o, ShouldEqual, OutcomeStopped)

		st := l.Status()
		So(st.State, ShouldEqual, StateTerminal)
		starts := st.Starts
		// The last child may have been terminated before it printed.
		So(len(f.sink.get("api", StreamStdout)), ShouldBeGreaterThanOrEqualTo, starts-1)

		// Nothing is relaunched once the loop has ended.
		time.Sleep(100 * time.Millisecond)
		So(l.Status().Starts, ShouldEqual, starts)
		So(f.reg.Len(), ShouldEqual, 0)
	})

	Convey("A critical process stopped by shutdown does not escalate", t, func() {
		f := newLoopFixture(t)
		l := f.loop(t, ProcessSpec{Name: "db", Command: "exec sleep 30", Critical: true})
		done := start(l)

		So(waitFor(5*time.Second, func() bool { return f.reg.Len() == 1 }), ShouldBeTrue)
		So(f.bridge.Shutdown("test"), ShouldBeTrue)

		var o Outcome
		select {
		case o = <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("loop did not stop after shutdown")
		}
		So(o, ShouldEqual, OutcomeStopped)
		So(*l.Status().ExitCode, ShouldEqual, -15)
	})

	Convey("A restart delay is cut short by shutdown", t, func() {
		f := newLoopFixture(t)
		l := f.loop(t, ProcessSpec{
			Name:         "api",
			Command:      "exit 1",
			Restart:      true,
			RestartDelay: time.Hour,
		})
		done := start(l)

		So(waitFor(5*time.Second, func() bool {
			return l.Status().State == StateExited
		}), ShouldBeTrue)
		f.shutdown.RequestShutdown()

		var o Outcome
		select {
		case o = <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("restart delay was not interrupted")
		}
		So(o, ShouldEqual, OutcomeStopped)
		So(l.Status().Starts, ShouldEqual, 1)
	})
}

func TestRestartLoopShutdownFirst(t *testing.T) {
	Convey("Nothing is launched once shutdown was requested", t, func() {
		f := newLoopFixture(t)
		f.shutdown.RequestShutdown()
		l := f.loop(t, ProcessSpec{Name: "db", Command: "true", Critical: true, Restart: true})

		o, e := l.Run()
		So(e, ShouldBeNil)
		So(o, ShouldEqual, OutcomeStopped)
		So(l.Status().Starts, ShouldEqual, 0)
		So(l.Status().State, ShouldEqual, StateTerminal)
	})
}

func TestRestartLoopShutdownDuringSpawn(t *testing.T) {
	Convey("A child spawned as shutdown is requested is terminated", t, func() {
		f := newLoopFixture(t)
		// The flag is set without signaling anyone, so only the loop
		// itself can notice the new child.
		f.launcher.onSpawn = func(*ProcessHandle) { f.shutdown.RequestShutdown() }
		l := f.loop(t, ProcessSpec{Name: "db", Command: "exec sleep 30", Critical: true, Restart: true})
		done := start(l)

		var o Outcome
		select {
		case o = <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("child spawned during shutdown was left running")
		}
		So(o, ShouldEqual, OutcomeStopped)
		So(l.Status().Starts, ShouldEqual, 1)
		So(*l.Status().ExitCode, ShouldEqual, -15)
		So(f.reg.Len(), ShouldEqual, 0)
	})
}

func TestRestartLoopSpawnFailure(t *testing.T) {
	Convey("A spawn failure escalates whatever the policy", t, func() {
		for _, critical := range []bool{false, true} {
			f := newLoopFixture(t)
			f.launcher.Shell = []string{"/nonexistent/tandem-shell", "-c"}
			l := f.loop(t, ProcessSpec{Name: "ghost", Command: "true", Critical: critical, Restart: true})

			o, e := l.Run()
			So(e, ShouldBeNil)
			So(o, ShouldEqual, OutcomeEscalate)
			So(l.Status().Starts, ShouldEqual, 0)
			So(l.Status().State, ShouldEqual, StateTerminal)
		}
	})
}

func TestRestartLoopMissingCommand(t *testing.T) {
	Convey("A missing program escalates at once whatever the policy", t, func() {
		for _, critical := range []bool{false, true} {
			f := newLoopFixture(t)
			l := f.loop(t, ProcessSpec{Name: "ghost", Command: "/no/such/binary", Critical: critical, Restart: true})

			o, e := l.Run()
			So(e, ShouldBeNil)
			So(o, ShouldEqual, OutcomeEscalate)
			So(l.Status().Starts, ShouldEqual, 0)
			So(l.Status().ExitCode, ShouldBeNil)
			So(f.reg.Len(), ShouldEqual, 0)
		}
	})
}
