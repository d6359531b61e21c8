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

//go:build windows

package tandem

import (
	"os"
	"syscall"
)

var defaultShell = []string{"cmd.exe", "/C"}

// cmd.exe resolves programs its own way, so missing ones are left for it
// to report.
const lookupCommands = false

var shellBuiltins map[string]bool

// Windows has no way to ask a console process to exit.  The interrupt is
// attempted, fails, and the failure is logged; the child is left alone.
var terminateSignal os.Signal = os.Interrupt

// shutdownSignals are the signals that request a supervisor shutdown.  The
// runtime maps console close, logoff and shutdown events to SIGTERM.
var shutdownSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}

func exitCode(ps *os.ProcessState) int {
	return ps.ExitCode()
}
