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
	"os"
	"syscall"
)

var defaultShell = []string{"/bin/sh", "-c"}

// lookupCommands enables the check for missing programs before a spawn.
const lookupCommands = true

// shellBuiltins are the words the POSIX shell handles itself, builtins and
// reserved words alike, so they need not exist on PATH.
var shellBuiltins = map[string]bool{
	".": true, ":": true, "!": true, "alias": true, "bg": true, "break": true,
	"case": true, "cd": true, "command": true, "continue": true, "do": true,
	"done": true, "echo": true, "elif": true, "else": true, "esac": true,
	"eval": true, "exec": true, "exit": true, "export": true, "false": true,
	"fc": true, "fg": true, "fi": true, "for": true, "getopts": true,
	"hash": true, "if": true, "jobs": true, "kill": true, "local": true,
	"printf": true, "pwd": true, "read": true, "readonly": true, "return": true,
	"set": true, "shift": true, "source": true, "test": true, "then": true,
	"times": true, "trap": true, "true": true, "type": true, "ulimit": true,
	"umask": true, "unalias": true, "unset": true, "until": true, "wait": true,
	"while": true,
}

var terminateSignal os.Signal = syscall.SIGTERM

// shutdownSignals are the signals that request a supervisor shutdown.
var shutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	syscall.SIGHUP,
}

func exitCode(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}
