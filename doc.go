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

// Package tandem supervises a small, fixed set of long running processes
// that share one container, typically a database engine and the API
// server sitting in front of it.
//
// Every process is described by a ProcessSpec.  The Supervisor runs one
// RestartLoop per spec.  A loop launches the spec's shell command, relays
// the child's stdout and stderr line by line into a Sink, waits for the
// child to exit, and then either relaunches it (Restart) or ends with an
// Outcome.  A loop whose Critical process ends on its own escalates.  An
// escalation leaves the other processes alone and makes the supervisor
// exit with status 1 once they have all ended, so that the container
// runtime can decide what to do next.  WithStopOnEscalate turns an
// escalation into a shutdown instead.
//
// Shutdown is driven by a single ShutdownCoordinator flag.  The SignalBridge
// flips it on the first SIGINT, SIGTERM, SIGQUIT or SIGHUP and forwards
// SIGTERM to every live child found in the Registry.  Loops observe
// the flag and stop relaunching.  No child is ever killed forcefully; the
// supervisor waits for each one to exit on its own terms.
//
// The supervisor may be embedded in another program, or run standalone
// with the tandemd daemon, which adds configuration, logging, an optional
// read-only status API, and a single instance lock.
package tandem
