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
	"os"
	"os/signal"
	"sync"

	"go.uber.org/zap"
)

// SignalBridge turns termination signals received by the supervisor into a
// shutdown request, and passes SIGTERM on to every live child.
type SignalBridge struct {
	shutdown *ShutdownCoordinator
	registry *Registry
	logger   *zap.Logger

	sigs    chan os.Signal
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
	mx      sync.Mutex
}

// NewSignalBridge returns a bridge that is not yet listening for signals.
func NewSignalBridge(shutdown *ShutdownCoordinator, registry *Registry, logger *zap.Logger) *SignalBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalBridge{
		shutdown: shutdown,
		registry: registry,
		logger:   logger,
	}
}

// Start installs the signal handlers: SIGINT, SIGTERM, SIGQUIT and SIGHUP
// on POSIX systems.  While installed, these signals no longer terminate
// the supervisor itself.
func (b *SignalBridge) Start() {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.sigs = make(chan os.Signal, len(shutdownSignals))
	b.quit = make(chan struct{})
	signal.Notify(b.sigs, shutdownSignals...)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case sig := <-b.sigs:
				b.Trigger(sig)
			case <-b.quit:
				return
			}
		}
	}()
}

// Stop removes the signal handlers.
func (b *SignalBridge) Stop() {
	b.mx.Lock()
	defer b.mx.Unlock()
	if !b.started {
		return
	}
	b.started = false
	signal.Stop(b.sigs)
	close(b.quit)
	b.wg.Wait()
}

// Trigger handles one received signal.
func (b *SignalBridge) Trigger(sig os.Signal) bool {
	return b.Shutdown(sig.String())
}

// Shutdown requests the shutdown and terminates the live children.  Only
// the first request does anything; it returns true for that one.  The flag
// is set before the registry is read, so a child spawned concurrently is
// either in the snapshot or sees the flag once it is registered.
func (b *SignalBridge) Shutdown(reason string) bool {
	if !b.shutdown.RequestShutdown() {
		b.logger.Info("shutdown already in progress", zap.String("reason", reason))
		return false
	}
	live := b.registry.Snapshot()
	b.logger.Info("shutdown requested, terminating subprocesses",
		zap.String("reason", reason), zap.Int("live", len(live)))
	for _, h := range live {
		if e := h.Terminate(); e != nil {
			b.logger.Warn("failed to terminate subprocess",
				zap.String("process", h.Spec().Name), zap.Int("pid", h.Pid()), zap.Error(e))
		}
	}
	return true
}
