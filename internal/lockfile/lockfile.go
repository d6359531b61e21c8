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

// Package lockfile keeps two supervisors from running over the same set
// of processes, using an exclusive advisory lock on a file.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const retryInterval = 50 * time.Millisecond

var ErrLocked = errors.New("lock is held by another process")

// Lock is a held lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the exclusive lock on path, creating the file (and its
// directory) if needed.  With wait <= 0 it tries exactly once; otherwise
// it retries until wait elapses or ctx is done.  A lock held elsewhere
// yields an error wrapping ErrLocked.
func Acquire(ctx context.Context, path string, wait time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(path)

	var locked bool
	var err error
	if wait <= 0 {
		locked, err = fl.TryLock()
	} else {
		tctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		locked, err = fl.TryLockContext(tctx, retryInterval)
		if err != nil && tctx.Err() != nil && ctx.Err() == nil {
			// Our own timeout, not the caller's cancellation.
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release drops the lock.  The file is left on disk; removing it could
// break a lock taken concurrently by another process.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Close()
}
