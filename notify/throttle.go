// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notify

import (
	"sync"
	"time"
)

// DefaultThrottleInterval is the default backup throttle window.
const DefaultThrottleInterval = 10 * time.Second

type window struct {
	timer   *time.Timer
	pending func()
}

// Throttle runs at most one action per key per interval. The first call for
// an idle key runs immediately; calls made while the key's window is open
// replace each other, and the latest one runs when the window closes, which
// opens a new window. Actions run outside the throttle's lock.
type Throttle struct {
	interval time.Duration
	mu       sync.Mutex
	windows  map[string]*window
	stopped  bool
}

// NewThrottle creates a throttle with the given window.
func NewThrottle(interval time.Duration) (*Throttle, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Throttle{
		interval: interval,
		windows:  make(map[string]*window),
	}, nil
}

// Interval returns the throttle window.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Do schedules fn for key and reports whether it ran immediately.
func (t *Throttle) Do(key string, fn func()) bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	if w, ok := t.windows[key]; ok {
		w.pending = fn
		t.mu.Unlock()
		return false
	}
	t.open(key)
	t.mu.Unlock()

	fn()
	return true
}

// open starts a window for key. Callers hold t.mu.
func (t *Throttle) open(key string) {
	w := &window{}
	w.timer = time.AfterFunc(t.interval, func() { t.close(key, w) })
	t.windows[key] = w
}

func (t *Throttle) close(key string, w *window) {
	t.mu.Lock()
	if t.windows[key] != w {
		t.mu.Unlock()
		return
	}
	delete(t.windows, key)
	fn := w.pending
	if fn != nil && !t.stopped {
		t.open(key)
	}
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Pending reports whether key has a trailing action waiting.
func (t *Throttle) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[key]
	return ok && w.pending != nil
}

// Flush runs every pending trailing action now and closes all windows.
func (t *Throttle) Flush() {
	t.mu.Lock()
	var fns []func()
	for key, w := range t.windows {
		w.timer.Stop()
		if w.pending != nil {
			fns = append(fns, w.pending)
		}
		delete(t.windows, key)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Stop runs pending actions and makes every later Do a no-op.
func (t *Throttle) Stop() {
	t.Flush()
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}
