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
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatshard/storage"
)

// Dispatcher delivers activity events asynchronously. Delivery is best
// effort: a panicking sink or a released dispatcher loses the event and
// the failure is only logged.
type Dispatcher struct {
	sink   storage.ActivitySink
	pool   *ants.Pool
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ storage.ActivitySink = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher) error

// WithPoolSize sets the number of concurrent deliveries.
func WithPoolSize(size int) DispatcherOption {
	return func(d *Dispatcher) error {
		if size < 1 {
			size = 1
		}
		if d.pool != nil {
			d.pool.Release()
		}
		pool, err := newPool(size, d)
		if err != nil {
			return err
		}
		d.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDispatcher creates a dispatcher in front of sink.
func NewDispatcher(sink storage.ActivitySink, opts ...DispatcherOption) (*Dispatcher, error) {
	if sink == nil {
		return nil, ErrActivitySinkRequired
	}

	d := &Dispatcher{
		sink:   sink,
		logger: slog.Default(),
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := newPool(poolSize, d)
	if err != nil {
		return nil, err
	}
	d.pool = pool

	for _, opt := range opts {
		if err := opt(d); err != nil {
			d.Release()
			return nil, err
		}
	}

	return d, nil
}

func newPool(size int, d *Dispatcher) (*ants.Pool, error) {
	return ants.NewPool(size,
		ants.WithPanicHandler(func(v any) {
			d.logger.Error("activity sink panicked", "panic", v)
		}),
	)
}

// RecordActivity queues the event and returns immediately.
func (d *Dispatcher) RecordActivity(ownerID, kind string, info storage.ActivityInfo) {
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		d.sink.RecordActivity(ownerID, kind, info)
	})
	if err != nil {
		d.wg.Done()
		d.logger.Warn("activity dropped", "owner", ownerID, "kind", kind, "err", err)
	}
}

// Wait blocks until every queued event has been delivered or dropped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Release waits for queued events and stops the pool.
func (d *Dispatcher) Release() {
	if d.pool == nil {
		return
	}
	d.wg.Wait()
	d.pool.Release()
}
