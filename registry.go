// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// Registry owns the thread and carrier universe of one handshake
// domain. Every cross-thread operation goes through it or through the
// [*Thread] handles it returns. The zero value is not usable; construct
// with [NewRegistry].
type Registry struct {
	mu      sync.RWMutex
	threads map[ThreadID]*Thread

	capacity int
	polling  bool
	logger   *logiface.Logger[logiface.Event]
	onError  func(ThreadID, error)

	stats counters
}

// NewRegistry creates a registry with the given options. By default
// handshakes are supported, per-thread queues hold 1024 entries, and
// logging is disabled.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		threads:  make(map[ThreadID]*Thread),
		capacity: defaultQueueCapacity,
		polling:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates the handshake state for a new logical thread and
// returns its handle. The thread starts unmounted with side effects
// enabled. Panics if id is already registered.
func (r *Registry) Register(id ThreadID) *Thread {
	th := newThread(r, id)
	r.mu.Lock()
	if _, dup := r.threads[id]; dup {
		r.mu.Unlock()
		panic("hsk: thread id already registered")
	}
	r.threads[id] = th
	r.mu.Unlock()
	r.logger.Debug().
		Uint64(`thread`, id).
		Log(`thread registered`)
	return th
}

// Unregister terminates a logical thread. Undelivered handshakes,
// including any deferred side-effecting backlog, resolve as Dropped and
// their actions never run. Panics if id is unknown or still mounted:
// the owner must unmount before the thread may terminate.
func (r *Registry) Unregister(id ThreadID) {
	r.mu.Lock()
	th, ok := r.threads[id]
	if !ok {
		r.mu.Unlock()
		panic("hsk: unregister of unknown thread")
	}
	th.mu.Lock()
	if th.carrier != nil {
		th.mu.Unlock()
		r.mu.Unlock()
		panic("hsk: unregister of mounted thread")
	}
	th.gone = true
	th.mu.Unlock()
	delete(r.threads, id)
	r.mu.Unlock()
	th.drainTerminated()
	r.logger.Debug().
		Uint64(`thread`, id).
		Log(`thread unregistered`)
}

// Lookup returns the handle for a registered thread id.
func (r *Registry) Lookup(id ThreadID) (*Thread, bool) {
	r.mu.RLock()
	th, ok := r.threads[id]
	r.mu.RUnlock()
	return th, ok
}

// NewCarrier creates an execution lane for mounting logical threads.
// Carriers are never destroyed; an abandoned carrier is garbage
// collected once unreferenced.
func (r *Registry) NewCarrier() *Carrier {
	c := &Carrier{serial: nextSerial(), reg: r}
	r.logger.Debug().
		Uint64(`carrier`, uint64(c.serial)).
		Log(`carrier created`)
	return c
}

// Mount binds thread id to carrier c and derives c's poll word from the
// thread's pending state. Call from c's executor loop when it takes up
// the thread. Panics if id is unknown, the thread is already mounted,
// or c already has a thread.
func (r *Registry) Mount(id ThreadID, c *Carrier) {
	if c == nil {
		panic("hsk: mount on nil carrier")
	}
	if c.reg != r {
		panic("hsk: carrier belongs to a different registry")
	}
	th, ok := r.Lookup(id)
	if !ok {
		panic("hsk: mount of unknown thread")
	}
	th.mount(c)
	r.logger.Debug().
		Uint64(`thread`, id).
		Uint64(`carrier`, uint64(c.serial)).
		Log(`thread mounted`)
}

// Unmount dissolves thread id's carrier binding. Call from the carrier's
// executor loop when it stops running the thread. Panics if id is
// unknown or not mounted.
func (r *Registry) Unmount(id ThreadID) {
	th, ok := r.Lookup(id)
	if !ok {
		panic("hsk: unmount of unknown thread")
	}
	th.unmount()
	r.logger.Debug().
		Uint64(`thread`, id).
		Log(`thread unmounted`)
}

// Submit enqueues a side-effecting action on thread id without
// blocking. See [Thread.Submit].
func (r *Registry) Submit(id ThreadID, fn Action) (*Handshake, error) {
	if !r.polling {
		return nil, ErrUnsupported
	}
	th, ok := r.Lookup(id)
	if !ok {
		return nil, ErrTargetGone
	}
	return th.Submit(fn)
}

// SubmitPure enqueues a side-effect-free action on thread id without
// blocking. See [Thread.SubmitPure].
func (r *Registry) SubmitPure(id ThreadID, fn Action) (*Handshake, error) {
	if !r.polling {
		return nil, ErrUnsupported
	}
	th, ok := r.Lookup(id)
	if !ok {
		return nil, ErrTargetGone
	}
	return th.SubmitPure(fn)
}

// Exec submits fn to thread id and blocks until it resolves. See
// [Thread.Exec].
func (r *Registry) Exec(id ThreadID, fn Action) error {
	if !r.polling {
		return ErrUnsupported
	}
	th, ok := r.Lookup(id)
	if !ok {
		return ErrTargetGone
	}
	return th.Exec(fn)
}

// ExecTimeout submits fn to thread id and blocks until it resolves or d
// elapses. See [Thread.ExecTimeout].
func (r *Registry) ExecTimeout(id ThreadID, fn Action, d time.Duration) error {
	if !r.polling {
		return ErrUnsupported
	}
	th, ok := r.Lookup(id)
	if !ok {
		return ErrTargetGone
	}
	return th.ExecTimeout(fn, d)
}

// Broadcast submits a side-effecting fn to every thread registered at
// the moment of the snapshot, blocking on per-thread backpressure, and
// returns the accepted handles. Threads that terminate between the
// snapshot and their submission are skipped. Fails only with
// [ErrUnsupported]; each handle resolves independently.
func (r *Registry) Broadcast(fn Action) ([]*Handshake, error) {
	if !r.polling {
		return nil, ErrUnsupported
	}
	r.mu.RLock()
	targets := make([]*Thread, 0, len(r.threads))
	for _, th := range r.threads {
		targets = append(targets, th)
	}
	r.mu.RUnlock()
	hs := make([]*Handshake, 0, len(targets))
	for _, th := range targets {
		h := th.prepare(fn, false)
		if th.submitWait(h) != nil {
			continue
		}
		hs = append(hs, h)
	}
	return hs, nil
}

// reportActionError routes an action-returned error to the configured
// handler; without one it logs a warning. Panics are not routed here:
// they re-raise out of [Carrier.Poll] after being recorded on the
// handle.
func (r *Registry) reportActionError(id ThreadID, err error) {
	if r.onError != nil {
		r.onError(id, err)
		return
	}
	r.logger.Warning().
		Uint64(`thread`, id).
		Err(err).
		Log(`handshake action failed`)
}
