// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// ThreadID identifies a registered logical thread.
type ThreadID = uint64

// Interrupter wakes a logical thread parked in interruptible blocking
// so it can reach a poll site. Interrupt must tolerate spurious calls:
// a projection may fire after the thread already unparked, and several
// submitters may each fire once for the same backlog.
type Interrupter interface {
	Interrupt()
}

// Thread is the per-thread handshake state registered under a
// [Registry]. The authoritative pending signal is the atomic count;
// carrier poll words are projections of it and may be stale in the
// spurious direction only.
//
// Three roles touch a Thread. Submitters, from any goroutine, enqueue
// work. The owner, the carrier loop currently running the thread,
// consumes it at poll sites and calls the Set/Clear and mount methods.
// The registry terminates it after the owner has unmounted.
type Thread struct {
	// count is the number of enqueued, not yet consumed handshakes.
	// Incremented after a successful enqueue, decremented by the single
	// consumer after a successful dequeue. count != 0 therefore implies
	// a completed enqueue and a non-empty queue.
	count atomic.Uint32

	id    ThreadID
	reg   *Registry
	queue lfq.Queue[*Handshake]

	// mu guards the binding and lifecycle fields and orders poll-word
	// stores against carrier rebinding: submission gates and their cell
	// stores run in read sections, mount, unmount and termination in
	// write sections. Concurrent read-section stores all write the
	// armed value, so they commute.
	mu      sync.RWMutex
	carrier *Carrier
	blocked Interrupter
	gone    bool

	// Owner-private. Only the carrier loop running the thread touches
	// these; mount and unmount hand them off between loops under mu.
	sideFx   bool
	deferred []*Handshake
}

func newThread(reg *Registry, id ThreadID) *Thread {
	return &Thread{
		id:     id,
		reg:    reg,
		queue:  lfq.BuildMPSC[*Handshake](lfq.New(reg.capacity).SingleConsumer()),
		sideFx: true,
	}
}

// ID returns the identifier the thread was registered under.
func (th *Thread) ID() ThreadID { return th.id }

// Pending reports whether undelivered handshakes are queued on the
// thread. Deferred side-effecting actions parked while side effects
// were disabled are owner-private and not counted.
func (th *Thread) Pending() bool { return th.count.Load() != 0 }

// SetAllowSideEffects toggles delivery of side-effecting handshakes on
// the calling owner and returns the previous setting. While disabled,
// non-pure actions encountered at polls are parked on an owner-private
// list and pure actions keep flowing. Re-enabling re-arms the carrier
// poll word so the next poll delivers the parked backlog in order.
//
// Owner-only: call from the carrier loop currently running the thread.
func (th *Thread) SetAllowSideEffects(allow bool) bool {
	prev := th.sideFx
	th.sideFx = allow
	if allow && len(th.deferred) != 0 {
		th.mu.RLock()
		if c := th.carrier; c != nil {
			c.cell.Store(cellArmed)
		}
		th.mu.RUnlock()
	}
	return prev
}

// SetBlocked installs intr as the wakeup hook before the owner parks in
// interruptible blocking. If handshakes are already pending, intr fires
// immediately so the park observes the wakeup instead of sleeping
// through it. Owner-only.
func (th *Thread) SetBlocked(intr Interrupter) {
	th.mu.Lock()
	th.blocked = intr
	pending := th.count.Load() != 0
	th.mu.Unlock()
	if pending && intr != nil {
		intr.Interrupt()
		th.reg.stats.interrupts.Add(1)
	}
}

// ClearBlocked removes the wakeup hook after the owner returns from
// blocking. The owner should poll right after clearing: a handshake
// submitted while blocked may have been delivered only as an interrupt.
// Owner-only.
func (th *Thread) ClearBlocked() {
	th.mu.Lock()
	th.blocked = nil
	th.mu.Unlock()
}

// mount binds the thread to c and derives c's poll word from the
// authoritative state: queued handshakes, plus the deferred backlog if
// side effects are enabled. Deriving inside the write section closes
// the migration race: a submission gate runs either before this section
// and is covered by the derivation, or after it and projects into the
// new binding itself.
func (th *Thread) mount(c *Carrier) {
	if c.cur.Load() != nil {
		panic("hsk: carrier already occupied")
	}
	th.mu.Lock()
	if th.gone {
		th.mu.Unlock()
		panic("hsk: mount of terminated thread")
	}
	if th.carrier != nil {
		th.mu.Unlock()
		panic("hsk: thread already mounted")
	}
	th.carrier = c
	c.cur.Store(th)
	if th.count.Load() != 0 || (th.sideFx && len(th.deferred) != 0) {
		c.cell.Store(cellArmed)
		th.mu.Unlock()
		th.reg.stats.projections.Add(1)
		return
	}
	c.cell.Store(cellIdle)
	th.mu.Unlock()
}

// unmount dissolves the current binding. The poll word is left as is: a
// stale armed cell on a vacated carrier resolves as one spurious poll,
// never a missed handshake, and the next mount derives a fresh value.
func (th *Thread) unmount() {
	th.mu.Lock()
	c := th.carrier
	if c == nil {
		th.mu.Unlock()
		panic("hsk: thread not mounted")
	}
	th.carrier = nil
	c.cur.Store(nil)
	th.mu.Unlock()
}

// drain delivers pending work at a poll site on carrier c. Each pass
// delivers one deferred action when permitted, else one queued
// handshake, until both sources are exhausted. The final clear of the
// poll word re-checks the count and re-arms: a submission racing the
// clear is seen either by the re-check here or by the cell store in the
// submission gate, so it is delivered no later than the next poll.
func (th *Thread) drain(c *Carrier) {
	var bo iox.Backoff
	for {
		if th.sideFx && len(th.deferred) != 0 {
			h := th.deferred[0]
			th.deferred[0] = nil
			th.deferred = th.deferred[1:]
			th.run(h)
			continue
		}
		if th.count.Load() != 0 {
			h, err := th.queue.Dequeue()
			if err != nil {
				// count != 0 guarantees a completed enqueue; only
				// transient contention lands here.
				bo.Wait()
				continue
			}
			bo.Reset()
			th.count.Add(^uint32(0))
			if !h.pure && !th.sideFx {
				th.deferred = append(th.deferred, h)
				th.reg.stats.deferred.Add(1)
				continue
			}
			th.run(h)
			continue
		}
		c.cell.Store(cellIdle)
		if th.count.Load() == 0 {
			return
		}
		c.cell.Store(cellArmed)
	}
}

// run executes one handshake action on the owner. A panic is recorded
// as [*PanicError], the handle resolves Acked, and the panic re-raises
// out of [Carrier.Poll]; the poll word stays armed at that point, so
// the next poll resumes delivery of the remaining backlog.
func (th *Thread) run(h *Handshake) {
	defer func() {
		if r := recover(); r != nil {
			th.reg.stats.failed.Add(1)
			h.resolve(Acked, &PanicError{Value: r})
			panic(r)
		}
	}()
	if err := h.work(th); err != nil {
		th.reg.stats.failed.Add(1)
		h.resolve(Acked, err)
		th.reg.reportActionError(th.id, err)
		return
	}
	th.reg.stats.executed.Add(1)
	h.resolve(Acked, nil)
}

// drainTerminated resolves every undelivered handshake as Dropped. It
// runs after the terminating write section with no carrier mounted, so
// it is the sole consumer, and every submission gated live has already
// completed its enqueue, so no producer races the drain hint.
func (th *Thread) drainTerminated() {
	if d, ok := th.queue.(lfq.Drainer); ok {
		d.Drain()
	}
	var bo iox.Backoff
	for th.count.Load() != 0 {
		h, err := th.queue.Dequeue()
		if err != nil {
			bo.Wait()
			continue
		}
		bo.Reset()
		th.count.Add(^uint32(0))
		if h.resolve(Dropped, nil) {
			th.reg.stats.dropped.Add(1)
		}
	}
	for i, h := range th.deferred {
		if h.resolve(Dropped, nil) {
			th.reg.stats.dropped.Add(1)
		}
		th.deferred[i] = nil
	}
	th.deferred = nil
}
