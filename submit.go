// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import (
	"time"

	"code.hybscloud.com/iox"
)

func (th *Thread) prepare(fn Action, pure bool) *Handshake {
	if fn == nil {
		panic("hsk: nil handshake action")
	}
	return &Handshake{work: fn, target: th, pure: pure}
}

// submit is the submission gate. The life check, the enqueue, and the
// poll-word projection share one read section of th.mu: a submission
// that observes the thread live completes its enqueue before the
// terminating write section can begin, so termination drains it; one
// that observes it gone never touches the queue. The count increment
// sits between enqueue and the carrier read, so whichever of this gate
// and a concurrent mount derivation runs second arms the poll word.
func (th *Thread) submit(h *Handshake) error {
	th.mu.RLock()
	if th.gone {
		th.mu.RUnlock()
		return ErrTargetGone
	}
	if err := th.queue.Enqueue(&h); err != nil {
		th.mu.RUnlock()
		return err
	}
	th.count.Add(1)
	c := th.carrier
	intr := th.blocked
	if c != nil {
		c.cell.Store(cellArmed)
	}
	th.mu.RUnlock()
	th.reg.stats.submitted.Add(1)
	if c != nil {
		th.reg.stats.projections.Add(1)
	}
	if intr != nil {
		intr.Interrupt()
		th.reg.stats.interrupts.Add(1)
	}
	return nil
}

// submitWait retries submit on queue backpressure with adaptive backoff
// (iox.Backoff), re-running the life gate on every attempt. It does not
// spawn goroutines or create channels.
func (th *Thread) submitWait(h *Handshake) error {
	var bo iox.Backoff
	for {
		err := th.submit(h)
		if err == nil || !iox.IsWouldBlock(err) {
			return err
		}
		bo.Wait()
	}
}

// submitDeadline is submitWait with a deadline on the backpressure
// wait. On timeout the handshake was never enqueued and will never run.
func (th *Thread) submitDeadline(h *Handshake, deadline time.Time) error {
	var bo iox.Backoff
	for {
		err := th.submit(h)
		if err == nil || !iox.IsWouldBlock(err) {
			return err
		}
		if !time.Now().Before(deadline) {
			th.reg.stats.timeouts.Add(1)
			return ErrTimeout
		}
		bo.Wait()
	}
}

func (th *Thread) trySubmit(fn Action, pure bool) (*Handshake, error) {
	if !th.reg.polling {
		return nil, ErrUnsupported
	}
	h := th.prepare(fn, pure)
	if err := th.submit(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Submit enqueues a side-effecting action for execution at the thread's
// next poll and returns its handle without blocking. The action runs on
// the carrier goroutine the target is mounted on, unless the target has
// side effects disabled, in which case it is parked until re-enabled.
//
// Submit never blocks: a full queue returns
// [code.hybscloud.com/iox.ErrWouldBlock] and the caller retries, or uses
// [Thread.Exec] to wait out the backpressure. Panics if fn is nil.
func (th *Thread) Submit(fn Action) (*Handshake, error) {
	return th.trySubmit(fn, false)
}

// SubmitPure enqueues a side-effect-free action. Pure actions are
// exempt from [Thread.SetAllowSideEffects]: they run at the next poll
// even while the target defers side-effecting work. The action must not
// mutate state observable outside the handshake. Panics if fn is nil.
func (th *Thread) SubmitPure(fn Action) (*Handshake, error) {
	return th.trySubmit(fn, true)
}

// Exec submits a side-effecting action and blocks until it resolves,
// waiting out queue backpressure and execution on adaptive backoff.
// Returns ErrTargetGone if the target terminates first, otherwise the
// action's own error, nil included, once it ran.
//
// Exec must not be called from the target's own carrier loop; see
// [Handshake.Await].
func (th *Thread) Exec(fn Action) error {
	if !th.reg.polling {
		return ErrUnsupported
	}
	h := th.prepare(fn, false)
	if err := th.submitWait(h); err != nil {
		return err
	}
	if h.Await() == Dropped {
		return ErrTargetGone
	}
	return h.Err()
}

// ExecTimeout is [Thread.Exec] bounded by d covering both the
// backpressure wait and the execution wait. On ErrTimeout after the
// submission went through, the handshake stays queued and may still
// execute; a timeout during submission means it never will.
func (th *Thread) ExecTimeout(fn Action, d time.Duration) error {
	if !th.reg.polling {
		return ErrUnsupported
	}
	deadline := time.Now().Add(d)
	h := th.prepare(fn, false)
	if err := th.submitDeadline(h, deadline); err != nil {
		return err
	}
	r, err := h.awaitDeadline(deadline)
	if err != nil {
		return err
	}
	if r == Dropped {
		return ErrTargetGone
	}
	return h.Err()
}
