// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import (
	"sync/atomic"
	"time"

	"code.hybscloud.com/iox"
)

// Action is the callback executed by a handshake on its target thread.
// It runs at a poll site of the carrier the target is mounted on, with
// the target [*Thread] as its argument. A non-nil error is recorded on
// the handle and reported to the registry's error handler; it does not
// affect other queued handshakes. A panic aborts the current drain and
// propagates out of [Carrier.Poll] after being recorded as [*PanicError].
type Action func(*Thread) error

// Handshake is the handle for one submitted action. The submitter keeps
// it to observe the outcome; the target resolves it exactly once.
//
// The state transition is monotonic: Pending to Acked, or Pending to
// Dropped, never back and never both.
type Handshake struct {
	work   Action
	target *Thread
	err    error
	state  atomic.Uint32
	pure   bool
}

// Target returns the thread the handshake was submitted to.
func (h *Handshake) Target() *Thread { return h.target }

// Result returns the current disposition without blocking.
func (h *Handshake) Result() Result {
	return Result(h.state.Load())
}

// Err returns the error recorded at resolution: the action's returned
// error, or a [*PanicError] if the action panicked. Err returns nil
// while the handshake is pending, and nil for dropped handshakes.
func (h *Handshake) Err() error {
	if Result(h.state.Load()) == Pending {
		return nil
	}
	return h.err
}

// Await blocks until the handshake resolves and returns the terminal
// result. Waits on adaptive backoff (iox.Backoff) without spawning
// goroutines or creating channels.
//
// Await must not be called from the target's own carrier loop: the
// action only runs at that loop's poll sites, so waiting there can
// never make progress. Use [Thread.Submit] fire-and-forget instead.
func (h *Handshake) Await() Result {
	var bo iox.Backoff
	for {
		if r := Result(h.state.Load()); r != Pending {
			return r
		}
		bo.Wait()
	}
}

// AwaitTimeout blocks like [Handshake.Await] but gives up after d with
// [ErrTimeout]. Timing out does not cancel the handshake: it stays
// queued on the target and may still execute later.
func (h *Handshake) AwaitTimeout(d time.Duration) (Result, error) {
	return h.awaitDeadline(time.Now().Add(d))
}

func (h *Handshake) awaitDeadline(deadline time.Time) (Result, error) {
	var bo iox.Backoff
	for {
		if r := Result(h.state.Load()); r != Pending {
			return r, nil
		}
		if !time.Now().Before(deadline) {
			h.target.reg.stats.timeouts.Add(1)
			return Pending, ErrTimeout
		}
		bo.Wait()
	}
}

// resolve records the terminal state exactly once and reports whether
// this call won the transition. err is only ever written by the carrier
// executing the action; dropped resolutions pass nil, so the single
// write is ordered before the CompareAndSwap that publishes it.
func (h *Handshake) resolve(r Result, err error) bool {
	if err != nil {
		h.err = err
	}
	return h.state.CompareAndSwap(uint32(Pending), uint32(r))
}
