// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"code.hybscloud.com/hsk"
	"code.hybscloud.com/iox"
)

// A full queue reports backpressure instead of blocking; draining makes
// room again.
func TestSubmitBackpressure(t *testing.T) {
	skipRace(t)
	reg := hsk.NewRegistry(hsk.WithQueueCapacity(2))
	th := reg.Register(1)
	c := reg.NewCarrier()
	reg.Mount(1, c)

	nop := func(*hsk.Thread) error { return nil }
	if _, err := th.Submit(nop); err != nil {
		t.Fatalf("Submit 1: %v", err)
	}
	if _, err := th.Submit(nop); err != nil {
		t.Fatalf("Submit 2: %v", err)
	}
	if _, err := th.Submit(nop); !iox.IsWouldBlock(err) {
		t.Fatalf("Submit 3: %v, want ErrWouldBlock", err)
	}

	c.Poll()

	if _, err := th.Submit(nop); err != nil {
		t.Fatalf("Submit after drain: %v", err)
	}
}

func TestExecRoundTrip(t *testing.T) {
	skipRace(t)
	reg := hsk.NewRegistry()
	th := reg.Register(1)
	stop := startWorker(reg, 1)
	defer stop()

	n := 0
	if err := th.Exec(func(*hsk.Thread) error {
		n++
		return nil
	}); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if n != 1 {
		t.Fatalf("executed %d times, want 1", n)
	}
}

func TestExecReturnsActionError(t *testing.T) {
	skipRace(t)
	boom := errors.New("boom")
	reg := hsk.NewRegistry(hsk.WithErrorHandler(func(hsk.ThreadID, error) {}))
	th := reg.Register(1)
	stop := startWorker(reg, 1)
	defer stop()

	if err := th.Exec(func(*hsk.Thread) error { return boom }); err != boom {
		t.Fatalf("Exec: %v, want %v", err, boom)
	}
}

// Exec waits out queue backpressure rather than failing.
func TestExecWaitsOutBackpressure(t *testing.T) {
	skipRace(t)
	reg := hsk.NewRegistry(hsk.WithQueueCapacity(2))
	th := reg.Register(1)

	nop := func(*hsk.Thread) error { return nil }
	for i := 0; i < 2; i++ {
		if _, err := th.Submit(nop); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	stop := startWorker(reg, 1)
	defer stop()

	if err := th.Exec(nop); err != nil {
		t.Fatalf("Exec: %v", err)
	}
}

// A waiter blocked on a queued handshake wakes with ErrTargetGone when
// the target terminates.
func TestExecWokenByUnregister(t *testing.T) {
	skipRace(t)
	reg := hsk.NewRegistry()
	th := reg.Register(1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- th.Exec(func(*hsk.Thread) error { return nil })
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !th.Pending() && time.Now().Before(deadline) {
		runtime.Gosched()
	}
	if !th.Pending() {
		t.Fatal("submission never landed")
	}

	reg.Unregister(1)

	if err := <-errCh; err != hsk.ErrTargetGone {
		t.Fatalf("Exec: %v, want ErrTargetGone", err)
	}
}

// Await timeouts leave the handshake queued; it still executes at the
// next poll.
func TestExecTimeoutLeavesHandshakeQueued(t *testing.T) {
	skipRace(t)
	reg := hsk.NewRegistry()
	th := reg.Register(1)
	c := reg.NewCarrier()
	reg.Mount(1, c)

	n := 0
	err := th.ExecTimeout(func(*hsk.Thread) error {
		n++
		return nil
	}, 10*time.Millisecond)
	if err != hsk.ErrTimeout {
		t.Fatalf("ExecTimeout: %v, want ErrTimeout", err)
	}
	if n != 0 {
		t.Fatal("action ran with nobody polling")
	}

	c.Poll()

	if n != 1 {
		t.Fatalf("executed %d times after poll, want 1", n)
	}
	if reg.Stats().Timeouts != 1 {
		t.Fatalf("Timeouts = %d, want 1", reg.Stats().Timeouts)
	}
}

// A submission-phase timeout never enqueues: the action must not run
// later.
func TestExecTimeoutDuringBackpressure(t *testing.T) {
	skipRace(t)
	reg := hsk.NewRegistry(hsk.WithQueueCapacity(2))
	th := reg.Register(1)
	c := reg.NewCarrier()
	reg.Mount(1, c)

	nop := func(*hsk.Thread) error { return nil }
	for i := 0; i < 2; i++ {
		if _, err := th.Submit(nop); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	n := 0
	err := th.ExecTimeout(func(*hsk.Thread) error {
		n++
		return nil
	}, 10*time.Millisecond)
	if err != hsk.ErrTimeout {
		t.Fatalf("ExecTimeout: %v, want ErrTimeout", err)
	}

	c.Poll()

	if n != 0 {
		t.Fatal("timed-out submission executed anyway")
	}
	if reg.Stats().Executed != 2 {
		t.Fatalf("Executed = %d, want 2", reg.Stats().Executed)
	}
}

func TestAwaitTimeoutPendingThenResolved(t *testing.T) {
	skipRace(t)
	reg := hsk.NewRegistry()
	th := reg.Register(1)
	c := reg.NewCarrier()
	reg.Mount(1, c)

	h, err := th.Submit(func(*hsk.Thread) error { return nil })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r, err := h.AwaitTimeout(10 * time.Millisecond)
	if err != hsk.ErrTimeout || r != hsk.Pending {
		t.Fatalf("AwaitTimeout: (%v, %v), want (Pending, ErrTimeout)", r, err)
	}

	c.Poll()

	r, err = h.AwaitTimeout(time.Second)
	if err != nil || r != hsk.Acked {
		t.Fatalf("AwaitTimeout after poll: (%v, %v), want (Acked, nil)", r, err)
	}
	if h.Await() != hsk.Acked {
		t.Fatal("Await after resolution should return immediately")
	}
}
