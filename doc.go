// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hsk provides cooperative thread handshakes with safepoint polling.
//
// A requester submits a short callback (a handshake action) against a target
// logical thread. The target, running unrelated work, executes the action at
// its own next poll point. Targets are never stopped preemptively and the
// common case costs a single atomic load.
//
// # Architecture
//
//   - Fast path: [Carrier.Poll] is one load of a per-carrier word plus a
//     branch. No side effects when no handshake is pending.
//   - Transport: per-thread bounded lock-free MPSC queues via
//     [code.hybscloud.com/lfq]. Submission is non-blocking and returns
//     [code.hybscloud.com/iox.ErrWouldBlock] on backpressure.
//   - Dispatch: the true branch of the poll drains the queue on the target
//     thread itself. Actions never run on the requester.
//   - Migration: a logical [Thread] may be unmounted from one [Carrier] and
//     mounted onto another. Mount re-derives the carrier-local poll word
//     from the thread's authoritative pending state, so a handshake
//     submitted while the thread was unmounted is never lost.
//
// # API Topologies
//
//   - Lifecycle: [Registry.Register], [Registry.Unregister],
//     [Registry.Lookup], [Registry.NewCarrier].
//   - Scheduling hooks: [Registry.Mount], [Registry.Unmount].
//   - Submission: [Thread.Submit], [Thread.SubmitPure] (non-blocking),
//     [Thread.Exec], [Thread.ExecTimeout] (synchronous), and
//     [Registry.Broadcast] for every registered thread.
//   - Target side: [Carrier.Poll] at agreed program points,
//     [Thread.SetAllowSideEffects] to gate side-effecting actions,
//     [Thread.SetBlocked] to cooperate from blocking operations.
//   - Completion: [Handshake.Await], [Handshake.AwaitTimeout],
//     [Handshake.Result], [Handshake.Err].
//
// # Integration
//
//   - Waiting: requesters and the drain loop wait past boundaries with
//     adaptive backoff ([code.hybscloud.com/iox.Backoff]). The package
//     spawns no goroutines and creates no channels.
//   - Observability: an optional nil-safe structured logger
//     ([github.com/joeycumines/logiface]) and [Registry.Stats] counters,
//     both kept strictly off the fast path.
//
// # Example
//
//	reg := hsk.NewRegistry()
//	th := reg.Register(1)
//	c := reg.NewCarrier()
//	reg.Mount(1, c)
//
//	// worker loop
//	go func() {
//		for running {
//			c.Poll()
//			work()
//		}
//	}()
//
//	// requester: runs fn on the worker at its next poll
//	err := reg.Exec(1, fn)
package hsk
