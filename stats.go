// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import "sync/atomic"

// counters aggregates registry-wide event counts. Each field is bumped
// atomically on its own path; there is no cross-field consistency.
type counters struct {
	submitted     atomic.Uint64
	executed      atomic.Uint64
	failed        atomic.Uint64
	dropped       atomic.Uint64
	deferred      atomic.Uint64
	timeouts      atomic.Uint64
	projections   atomic.Uint64
	interrupts    atomic.Uint64
	spuriousPolls atomic.Uint64
}

// Stats is a point-in-time snapshot of registry counters.
type Stats struct {
	// Submitted counts handshakes accepted into a target's queue.
	Submitted uint64
	// Executed counts actions that ran to completion without error.
	Executed uint64
	// Failed counts actions that returned an error or panicked.
	Failed uint64
	// Dropped counts handshakes resolved Dropped at target termination.
	Dropped uint64
	// Deferred counts side-effecting actions parked while the target
	// had side effects disabled.
	Deferred uint64
	// Timeouts counts bounded waits that elapsed before resolution.
	Timeouts uint64
	// Projections counts pending-state writes into carrier poll words.
	Projections uint64
	// Interrupts counts Interrupter wakeups of blocked targets.
	Interrupts uint64
	// SpuriousPolls counts polls that fired on a vacated carrier.
	SpuriousPolls uint64
}

// Stats returns a snapshot of the registry's counters. Each field is
// read atomically, but the snapshot is not a consistent cut across
// fields: counters bumped mid-snapshot may or may not be included.
func (r *Registry) Stats() Stats {
	return Stats{
		Submitted:     r.stats.submitted.Load(),
		Executed:      r.stats.executed.Load(),
		Failed:        r.stats.failed.Load(),
		Dropped:       r.stats.dropped.Load(),
		Deferred:      r.stats.deferred.Load(),
		Timeouts:      r.stats.timeouts.Load(),
		Projections:   r.stats.projections.Load(),
		Interrupts:    r.stats.interrupts.Load(),
		SpuriousPolls: r.stats.spuriousPolls.Load(),
	}
}
