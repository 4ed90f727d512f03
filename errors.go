// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import (
	"errors"
	"fmt"
)

// Semantic errors returned by submission and completion operations.
// Queue backpressure is reported as [code.hybscloud.com/iox.ErrWouldBlock]
// (test with iox.IsWouldBlock); everything below is a terminal condition.
var (
	// ErrTargetGone reports that the target thread is not registered, or
	// terminated before the handshake could execute.
	ErrTargetGone = errors.New("hsk: target thread gone")

	// ErrTimeout reports that a bounded synchronous wait elapsed. The
	// handshake is not cancelled: it remains queued and may still execute.
	ErrTimeout = errors.New("hsk: handshake wait timed out")

	// ErrUnsupported reports that the registry was built without polling
	// support. Static capability: every submission on such a registry
	// fails the same way, and polls are unconditional no-ops.
	ErrUnsupported = errors.New("hsk: handshakes unsupported by this registry")
)

// PanicError wraps a panic recovered from a handshake action. It is
// recorded on the handshake handle before the panic is re-raised at the
// poll site on the target thread.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("hsk: handshake action panicked: %v", e.Value)
}

// Result is the terminal disposition of a submitted handshake.
type Result uint32

const (
	// Pending means the handshake has not executed nor been dropped yet.
	Pending Result = iota
	// Acked means the action ran on the target thread. The action's own
	// error, if any, is available via [Handshake.Err].
	Acked
	// Dropped means the target terminated before the action could run.
	// The action executed zero times.
	Dropped
)

// String returns a human-readable representation of the result.
func (r Result) String() string {
	switch r {
	case Pending:
		return "Pending"
	case Acked:
		return "Acked"
	case Dropped:
		return "Dropped"
	default:
		return fmt.Sprintf("Result(%d)", uint32(r))
	}
}
