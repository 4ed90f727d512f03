// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import "sync/atomic"

// Carrier poll word values. Nonzero means the mounted thread may have
// deliverable work.
const (
	cellIdle uint32 = iota
	cellArmed
)

// Carrier is one execution lane that logical threads mount on. Its poll
// word caches whether the currently mounted thread has pending work, so
// the poll fast path is one atomic load and a predictable branch.
//
// A carrier belongs to a single executor loop: Poll, and the Mount and
// Unmount calls that rebind it, must all come from that loop.
type Carrier struct {
	serial Serial
	reg    *Registry
	cell   atomic.Uint32
	cur    atomic.Pointer[Thread]
}

// Serial returns the carrier's monotonically assigned identifier.
func (c *Carrier) Serial() Serial { return c.serial }

// Poll is the cooperative handshake point. The fast path is a single
// atomic load and branch. The slow path drains the mounted thread's
// pending work, executing actions on the calling goroutine; it returns
// once the backlog observed at this poll is delivered.
func (c *Carrier) Poll() {
	if c.cell.Load() != cellIdle {
		c.process()
	}
}

// process handles an armed poll word. An armed cell with no thread
// mounted is residue from a submission that raced unmount: clearing it
// costs one spurious poll and loses nothing, because pending state is
// re-derived from the thread itself at its next mount.
func (c *Carrier) process() {
	th := c.cur.Load()
	if th == nil {
		c.cell.Store(cellIdle)
		c.reg.stats.spuriousPolls.Add(1)
		return
	}
	th.drain(c)
}
