// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk_test

import (
	"sync/atomic"

	"code.hybscloud.com/hsk"
)

// startWorker mounts id on a fresh carrier and polls it in a tight loop
// on its own goroutine. The returned stop joins the loop, unmounts and
// unregisters the thread; handshakes that never ran resolve Dropped.
func startWorker(reg *hsk.Registry, id hsk.ThreadID) (stop func()) {
	c := reg.NewCarrier()
	reg.Mount(id, c)
	var quit atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for !quit.Load() {
			c.Poll()
		}
	}()
	return func() {
		quit.Store(true)
		<-done
		reg.Unmount(id)
		reg.Unregister(id)
	}
}
