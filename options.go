// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hsk

import "github.com/joeycumines/logiface"

// defaultQueueCapacity is the per-thread action queue capacity used
// when [WithQueueCapacity] is not given.
const defaultQueueCapacity = 1024

// Option configures a [Registry] at construction.
type Option func(*Registry)

// WithQueueCapacity sets the per-thread action queue capacity. The
// capacity rounds up to the next power of two. Panics if n < 2.
func WithQueueCapacity(n int) Option {
	if n < 2 {
		panic("hsk: queue capacity must be at least 2")
	}
	return func(r *Registry) { r.capacity = n }
}

// WithLogger sets the structured logger for registry lifecycle events
// and action failures. A nil logger disables logging, the default.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(r *Registry) { r.logger = l }
}

// WithPolling enables or disables handshake support. On a registry
// built with WithPolling(false), every submission fails with
// [ErrUnsupported] and poll words are never armed, so executor loops
// run unchanged on either kind at fast-path cost only. Registration
// and mounting still operate.
func WithPolling(enabled bool) Option {
	return func(r *Registry) { r.polling = enabled }
}

// WithErrorHandler routes errors returned by handshake actions to fn
// instead of the logger. fn runs on the carrier goroutine that executed
// the action, after the handle resolved.
func WithErrorHandler(fn func(id ThreadID, err error)) Option {
	return func(r *Registry) { r.onError = fn }
}
