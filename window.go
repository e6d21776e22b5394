package http2

import "sync/atomic"

const maxWindowSize = 1<<31 - 1

// Window is a signed 31-bit flow-control credit counter, shared by both
// connection-level and per-stream windows in both directions.
//
// https://tools.ietf.org/html/rfc7540#section-6.9
type Window struct {
	avail int64
}

func (w *Window) init(n int32) {
	atomic.StoreInt64(&w.avail, int64(n))
}

// Avail returns the current available credit. May be negative after a
// SETTINGS-driven shrink.
func (w *Window) Avail() int32 {
	return int32(atomic.LoadInt64(&w.avail))
}

// Update adds delta to the window. It fails with FlowControlError if the
// result would exceed 2^31-1; landing exactly on the limit is permitted.
func (w *Window) Update(delta int32) error {
	for {
		old := atomic.LoadInt64(&w.avail)
		nw := old + int64(delta)
		if nw > maxWindowSize {
			return NewGoAwayError(FlowControlError, "window update overflow")
		}
		if atomic.CompareAndSwapInt64(&w.avail, old, nw) {
			return nil
		}
	}
}

// Consume subtracts n unconditionally; the result may go negative when the
// peer has lowered SETTINGS.INITIAL_WINDOW_SIZE out from under in-flight data.
func (w *Window) Consume(n int32) {
	atomic.AddInt64(&w.avail, -int64(n))
}

// CanSend reports whether at least one byte of DATA may currently be sent.
func (w *Window) CanSend() bool {
	return w.Avail() > 0
}
