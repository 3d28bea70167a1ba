// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import "sync"

// DefaultRingBufferSize is the default capacity of a Connection's internal
// byte queue connecting the filler (producer) and the frame reader
// (consumer) — SPEC_FULL.md §5.
const DefaultRingBufferSize = 64 * 1024

// byteRing is the explicit bounded byte queue called for in SPEC_FULL.md
// §9: a writer half (the filler, via Reserve/Advance) and a reader half
// (the drainer, via Peek/Release) sharing one buffer. It provides the
// connection's backpressure: the filler blocks in Reserve when the buffer
// is full, the drainer frees capacity by calling Release as it consumes
// bytes.
//
// Unlike a true circular ring, byteRing compacts the unread region to the
// front only once it has been fully drained (r == w). That is sufficient
// here because the drainer (frame reader) always consumes everything
// Peek hands it in one pass — see Connection.drain — so the buffer returns
// to fully-compacted state after every successful drain cycle.
type byteRing struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []byte
	r, w int // unread region is buf[r:w]

	done    bool
	doneErr error
}

func newByteRing(capacity int) *byteRing {
	if capacity <= 0 {
		capacity = DefaultRingBufferSize
	}
	rb := &byteRing{buf: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Reserve blocks until there is at least one byte of writable space (or
// the ring is closed) and returns that region for the caller to read
// transport bytes into directly. Call Advance with the number of bytes
// actually written.
func (rb *byteRing) Reserve() ([]byte, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for {
		if rb.done {
			return nil, rb.doneErr
		}
		if rb.r == rb.w {
			rb.r, rb.w = 0, 0
		}
		if rb.w < len(rb.buf) {
			return rb.buf[rb.w:], nil
		}
		rb.cond.Wait()
	}
}

// Advance records that n bytes were written into the region last returned
// by Reserve and wakes any blocked reader.
func (rb *byteRing) Advance(n int) {
	rb.mu.Lock()
	rb.w += n
	rb.cond.Broadcast()
	rb.mu.Unlock()
}

// Peek blocks until at least one unread byte is available and returns a
// view of the unread region, or returns ok == false once the ring is
// closed and fully drained. Call Release with the number of bytes actually
// consumed from the returned slice.
func (rb *byteRing) Peek() (p []byte, ok bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for {
		if rb.r < rb.w {
			return rb.buf[rb.r:rb.w], true
		}
		if rb.done {
			return nil, false
		}
		rb.cond.Wait()
	}
}

// Release records that n bytes returned by Peek have been consumed and
// wakes any blocked writer.
func (rb *byteRing) Release(n int) {
	rb.mu.Lock()
	rb.r += n
	rb.cond.Broadcast()
	rb.mu.Unlock()
}

// Close marks the ring done: Reserve returns err immediately, and Peek
// returns ok == false once the unread region has been fully drained. Close
// is idempotent; only the first call's err is retained.
func (rb *byteRing) Close(err error) {
	rb.mu.Lock()
	if !rb.done {
		rb.done = true
		rb.doneErr = err
	}
	rb.cond.Broadcast()
	rb.mu.Unlock()
}
