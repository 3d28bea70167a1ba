// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

// DefaultMaxReceiveFragmentsPerPacket bounds how many distinct RawWrite
// calls the frame reader will accept while assembling a single message
// before giving up with ErrTooManyFragments. It protects against a peer
// that dribbles bytes in one at a time forever.
const DefaultMaxReceiveFragmentsPerPacket = 100

type framerPhase uint8

const (
	phaseAwaitingHeader framerPhase = iota
	phaseAwaitingPayload
)

// Disposition is the callback-local decision a message handler makes about
// what happens to the Message it was just given. The zero value, Recycle,
// is the default: the frame reader resets and reuses the same Message
// object for the next one, so synchronous handlers never allocate.
// Retain tells the frame reader the handler keeps the Message (e.g. to
// hand off to another goroutine); the frame reader then acquires a fresh
// one from the pool, and the handler becomes responsible for eventually
// calling Pool.Release on the Message it retained.
//
// This is the Go-idiomatic substitute for a callback with a shared
// ref-bool out-parameter (SPEC_FULL.md §9): a small value type returned by
// reference instead of aliased mutable state.
type Disposition uint8

const (
	Recycle Disposition = iota
	Retain
)

// Action is the token passed to a message handler so it can signal its
// Disposition. The zero value means Recycle.
type Action struct {
	Disposition Disposition
}

// MessageHandler is invoked once per fully-assembled message. It must set
// action.Disposition to Retain if it intends to keep msg beyond the call.
type MessageHandler func(msg *Message, action *Action)

// FrameReader is the receive-side state machine that reassembles messages
// from a continuous byte stream (SPEC_FULL.md §4.4). It holds exactly one
// in-progress Message, borrowed from a Pool, and exposes Feed to drain
// bytes as they arrive — one byte at a time, in arbitrary chunks, or with
// several whole messages coalesced into one chunk.
//
// A FrameReader is not safe for concurrent use; it is driven by exactly
// one goroutine (the connection's drainer, or a test driving it directly).
type FrameReader struct {
	pool         *Pool
	maxFragments int

	current *Message
	phase   framerPhase
}

// NewFrameReader constructs a FrameReader that acquires its in-progress
// Message objects from pool. maxFragments <= 0 uses
// DefaultMaxReceiveFragmentsPerPacket.
func NewFrameReader(pool *Pool, maxFragments int) *FrameReader {
	if maxFragments <= 0 {
		maxFragments = DefaultMaxReceiveFragmentsPerPacket
	}
	fr := &FrameReader{pool: pool, maxFragments: maxFragments}
	fr.current = pool.Acquire()
	_, _ = fr.current.RawSeek(0, SeekBegin)
	return fr
}

// Close returns the FrameReader's in-progress Message to the pool. Call it
// once the underlying stream is done (EOF or error) and no more Feed calls
// will follow.
func (fr *FrameReader) Close() {
	if fr.current != nil {
		fr.pool.Release(fr.current)
		fr.current = nil
	}
}

// rawWriteGuarded enforces the per-message fragment budget before handing
// bytes to the Message's raw cursor.
func (fr *FrameReader) rawWriteGuarded(p []byte) (int, error) {
	if fr.current.fragments >= fr.maxFragments {
		return 0, ErrTooManyFragments
	}
	return fr.current.RawWrite(p)
}

// Feed consumes bytes from b, delivering each fully-assembled message to
// handle in stream order before returning. It returns the number of bytes
// consumed (always len(b) on success — Feed never leaves unconsumed bytes
// unless it returns an error) and a non-nil error on protocol violation
// (ErrTooLong, ErrTooManyFragments) or an invalid Message state
// (ErrOverflow, which should not occur for well-formed headers and
// indicates a misconfigured pool).
//
// Feed never blocks and never allocates on the steady-state path (the
// Message objects are loaned from the Pool supplied to NewFrameReader).
func (fr *FrameReader) Feed(b []byte, handle MessageHandler) (consumed int, err error) {
	start := len(b)
	for len(b) > 0 {
		cur := fr.current

		if fr.phase == phaseAwaitingHeader {
			need := HeaderSize - cur.rawCursor
			take := need
			if take > len(b) {
				take = len(b)
			}
			if take > 0 {
				if _, werr := fr.rawWriteGuarded(b[:take]); werr != nil {
					return start - len(b), werr
				}
				b = b[take:]
			}
			if cur.rawCursor < HeaderSize {
				// Partial header; wait for more bytes.
				break
			}

			cur.RawSyncFromHeader()
			declared := cur.PacketSizeAccordingToHeader()
			if declared < HeaderSize || declared > MaxPacketSize {
				return start - len(b), ErrTooLong
			}
			fr.phase = phaseAwaitingPayload
		}

		// AwaitingPayload.
		declared := int(cur.PacketSizeAccordingToHeader())
		needed := declared - cur.rawCursor
		take := needed
		if take > len(b) {
			take = len(b)
		}
		if take > 0 {
			if _, werr := fr.rawWriteGuarded(b[:take]); werr != nil {
				return start - len(b), werr
			}
			b = b[take:]
		}

		if cur.rawCursor == declared {
			// Message complete: position the payload cursor at the start
			// of the payload and hand it to the caller.
			_, _ = cur.Seek(0, SeekBegin)
			action := Action{}
			handle(cur, &action)
			if action.Disposition == Retain {
				fr.current = fr.pool.Acquire()
			} else {
				cur.Reset()
				fr.current = cur
			}
			fr.phase = phaseAwaitingHeader
			continue
		}
	}
	return start - len(b), nil
}
