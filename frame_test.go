// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/pktconn"
)

// wireMessage builds the raw bytes of one header+payload message, the same
// way a Connection's peer would put one on the wire.
func wireMessage(msgType byte, payload []byte) []byte {
	total := pktconn.HeaderSize + len(payload)
	b := make([]byte, total)
	b[0] = byte(total)
	b[1] = byte(total >> 8)
	b[2] = byte(total >> 16)
	b[3] = msgType
	copy(b[pktconn.HeaderSize:], payload)
	return b
}

func TestFrameReaderByteAtATime(t *testing.T) {
	pool := pktconn.NewPool(4)
	fr := pktconn.NewFrameReader(pool, 0)
	defer fr.Close()

	wire := wireMessage(3, []byte("hello"))

	var delivered [][]byte
	for _, b := range wire {
		_, err := fr.Feed([]byte{b}, func(msg *pktconn.Message, action *pktconn.Action) {
			delivered = append(delivered, append([]byte(nil), msg.Bytes()...))
		})
		if err != nil {
			t.Fatalf("Feed byte %#x: %v", b, err)
		}
	}
	if len(delivered) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(delivered))
	}
	if !bytesEqualFrame(delivered[0], wire) {
		t.Fatalf("delivered bytes = %v, want %v", delivered[0], wire)
	}
}

func bytesEqualFrame(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFrameReaderCoalescedMessages(t *testing.T) {
	pool := pktconn.NewPool(4)
	fr := pktconn.NewFrameReader(pool, 0)
	defer fr.Close()

	m1 := wireMessage(1, []byte("AB"))
	m2 := wireMessage(2, []byte("CDE"))
	chunk := append(append([]byte{}, m1...), m2...)

	var types []byte
	consumed, err := fr.Feed(chunk, func(msg *pktconn.Message, action *pktconn.Action) {
		types = append(types, msg.MessageType())
	})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if consumed != len(chunk) {
		t.Fatalf("consumed %d, want %d", consumed, len(chunk))
	}
	if len(types) != 2 || types[0] != 1 || types[1] != 2 {
		t.Fatalf("delivered types = %v, want [1 2]", types)
	}
}

func TestFrameReaderRecycleReusesMessage(t *testing.T) {
	pool := pktconn.NewPool(4)
	fr := pktconn.NewFrameReader(pool, 0)
	defer fr.Close()

	var seen []*pktconn.Message
	chunk := append(wireMessage(1, []byte("x")), wireMessage(2, []byte("y"))...)
	_, err := fr.Feed(chunk, func(msg *pktconn.Message, action *pktconn.Action) {
		seen = append(seen, msg)
		action.Disposition = pktconn.Recycle
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen[0] != seen[1] {
		t.Fatalf("expected the same *Message reused across Recycle deliveries")
	}
}

func TestFrameReaderRetainAcquiresFreshMessage(t *testing.T) {
	pool := pktconn.NewPool(4)
	fr := pktconn.NewFrameReader(pool, 0)
	defer fr.Close()

	var seen []*pktconn.Message
	chunk := append(wireMessage(1, []byte("x")), wireMessage(2, []byte("y"))...)
	_, err := fr.Feed(chunk, func(msg *pktconn.Message, action *pktconn.Action) {
		seen = append(seen, msg)
		action.Disposition = pktconn.Retain
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen[0] == seen[1] {
		t.Fatalf("expected distinct *Message objects when the handler retains each one")
	}
}

func TestFrameReaderRejectsOversizeHeader(t *testing.T) {
	pool := pktconn.NewPool(4)
	fr := pktconn.NewFrameReader(pool, 0)
	defer fr.Close()

	b := make([]byte, pktconn.HeaderSize)
	total := pktconn.MaxPacketSize + 1
	b[0] = byte(total)
	b[1] = byte(total >> 8)
	b[2] = byte(total >> 16)
	b[3] = 0

	_, err := fr.Feed(b, func(*pktconn.Message, *pktconn.Action) {})
	if !errors.Is(err, pktconn.ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestFrameReaderEnforcesFragmentBudget(t *testing.T) {
	pool := pktconn.NewPool(4)
	fr := pktconn.NewFrameReader(pool, 2) // allow only 2 partial writes per message

	wire := wireMessage(1, []byte("abcdef"))

	var err error
	for _, b := range wire {
		_, err = fr.Feed([]byte{b}, func(*pktconn.Message, *pktconn.Action) {})
		if err != nil {
			break
		}
	}
	if !errors.Is(err, pktconn.ErrTooManyFragments) {
		t.Fatalf("expected ErrTooManyFragments, got %v", err)
	}
}

// TestFrameReaderPeerCloseMidHeader models the "peer close during payload"
// scenario: two messages are sent back to back, but the stream is cut
// after the second message's header is only partially delivered, so only
// the first message is ever completed and delivered.
func TestFrameReaderPeerCloseMidHeader(t *testing.T) {
	pool := pktconn.NewPool(4)
	fr := pktconn.NewFrameReader(pool, 0)
	defer fr.Close()

	m1 := wireMessage(5, []byte("AB"))
	partialHeaderOfM2 := wireMessage(6, []byte("CD"))[:2] // only 2 of 4 header bytes arrive

	chunk := append(append([]byte{}, m1...), partialHeaderOfM2...)

	var delivered int
	consumed, err := fr.Feed(chunk, func(*pktconn.Message, *pktconn.Action) {
		delivered++
	})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered %d messages, want 1 (second message's header is incomplete)", delivered)
	}
	if consumed != len(chunk) {
		t.Fatalf("consumed %d, want %d (partial header bytes are still consumed, just not completed)", consumed, len(chunk))
	}
}
