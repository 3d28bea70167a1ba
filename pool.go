// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import "sync"

// DefaultPoolCapacity is the default bound on how many Messages a Pool
// retains for reuse. Overflow beyond this is dropped rather than retained
// (SPEC_FULL.md §9: "we drop them").
const DefaultPoolCapacity = 100

// Pool is a bounded free list of reusable Messages. It exists to keep the
// hot receive path allocation-free: Acquire returns an existing reset
// Message when one is available, otherwise it constructs a new one; Release
// clears a Message and returns it to the free list, or drops it once the
// list is at capacity.
//
// Pool is safe for concurrent use from any number of goroutines. It gives
// no ordering guarantee across Acquire/Release calls beyond mutual
// exclusion of the free list — grounded on the same "reset on
// acquire/release, no ordering promises" contract the cache/memory entry
// pool in the capacitor example follows for pooled cache entries.
type Pool struct {
	mu       sync.Mutex
	free     []*Message
	capacity int

	hits, misses, dropped uint64

	onDrop func()
}

// NewPool constructs a Pool with the given capacity. A capacity <= 0 uses
// DefaultPoolCapacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &Pool{capacity: capacity}
}

// Acquire returns a Message ready for use: payload cursor past the header,
// raw cursor at 0, size at HeaderSize, buffer zeroed. Callers must eventually pass it to Release.
func (p *Pool) Acquire() *Message {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.misses++
		p.mu.Unlock()
		return NewMessage()
	}
	m := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.hits++
	p.mu.Unlock()
	return m
}

// Release resets m and returns it to the free list, unless the list is
// already at capacity, in which case m is dropped (left for the garbage
// collector).
func (p *Pool) Release(m *Message) {
	if m == nil {
		return
	}
	m.Reset()
	p.mu.Lock()
	if len(p.free) >= p.capacity {
		p.dropped++
		onDrop := p.onDrop
		p.mu.Unlock()
		if onDrop != nil {
			onDrop()
		}
		return
	}
	p.free = append(p.free, m)
	p.mu.Unlock()
}

// SetDropHook registers fn to be called (outside the pool's lock) every
// time Release drops a Message at capacity. Intended for wiring a Pool's
// overflow into the metrics layer; nil clears the hook.
func (p *Pool) SetDropHook(fn func()) {
	p.mu.Lock()
	p.onDrop = fn
	p.mu.Unlock()
}

// PoolStats reports cumulative Acquire/Release counters for observability.
type PoolStats struct {
	Hits    uint64
	Misses  uint64
	Dropped uint64
	Free    int
}

// Stats returns a snapshot of the pool's cumulative counters. Intended for
// the metrics layer (see metrics.go); not part of the protocol.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Hits: p.hits, Misses: p.misses, Dropped: p.dropped, Free: len(p.free)}
}
