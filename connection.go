// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxSendIterations bounds the partial-write retry loop in Send: a
// transport write may accept fewer bytes than requested, and the sender
// loops advancing the unsent slice, but not forever.
const DefaultMaxSendIterations = 1000

// Options configures a Connection. Built with functional options, the same
// idiom the teacher's framer package uses for its own Options/Option type.
type Options struct {
	MaxClientPacketSize          int
	PoolCapacity                 int
	MaxReceiveFragmentsPerPacket int
	RingBufferSize               int
	MaxSendIterations            int

	Logger  *zap.Logger
	Metrics *Metrics
	Pool    *Pool
}

var defaultConnectionOptions = Options{
	MaxClientPacketSize:          MaxPacketSize,
	PoolCapacity:                 DefaultPoolCapacity,
	MaxReceiveFragmentsPerPacket: DefaultMaxReceiveFragmentsPerPacket,
	RingBufferSize:               DefaultRingBufferSize,
	MaxSendIterations:            DefaultMaxSendIterations,
}

// Option mutates Options; pass any number to NewConnection or Dial.
type Option func(*Options)

func WithMaxClientPacketSize(n int) Option {
	return func(o *Options) { o.MaxClientPacketSize = n }
}

func WithPoolCapacity(n int) Option {
	return func(o *Options) { o.PoolCapacity = n }
}

func WithMaxReceiveFragmentsPerPacket(n int) Option {
	return func(o *Options) { o.MaxReceiveFragmentsPerPacket = n }
}

func WithRingBufferSize(n int) Option {
	return func(o *Options) { o.RingBufferSize = n }
}

func WithMaxSendIterations(n int) Option {
	return func(o *Options) { o.MaxSendIterations = n }
}

// WithLogger injects a structured logger. Without it, a Connection logs
// nothing (a no-op zap core), not a panic or a silent fmt.Println.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics attaches a Metrics sink. Without it, metrics calls are
// no-ops.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithPool supplies a shared Pool (e.g. one Pool per Listener, amortizing
// Message reuse across every accepted Connection) instead of a private
// per-Connection one.
func WithPool(p *Pool) Option {
	return func(o *Options) { o.Pool = p }
}

func resolveOptions(opts ...Option) Options {
	o := defaultConnectionOptions
	o.Logger = nil
	o.Metrics = nil
	o.Pool = nil
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = nopLogger()
	}
	if o.Pool == nil {
		o.Pool = NewPool(o.PoolCapacity)
		if o.Metrics != nil {
			o.Pool.SetDropHook(o.Metrics.poolDrop)
		}
	}
	return o
}

// Stats is a per-Connection snapshot of cumulative byte and message
// counters, independent of whether a Metrics sink is attached.
type Stats struct {
	BytesReceived    uint64
	BytesSent        uint64
	MessagesReceived uint64
	MessagesSent     uint64
}

// DisconnectHandler is invoked at most once per Connection, when the
// receive loop ends for a reason other than a local Close call. reason is
// nil for an ordinary peer close.
type DisconnectHandler func(c *Connection, reason error)

// Connection wraps one transport stream (typically a net.Conn) with the
// fixed-header framing protocol: a bounded byte ring feeding a FrameReader
// on receive, and a bounded partial-write retry loop on send.
//
// A Connection is safe for concurrent Send calls (serialized internally)
// and for one concurrent ReadLoop call. It is not safe to call ReadLoop
// more than once concurrently.
type Connection struct {
	id   uuid.UUID
	conn net.Conn
	opts Options

	pool        *Pool
	frameReader *FrameReader
	ring        *byteRing

	onMessage      MessageHandler
	onDisconnected DisconnectHandler

	userClosed atomic.Bool
	reading    atomic.Bool

	sendMu sync.Mutex

	bytesIn, bytesOut       atomic.Uint64
	messagesIn, messagesOut atomic.Uint64
}

// NewConnection wraps an already-established transport connection.
func NewConnection(conn net.Conn, opts ...Option) *Connection {
	return newConnectionWithOptions(conn, resolveOptions(opts...))
}

// newConnectionWithOptions builds a Connection from already-resolved
// Options. Used directly by Listener so every accepted Connection shares
// the Listener's Pool/Logger/Metrics instead of re-resolving options (and
// allocating a fresh Pool) per accept.
func newConnectionWithOptions(conn net.Conn, o Options) *Connection {
	c := &Connection{
		id:   uuid.New(),
		conn: conn,
		opts: o,
		pool: o.Pool,
		ring: newByteRing(o.RingBufferSize),
	}
	c.frameReader = NewFrameReader(c.pool, o.MaxReceiveFragmentsPerPacket)
	c.opts.Metrics.connectionOpened()
	return c
}

// Dial establishes a new transport connection (network/address per
// net.Dial) and wraps it. Corresponds to the language-neutral
// Connection.connect(host, port) operation.
func Dial(ctx context.Context, network, address string, opts ...Option) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "pktconn: dial")
	}
	return NewConnection(conn, opts...), nil
}

// ID returns the Connection's process-local unique identifier, used for
// log correlation and metrics labeling.
func (c *Connection) ID() uuid.UUID { return c.id }

// RemoteAddr returns the transport's remote address, or nil if the
// underlying connection does not report one.
func (c *Connection) RemoteAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

// Stats returns a snapshot of cumulative byte and message counters.
func (c *Connection) Stats() Stats {
	return Stats{
		BytesReceived:    c.bytesIn.Load(),
		BytesSent:        c.bytesOut.Load(),
		MessagesReceived: c.messagesIn.Load(),
		MessagesSent:     c.messagesOut.Load(),
	}
}

// OnMessage registers the handler invoked once per fully-assembled
// incoming message. Must be set before ReadLoop starts; not safe to change
// concurrently with an active ReadLoop.
func (c *Connection) OnMessage(h MessageHandler) { c.onMessage = h }

// OnDisconnected registers the handler invoked once when the receive loop
// ends for a reason other than a local Close call.
func (c *Connection) OnDisconnected(h DisconnectHandler) { c.onDisconnected = h }

// Send writes msg's wire bytes (GetPacketMemory) to the transport in full,
// looping over partial writes up to Options.MaxSendIterations times. A
// zero-byte write from the transport ends the loop as "done" with
// whatever was sent so far, per the wire protocol's send semantics.
func (c *Connection) Send(msg *Message) (int, error) {
	if c.userClosed.Load() {
		return 0, ErrClosed
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	buf := msg.GetPacketMemory()
	total := 0
	for i := 0; i < c.opts.MaxSendIterations && len(buf) > 0; i++ {
		n, err := c.conn.Write(buf)
		if n > 0 {
			total += n
			buf = buf[n:]
			c.bytesOut.Add(uint64(n))
			c.opts.Metrics.bytesOut(n)
		}
		if err != nil {
			return total, pkgerrors.Wrap(err, "pktconn: send")
		}
		if n == 0 {
			return total, nil
		}
	}
	if len(buf) > 0 {
		return total, ErrSendStalled
	}
	c.messagesOut.Add(1)
	c.opts.Metrics.messageSent()
	return total, nil
}

// SendType acquires a Message from the connection's pool, sets its type,
// lets populate fill the payload, sends it, and releases the Message back
// to the pool. Corresponds to the language-neutral
// Connection.send(type, populate) operation.
func (c *Connection) SendType(msgType byte, populate func(*Message) error) (int, error) {
	m := c.pool.Acquire()
	defer c.pool.Release(m)
	m.SetMessageType(msgType)
	if populate != nil {
		if err := populate(m); err != nil {
			return 0, err
		}
	}
	return c.Send(m)
}

// ReadLoop drives the filler/drainer pipeline until the peer closes, a
// transport error occurs, a protocol error occurs, or Close is called. It
// returns the terminating error, or nil for an ordinary peer close or a
// local Close. ReadLoop must not be called concurrently with itself on the
// same Connection.
func (c *Connection) ReadLoop() error {
	if !c.reading.CompareAndSwap(false, true) {
		return ErrAlreadyReading
	}
	defer c.reading.Store(false)

	var fillErr, drainErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		fillErr = c.fill()
	}()
	go func() {
		defer wg.Done()
		drainErr = c.drain()
	}()
	wg.Wait()

	c.frameReader.Close()

	reason := drainErr
	if reason == nil {
		reason = fillErr
	}

	if !c.userClosed.Load() {
		c.logDisconnect(reason)
		c.fireDisconnected(reason)
	}
	c.opts.Metrics.connectionClosed(disconnectReasonLabel(reason))
	return reason
}

// fill is the filler task (SPEC_FULL.md §4.5): it repeatedly reserves a
// writable slice from the ring, performs one transport read into it,
// advances the write cursor, and exits on peer close, transport error, or
// the ring having already been closed out from under it (e.g. by Close or
// by the drainer reacting to a protocol error).
func (c *Connection) fill() error {
	for {
		buf, err := c.ring.Reserve()
		if err != nil || buf == nil {
			return nil
		}
		n, rerr := c.conn.Read(buf)
		if n > 0 {
			c.ring.Advance(n)
			c.bytesIn.Add(uint64(n))
			c.opts.Metrics.bytesIn(n)
		}
		if rerr != nil {
			if rerr == io.EOF || c.userClosed.Load() {
				c.ring.Close(nil)
				return nil
			}
			c.ring.Close(rerr)
			return pkgerrors.Wrap(rerr, "pktconn: transport read")
		}
		if n == 0 {
			c.ring.Close(nil)
			return nil
		}
	}
}

// drain is the drainer task: it reads whatever bytes the filler has made
// available and drives the frame reader state machine. A protocol error
// force-closes the transport so the filler unblocks and the receive loop
// as a whole can wind down.
func (c *Connection) drain() error {
	for {
		data, ok := c.ring.Peek()
		if !ok {
			return nil
		}
		consumed, err := c.frameReader.Feed(data, c.handleMessage)
		c.ring.Release(consumed)
		if err != nil {
			c.ring.Close(err)
			_ = c.conn.Close()
			return err
		}
	}
}

// handleMessage adapts FrameReader's MessageHandler to the user-supplied
// OnMessage callback, counting the delivery and recovering from a handler
// panic so it cannot corrupt the framer state (SPEC_FULL.md §4.5/§7):
// the panic is logged and the transport is force-closed, same as a
// protocol error.
func (c *Connection) handleMessage(msg *Message, action *Action) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Error("pktconn: message handler panicked",
				zap.Stringer("connection_id", c.id),
				zap.Any("panic", r),
			)
			_ = c.conn.Close()
		}
	}()
	c.messagesIn.Add(1)
	c.opts.Metrics.messageReceived()
	if c.onMessage != nil {
		c.onMessage(msg, action)
	}
}

func (c *Connection) logDisconnect(reason error) {
	fields := []zap.Field{
		zap.Stringer("connection_id", c.id),
	}
	if addr := c.RemoteAddr(); addr != nil {
		fields = append(fields, zap.Stringer("remote_addr", addr))
	}
	if reason != nil {
		c.opts.Logger.Warn("pktconn: connection disconnected", append(fields, zap.Error(reason))...)
	} else {
		c.opts.Logger.Info("pktconn: connection disconnected", fields...)
	}
}

func (c *Connection) fireDisconnected(reason error) {
	if c.onDisconnected == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Error("pktconn: disconnect handler panicked",
				zap.Stringer("connection_id", c.id),
				zap.Any("panic", r),
			)
		}
	}()
	c.onDisconnected(c, reason)
}

func disconnectReasonLabel(err error) string {
	if err == nil {
		return "peer_close"
	}
	return "error"
}

// Close sets closing state, shuts down the receive side of the transport
// (so any active ReadLoop winds down promptly), and closes the underlying
// connection with a short linger where supported. Close is idempotent; a
// Close call never triggers OnDisconnected — the caller already knows.
func (c *Connection) Close() error {
	if !c.userClosed.CompareAndSwap(false, true) {
		return nil
	}
	if tc, ok := c.conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	c.ring.Close(nil)
	return c.conn.Close()
}
