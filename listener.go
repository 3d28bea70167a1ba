// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import (
	"net"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConnectionFilter is consulted once per accepted transport connection,
// before a Connection object is constructed for it. Returning false
// rejects the peer: the socket is closed immediately with a short linger
// and no Connection is ever built for it.
type ConnectionFilter func(remoteAddr net.Addr) bool

// NewConnectionHandler is invoked once per accepted, filter-passed peer,
// with a Connection that has not yet had ReadLoop started. The handler is
// expected to register OnMessage/OnDisconnected and then start ReadLoop,
// typically in its own goroutine.
type NewConnectionHandler func(c *Connection)

// Listener accepts inbound transport connections and hands each one,
// wrapped as a Connection, to a registered handler. Grounded on the
// packetd server package's Enabled-gated New(*confengine.Config)
// construction (see NewListenerFromConfig), adapted from HTTP serving to
// raw framed-message serving.
type Listener struct {
	opts Options

	mu        sync.Mutex
	listening bool
	ln        net.Listener
	stopCh    chan struct{}

	onConnectionRequest ConnectionFilter
	onNewConnection     NewConnectionHandler
}

// NewListener constructs a Listener from functional options. Every
// accepted Connection shares this Listener's Pool, Logger, and Metrics.
func NewListener(opts ...Option) *Listener {
	return &Listener{opts: resolveOptions(opts...)}
}

// NewListenerFromConfig builds a Listener from a YAML-loaded
// ListenerConfig (SPEC_FULL.md §4.6/§6); the returned address is the one
// to pass to Listen.
func NewListenerFromConfig(cfg *ListenerConfig) (l *Listener, address string) {
	opts := []Option{
		WithLogger(NewLogger(cfg.Logging)),
	}
	if cfg.Packet.MaxClientPacketSize > 0 {
		opts = append(opts, WithMaxClientPacketSize(cfg.Packet.MaxClientPacketSize))
	}
	if cfg.Pool.Capacity > 0 {
		opts = append(opts, WithPoolCapacity(cfg.Pool.Capacity))
	}
	if cfg.Framing.MaxReceiveFragmentsPerPacket > 0 {
		opts = append(opts, WithMaxReceiveFragmentsPerPacket(cfg.Framing.MaxReceiveFragmentsPerPacket))
	}
	if cfg.Framing.RingBufferSize > 0 {
		opts = append(opts, WithRingBufferSize(cfg.Framing.RingBufferSize))
	}
	return NewListener(opts...), cfg.Listen.Address
}

// OnConnectionRequest registers the pre-accept filter. Must be set before
// Listen is called.
func (l *Listener) OnConnectionRequest(f ConnectionFilter) { l.onConnectionRequest = f }

// OnNewConnection registers the handler invoked for each accepted,
// filter-passed peer. Must be set before Listen is called.
func (l *Listener) OnNewConnection(h NewConnectionHandler) { l.onNewConnection = h }

// Listen starts the accept loop on network/address (as accepted by
// net.Listen, e.g. "tcp", ":9000") and blocks until Stop is called or
// Accept fails. Returns ErrAlreadyListening if already accepting.
func (l *Listener) Listen(network, address string) error {
	l.mu.Lock()
	if l.listening {
		l.mu.Unlock()
		return ErrAlreadyListening
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		l.mu.Unlock()
		return pkgerrors.Wrap(err, "pktconn: listen")
	}
	l.ln = ln
	l.listening = true
	l.stopCh = make(chan struct{})
	l.mu.Unlock()

	l.opts.Logger.Info("pktconn: listener started", zap.String("address", ln.Addr().String()))

	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			select {
			case <-l.stopCh:
				return nil
			default:
			}
			l.opts.Logger.Warn("pktconn: accept error", zap.Error(aerr))
			return pkgerrors.Wrap(aerr, "pktconn: accept")
		}

		if l.onConnectionRequest != nil && !l.onConnectionRequest(conn.RemoteAddr()) {
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.SetLinger(0)
			}
			_ = conn.Close()
			continue
		}

		c := newConnectionWithOptions(conn, l.opts)
		l.opts.Logger.Info("pktconn: new connection",
			zap.Stringer("connection_id", c.id),
			zap.Stringer("remote_addr", conn.RemoteAddr()),
		)
		if l.onNewConnection != nil {
			l.onNewConnection(c)
		}
	}
}

// Stop cancels the accept loop and releases the listening socket. Safe to
// call even if Listen was never called or has already returned.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.listening {
		return nil
	}
	l.listening = false
	close(l.stopCh)
	return l.ln.Close()
}
