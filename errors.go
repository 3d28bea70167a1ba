// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import "errors"

// Sentinel errors for the message object, frame reader, connection and
// listener. Callers should compare with errors.Is. These sentinels are
// returned unwrapped; errors coming from the net package are wrapped with
// github.com/pkg/errors to name the failing step (dial, listen, accept,
// transport read, send).
var (
	// ErrOverflow is returned when a message write would exceed capacity or a
	// read would cross the current size. A programmer error in intended use.
	ErrOverflow = errors.New("pktconn: message buffer overflow")

	// ErrOutOfRange is returned by Seek/RawSeek when the target offset falls
	// outside the addressable region.
	ErrOutOfRange = errors.New("pktconn: seek out of range")

	// ErrInvalidArgument is returned by Seek/RawSeek for an unknown
	// SeekOrigin.
	ErrInvalidArgument = errors.New("pktconn: invalid argument")

	// ErrTooLong reports a header-declared total message length outside
	// [HEADER_SIZE, MAX_PACKET_SIZE] — a protocol error.
	ErrTooLong = errors.New("pktconn: message too long")

	// ErrTooManyFragments reports that a single message took more partial
	// reads to assemble than MaxReceiveFragmentsPerPacket allows.
	ErrTooManyFragments = errors.New("pktconn: too many fragments for one message")

	// ErrAlreadyListening is returned by Listener.Listen when called while
	// already accepting connections.
	ErrAlreadyListening = errors.New("pktconn: listener already listening")

	// ErrAlreadyConnecting reports a repeated or concurrent connect attempt
	// on one Connection. Dial builds a new Connection on every call, so no
	// function in this package returns it.
	ErrAlreadyConnecting = errors.New("pktconn: connection already connecting")

	// ErrAlreadyReading is returned by Connection.ReadLoop when called while
	// a read loop is already active on the same connection.
	ErrAlreadyReading = errors.New("pktconn: connection already reading")

	// ErrClosed is returned by Send once Close has been called.
	ErrClosed = errors.New("pktconn: connection closed")

	// ErrSendStalled is returned when Send could not make progress within
	// the bounded retry budget (see Options.MaxSendIterations).
	ErrSendStalled = errors.New("pktconn: send stalled, exceeded retry budget")
)
