// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import "fmt"

// Wire format (normative, fixed 4-byte header — see SPEC_FULL.md §6 and §9.1
// for why this library standardizes on the fixed form rather than a
// variable-length one):
//
//	byte 0..2 : uint24 LE  — total message byte length including these 4 header bytes
//	byte 3    : uint8      — message type
//	byte 4..N : payload    — N = total_length - 4
const (
	// HeaderSize is the fixed header length: 3 bytes of little-endian size
	// followed by 1 byte of message type.
	HeaderSize = 4

	// MaxPacketSize is the protocol-wide maximum total message length
	// (header + payload), 10 MiB.
	MaxPacketSize = 10 * 1024 * 1024

	maxStringLen = 1<<16 - 1
)

// SeekOrigin selects the reference point for Message.Seek and
// Message.RawSeek.
type SeekOrigin uint8

const (
	SeekBegin SeekOrigin = iota
	SeekCurrent
	SeekEnd
)

// Message is a fixed-capacity byte buffer carrying one protocol message. It
// exposes two independent cursors over the same underlying buffer:
//
//   - the payload cursor, used by typed Read*/Write* calls issued by user
//     code, always expressed relative to the first payload byte (offset
//     HeaderSize in the buffer);
//   - the raw cursor, used exclusively by the frame reader (RawWrite,
//     RawSeek) to lay bytes down starting at offset 0, including the
//     header.
//
// The split exists because the frame reader writes bytes starting at offset
// 0 (it doesn't know field boundaries), while user code writes fields
// starting right after the header. A single cursor would force one side or
// the other to remember to skip it.
//
// A Message is not safe for concurrent use. It is typically owned by
// exactly one goroutine at a time — the frame reader while assembling it,
// then the user callback it was delivered to.
type Message struct {
	buf []byte // len == cap == MaxPacketSize

	size          int // total bytes occupied (header + payload), [HeaderSize, cap]
	payloadCursor int // absolute offset into buf; HeaderSize <= payloadCursor <= size
	rawCursor     int // absolute offset into buf; 0 <= rawCursor <= size

	// fragments counts the number of distinct RawWrite calls used to
	// assemble the message currently in progress. Reset alongside the rest
	// of the framing state; read by the frame reader for
	// MaxReceiveFragmentsPerPacket enforcement.
	fragments int
}

// NewMessage allocates a fresh, zeroed Message and positions the payload
// cursor past the header (SkipHeader); the raw cursor stays at 0.
func NewMessage() *Message {
	m := &Message{buf: make([]byte, MaxPacketSize)}
	m.SkipHeader()
	return m
}

// Reset zero-fills the buffer and returns both cursors, size, and the
// fragment counter to their post-construction state (cursors at 0, size 0),
// then re-applies SkipHeader — matching NewMessage's post-conditions so a
// pooled Message is indistinguishable from a freshly allocated one.
func (m *Message) Reset() {
	clear(m.buf)
	m.size = 0
	m.payloadCursor = 0
	m.rawCursor = 0
	m.fragments = 0
	m.SkipHeader()
}

// SkipHeader advances the payload cursor past the header if it is not
// already there, and ensures size accounts for at least the header.
func (m *Message) SkipHeader() {
	if m.payloadCursor < HeaderSize {
		m.payloadCursor = HeaderSize
	}
	if m.size < HeaderSize {
		m.size = HeaderSize
	}
}

// Size returns the current total byte count (header + payload).
func (m *Message) Size() int { return m.size }

// PayloadLen returns the current payload length (Size - HeaderSize).
func (m *Message) PayloadLen() int { return m.size - HeaderSize }

// MessageType returns the byte at header offset 3.
func (m *Message) MessageType() byte { return m.buf[3] }

// SetMessageType sets the byte at header offset 3.
func (m *Message) SetMessageType(t byte) { m.buf[3] = t }

// PacketSizeAccordingToHeader reads the 24-bit little-endian size field at
// header offsets 0..2. During assembly this may differ from Size; after
// GetPacketMemory the two are equal.
func (m *Message) PacketSizeAccordingToHeader() uint32 {
	return decodeU24(m.buf[0:3])
}

// RawSyncFromHeader sets Size from the header's declared size field. Used
// by the frame reader once the header bytes have been written in.
func (m *Message) RawSyncFromHeader() {
	m.size = int(m.PacketSizeAccordingToHeader())
}

// HasHeader reports whether enough bytes are present to trust the header
// fields.
func (m *Message) HasHeader() bool {
	return m.size >= HeaderSize && m.PacketSizeAccordingToHeader() >= HeaderSize
}

// GetPacketMemory patches header bytes 0..2 with the current Size (24-bit
// LE) and returns a view of buf[0:size]. The returned slice aliases the
// Message's internal buffer and is only valid until the Message is next
// mutated or reset.
func (m *Message) GetPacketMemory() []byte {
	putUint24LE(m.buf[0:3], uint32(m.size))
	return m.buf[0:m.size]
}

// Bytes returns buf[0:size] without patching the header — a debug/logging
// accessor only; it must not be used as a substitute for GetPacketMemory
// when producing wire bytes.
func (m *Message) Bytes() []byte { return m.buf[0:m.size] }

// String returns a short human-readable summary for logging, not the wire
// bytes: message type, total size, and payload length.
func (m *Message) String() string {
	return fmt.Sprintf("Message{type: %d, size: %d, payload: %d}", m.MessageType(), m.size, m.PayloadLen())
}

// Seek repositions the payload cursor relative to origin and returns the
// new payload-relative offset (0 == first payload byte). See SPEC_FULL.md
// §8 for the boundary rules around empty payloads.
func (m *Message) Seek(delta int, origin SeekOrigin) (int, error) {
	payloadLen := m.size - HeaderSize
	var target int
	switch origin {
	case SeekBegin:
		target = delta
	case SeekCurrent:
		target = (m.payloadCursor - HeaderSize) + delta
	case SeekEnd:
		target = (payloadLen - 1) + delta
	default:
		return 0, ErrInvalidArgument
	}
	if target < 0 {
		return 0, ErrOutOfRange
	}
	if target >= payloadLen && !(target == 0 && payloadLen == 0) {
		return 0, ErrOutOfRange
	}
	m.payloadCursor = HeaderSize + target
	return target, nil
}

// RawSeek repositions the raw cursor relative to origin over [0, size).
// Used exclusively by the frame reader.
func (m *Message) RawSeek(delta int, origin SeekOrigin) (int, error) {
	var target int
	switch origin {
	case SeekBegin:
		target = delta
	case SeekCurrent:
		target = m.rawCursor + delta
	case SeekEnd:
		target = (m.size - 1) + delta
	default:
		return 0, ErrInvalidArgument
	}
	if target < 0 {
		return 0, ErrOutOfRange
	}
	if target >= m.size && !(target == 0 && m.size == 0) {
		return 0, ErrOutOfRange
	}
	m.rawCursor = target
	return target, nil
}

func (m *Message) checkWriteOverflow(n int) error {
	if m.payloadCursor+n > cap(m.buf) {
		return ErrOverflow
	}
	return nil
}

func (m *Message) checkReadOverflow(n int) error {
	if m.payloadCursor+n > m.size {
		return ErrOverflow
	}
	return nil
}

func (m *Message) afterWrite(n int) {
	m.payloadCursor += n
	if m.payloadCursor > m.size {
		m.size = m.payloadCursor
	}
}

// WriteU8 appends a 1-byte unsigned integer at the payload cursor.
func (m *Message) WriteU8(v uint8) error {
	if err := m.checkWriteOverflow(1); err != nil {
		return err
	}
	n := encodeU8(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteI8 appends a 1-byte signed integer at the payload cursor.
func (m *Message) WriteI8(v int8) error {
	if err := m.checkWriteOverflow(1); err != nil {
		return err
	}
	n := encodeI8(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteU16 appends a little-endian 2-byte unsigned integer.
func (m *Message) WriteU16(v uint16) error {
	if err := m.checkWriteOverflow(2); err != nil {
		return err
	}
	n := encodeU16(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteI16 appends a little-endian 2-byte signed integer.
func (m *Message) WriteI16(v int16) error {
	if err := m.checkWriteOverflow(2); err != nil {
		return err
	}
	n := encodeI16(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteU24 appends a little-endian 3-byte unsigned integer (top 8 bits of v discarded).
func (m *Message) WriteU24(v uint32) error {
	if err := m.checkWriteOverflow(3); err != nil {
		return err
	}
	n := encodeU24(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteI24 appends a little-endian 3-byte signed integer.
func (m *Message) WriteI24(v int32) error {
	if err := m.checkWriteOverflow(3); err != nil {
		return err
	}
	n := encodeI24(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteU32 appends a little-endian 4-byte unsigned integer.
func (m *Message) WriteU32(v uint32) error {
	if err := m.checkWriteOverflow(4); err != nil {
		return err
	}
	n := encodeU32(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteI32 appends a little-endian 4-byte signed integer.
func (m *Message) WriteI32(v int32) error {
	if err := m.checkWriteOverflow(4); err != nil {
		return err
	}
	n := encodeI32(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteU64 appends a little-endian 8-byte unsigned integer.
func (m *Message) WriteU64(v uint64) error {
	if err := m.checkWriteOverflow(8); err != nil {
		return err
	}
	n := encodeU64(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteI64 appends a little-endian 8-byte signed integer.
func (m *Message) WriteI64(v int64) error {
	if err := m.checkWriteOverflow(8); err != nil {
		return err
	}
	n := encodeI64(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteF32 appends an IEEE-754 little-endian 32-bit float.
func (m *Message) WriteF32(v float32) error {
	if err := m.checkWriteOverflow(4); err != nil {
		return err
	}
	n := encodeF32(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteF64 appends an IEEE-754 little-endian 64-bit float.
func (m *Message) WriteF64(v float64) error {
	if err := m.checkWriteOverflow(8); err != nil {
		return err
	}
	n := encodeF64(m.buf[m.payloadCursor:], v)
	m.afterWrite(n)
	return nil
}

// WriteBytes copies p verbatim at the payload cursor.
func (m *Message) WriteBytes(p []byte) error {
	if err := m.checkWriteOverflow(len(p)); err != nil {
		return err
	}
	n := copy(m.buf[m.payloadCursor:], p)
	m.afterWrite(n)
	return nil
}

// WriteString encodes s as UTF-8, writes a little-endian u16 byte-length
// prefix, then the bytes. Returns ErrOverflow if len(s) exceeds the u16
// length field's range or the message's remaining capacity.
func (m *Message) WriteString(s string) error {
	if len(s) > maxStringLen {
		return ErrOverflow
	}
	if err := m.checkWriteOverflow(2 + len(s)); err != nil {
		return err
	}
	n := encodeU16(m.buf[m.payloadCursor:], uint16(len(s)))
	m.afterWrite(n)
	n = copy(m.buf[m.payloadCursor:], s)
	m.afterWrite(n)
	return nil
}

func (m *Message) afterRead(n int) { m.payloadCursor += n }

// ReadU8 reads a 1-byte unsigned integer at the payload cursor.
func (m *Message) ReadU8() (uint8, error) {
	if err := m.checkReadOverflow(1); err != nil {
		return 0, err
	}
	v := decodeU8(m.buf[m.payloadCursor:])
	m.afterRead(1)
	return v, nil
}

// ReadI8 reads a 1-byte signed integer at the payload cursor.
func (m *Message) ReadI8() (int8, error) {
	if err := m.checkReadOverflow(1); err != nil {
		return 0, err
	}
	v := decodeI8(m.buf[m.payloadCursor:])
	m.afterRead(1)
	return v, nil
}

// ReadU16 reads a little-endian 2-byte unsigned integer.
func (m *Message) ReadU16() (uint16, error) {
	if err := m.checkReadOverflow(2); err != nil {
		return 0, err
	}
	v := decodeU16(m.buf[m.payloadCursor:])
	m.afterRead(2)
	return v, nil
}

// ReadI16 reads a little-endian 2-byte signed integer.
func (m *Message) ReadI16() (int16, error) {
	if err := m.checkReadOverflow(2); err != nil {
		return 0, err
	}
	v := decodeI16(m.buf[m.payloadCursor:])
	m.afterRead(2)
	return v, nil
}

// ReadU24 reads a little-endian 3-byte unsigned integer, zero-extended.
func (m *Message) ReadU24() (uint32, error) {
	if err := m.checkReadOverflow(3); err != nil {
		return 0, err
	}
	v := decodeU24(m.buf[m.payloadCursor:])
	m.afterRead(3)
	return v, nil
}

// ReadI24 reads a little-endian 3-byte value, zero-extended into 32 bits
// (no sign-extension — see SPEC_FULL.md §4.1).
func (m *Message) ReadI24() (int32, error) {
	if err := m.checkReadOverflow(3); err != nil {
		return 0, err
	}
	v := decodeI24(m.buf[m.payloadCursor:])
	m.afterRead(3)
	return v, nil
}

// ReadU32 reads a little-endian 4-byte unsigned integer.
func (m *Message) ReadU32() (uint32, error) {
	if err := m.checkReadOverflow(4); err != nil {
		return 0, err
	}
	v := decodeU32(m.buf[m.payloadCursor:])
	m.afterRead(4)
	return v, nil
}

// ReadI32 reads a little-endian 4-byte signed integer.
func (m *Message) ReadI32() (int32, error) {
	if err := m.checkReadOverflow(4); err != nil {
		return 0, err
	}
	v := decodeI32(m.buf[m.payloadCursor:])
	m.afterRead(4)
	return v, nil
}

// ReadU64 reads a little-endian 8-byte unsigned integer.
func (m *Message) ReadU64() (uint64, error) {
	if err := m.checkReadOverflow(8); err != nil {
		return 0, err
	}
	v := decodeU64(m.buf[m.payloadCursor:])
	m.afterRead(8)
	return v, nil
}

// ReadI64 reads a little-endian 8-byte signed integer.
func (m *Message) ReadI64() (int64, error) {
	if err := m.checkReadOverflow(8); err != nil {
		return 0, err
	}
	v := decodeI64(m.buf[m.payloadCursor:])
	m.afterRead(8)
	return v, nil
}

// ReadF32 reads an IEEE-754 little-endian 32-bit float.
func (m *Message) ReadF32() (float32, error) {
	if err := m.checkReadOverflow(4); err != nil {
		return 0, err
	}
	v := decodeF32(m.buf[m.payloadCursor:])
	m.afterRead(4)
	return v, nil
}

// ReadF64 reads an IEEE-754 little-endian 64-bit float.
func (m *Message) ReadF64() (float64, error) {
	if err := m.checkReadOverflow(8); err != nil {
		return 0, err
	}
	v := decodeF64(m.buf[m.payloadCursor:])
	m.afterRead(8)
	return v, nil
}

// ReadBytes reads n bytes at the payload cursor and returns a copy (the
// Message's buffer is reused across messages by the pool, so callers must
// not retain a view into it).
func (m *Message) ReadBytes(n int) ([]byte, error) {
	if err := m.checkReadOverflow(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.buf[m.payloadCursor:m.payloadCursor+n])
	m.afterRead(n)
	return out, nil
}

// ReadString reads a u16 LE byte-length prefix followed by that many UTF-8
// bytes, returning them as a string.
func (m *Message) ReadString() (string, error) {
	if err := m.checkReadOverflow(2); err != nil {
		return "", err
	}
	l := decodeU16(m.buf[m.payloadCursor:])
	m.afterRead(2)
	if err := m.checkReadOverflow(int(l)); err != nil {
		return "", err
	}
	s := string(m.buf[m.payloadCursor : m.payloadCursor+int(l)])
	m.afterRead(int(l))
	return s, nil
}

// RawWrite copies p at the raw cursor and advances it, growing Size as
// needed. It is used exclusively by the frame reader while assembling an
// incoming message; user code should never call it.
func (m *Message) RawWrite(p []byte) (int, error) {
	if m.rawCursor+len(p) > cap(m.buf) {
		return 0, ErrOverflow
	}
	n := copy(m.buf[m.rawCursor:], p)
	m.rawCursor += n
	if m.rawCursor > m.size {
		m.size = m.rawCursor
	}
	m.fragments++
	return n, nil
}
