// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import (
	"encoding/binary"
	"math"
)

// Byte codec primitives. All multi-byte values are little-endian, per the
// wire format in SPEC_FULL.md §6. These functions never fail; bounds
// checking is the Message object's responsibility (§4.1 of the spec).

func putUint24LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func encodeU8(b []byte, v uint8) int       { b[0] = v; return 1 }
func encodeI8(b []byte, v int8) int        { b[0] = byte(v); return 1 }
func encodeU16(b []byte, v uint16) int     { binary.LittleEndian.PutUint16(b, v); return 2 }
func encodeI16(b []byte, v int16) int      { binary.LittleEndian.PutUint16(b, uint16(v)); return 2 }
func encodeU24(b []byte, v uint32) int     { putUint24LE(b, v&0xFFFFFF); return 3 }
func encodeI24(b []byte, v int32) int      { putUint24LE(b, uint32(v)&0xFFFFFF); return 3 }
func encodeU32(b []byte, v uint32) int     { binary.LittleEndian.PutUint32(b, v); return 4 }
func encodeI32(b []byte, v int32) int      { binary.LittleEndian.PutUint32(b, uint32(v)); return 4 }
func encodeU64(b []byte, v uint64) int     { binary.LittleEndian.PutUint64(b, v); return 8 }
func encodeI64(b []byte, v int64) int      { binary.LittleEndian.PutUint64(b, uint64(v)); return 8 }
func encodeF32(b []byte, v float32) int {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return 4
}
func encodeF64(b []byte, v float64) int {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return 8
}

func decodeU8(b []byte) uint8   { return b[0] }
func decodeI8(b []byte) int8    { return int8(b[0]) }
func decodeU16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func decodeI16(b []byte) int16  { return int16(binary.LittleEndian.Uint16(b)) }

// decodeU24 zero-extends the 24-bit little-endian value into 32 bits. No
// sign-extension is applied for the signed variant either — this matches
// the documented behavior in SPEC_FULL.md §4.1.
func decodeU24(b []byte) uint32 { return uint24LE(b) }
func decodeI24(b []byte) int32  { return int32(uint24LE(b)) }

func decodeU32(b []byte) uint32   { return binary.LittleEndian.Uint32(b) }
func decodeI32(b []byte) int32    { return int32(binary.LittleEndian.Uint32(b)) }
func decodeU64(b []byte) uint64   { return binary.LittleEndian.Uint64(b) }
func decodeI64(b []byte) int64    { return int64(binary.LittleEndian.Uint64(b)) }
func decodeF32(b []byte) float32  { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
func decodeF64(b []byte) float64  { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
