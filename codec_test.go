// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pktconn

import "testing"

func TestUint24LERoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 0xFF, 0xFFFF, 0xFFFFFF, 0x010203}
	for _, v := range cases {
		b := make([]byte, 3)
		putUint24LE(b, v)
		got := uint24LE(b)
		if got != v {
			t.Fatalf("uint24LE round trip: put %#x, got %#x", v, got)
		}
	}
}

func TestUint24LETruncatesTopByte(t *testing.T) {
	b := make([]byte, 3)
	putUint24LE(b, 0xAABBCCDD)
	got := uint24LE(b)
	if got != 0xBBCCDD {
		t.Fatalf("expected top byte discarded, got %#x", got)
	}
}

func TestI24ZeroExtendsOnDecode(t *testing.T) {
	b := make([]byte, 3)
	encodeI24(b, -1) // all three low bytes 0xFF
	got := decodeI24(b)
	if got != 0x00FFFFFF {
		t.Fatalf("expected zero-extended 0x00FFFFFF, got %#x", got)
	}
}

func TestScalarCodecRoundTrip(t *testing.T) {
	b := make([]byte, 8)

	encodeU8(b, 0xAB)
	if decodeU8(b) != 0xAB {
		t.Fatalf("u8 round trip failed")
	}
	encodeI8(b, -5)
	if decodeI8(b) != -5 {
		t.Fatalf("i8 round trip failed")
	}
	encodeU16(b, 0xBEEF)
	if decodeU16(b) != 0xBEEF {
		t.Fatalf("u16 round trip failed")
	}
	encodeI16(b, -1234)
	if decodeI16(b) != -1234 {
		t.Fatalf("i16 round trip failed")
	}
	encodeU32(b, 0xDEADBEEF)
	if decodeU32(b) != 0xDEADBEEF {
		t.Fatalf("u32 round trip failed")
	}
	encodeI32(b, -123456)
	if decodeI32(b) != -123456 {
		t.Fatalf("i32 round trip failed")
	}
	encodeU64(b, 0x0123456789ABCDEF)
	if decodeU64(b) != 0x0123456789ABCDEF {
		t.Fatalf("u64 round trip failed")
	}
	encodeI64(b, -9876543210)
	if decodeI64(b) != -9876543210 {
		t.Fatalf("i64 round trip failed")
	}
	encodeF32(b, 3.5)
	if decodeF32(b) != 3.5 {
		t.Fatalf("f32 round trip failed")
	}
	encodeF64(b, -2.25)
	if decodeF64(b) != -2.25 {
		t.Fatalf("f64 round trip failed")
	}
}
