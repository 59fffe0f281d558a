// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"bytes"
	"testing"
)

func TestLengthEncodedIntegerRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 250, 251, 252, 255, 256, 0xffff, 0xffff + 1,
		0xffffff, 0xffffff + 1, 1 << 32, 1<<64 - 1,
	}

	for _, v := range values {
		enc := lengthEncodedIntegerToBytes(v)
		got, isNull, n, err := readLengthEncodedInteger(enc)
		if err != nil {
			t.Fatalf("value %d: unexpected error: %v", v, err)
		}
		if isNull {
			t.Fatalf("value %d: unexpectedly decoded as NULL", v)
		}
		if n != len(enc) {
			t.Fatalf("value %d: consumed %d bytes, encoding is %d bytes", v, n, len(enc))
		}
		if got != v {
			t.Fatalf("value %d: round-tripped to %d", v, got)
		}
	}
}

func TestLengthEncodedIntegerNULL(t *testing.T) {
	_, isNull, n, err := readLengthEncodedInteger([]byte{0xfb})
	if err != nil || !isNull || n != 1 {
		t.Fatalf("NULL marker: got isNull=%v n=%d err=%v", isNull, n, err)
	}
}

func TestLengthEncodedIntegerInvalid(t *testing.T) {
	if _, _, _, err := readLengthEncodedInteger([]byte{0xff}); err != ErrMalformedPacket {
		t.Fatalf("expected ErrMalformedPacket for 0xff tag, got %v", err)
	}
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	payload := []byte("hello, world")
	data := append(lengthEncodedIntegerToBytes(uint64(len(payload))), payload...)
	data = append(data, 0xAA) // trailing byte from a following field

	got, isNull, n, err := readLengthEncodedString(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isNull {
		t.Fatalf("unexpectedly NULL")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
	if n != len(data)-1 {
		t.Fatalf("consumed %d bytes, want %d", n, len(data)-1)
	}
}

func TestLengthEncodedStringNULL(t *testing.T) {
	_, isNull, n, err := readLengthEncodedString([]byte{0xfb})
	if err != nil || !isNull || n != 1 {
		t.Fatalf("NULL LCS: got isNull=%v n=%d err=%v", isNull, n, err)
	}
}

func TestFloatByteRoundTrip(t *testing.T) {
	f32 := float32(3.14159)
	if got := bytesToFloat32(float32ToBytes(f32)); got != f32 {
		t.Fatalf("float32 round trip: got %v, want %v", got, f32)
	}

	f64 := 2.7182818284590452
	if got := bytesToFloat64(float64ToBytes(f64)); got != f64 {
		t.Fatalf("float64 round trip: got %v, want %v", got, f64)
	}
}
