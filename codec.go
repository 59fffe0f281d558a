// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strconv"
)

/******************************************************************************
*                  Length-coded binary integers (LCB)                         *
******************************************************************************/

// readLengthEncodedInteger decodes an LCB at the start of data, returning
// the value, whether it was the NULL marker (0xfb), and the number of
// bytes consumed.
func readLengthEncodedInteger(data []byte) (num uint64, isNull bool, n int, err error) {
	if len(data) == 0 {
		return 0, false, 0, io.EOF
	}

	switch data[0] {
	case 0xfb:
		return 0, true, 1, nil

	case 0xfc:
		if len(data) < 3 {
			return 0, false, 0, io.EOF
		}
		return uint64(data[1]) | uint64(data[2])<<8, false, 3, nil

	case 0xfd:
		if len(data) < 4 {
			return 0, false, 0, io.EOF
		}
		return uint64(data[1]) | uint64(data[2])<<8 | uint64(data[3])<<16, false, 4, nil

	case 0xfe:
		if len(data) < 9 {
			return 0, false, 0, io.EOF
		}
		return binary.LittleEndian.Uint64(data[1:9]), false, 9, nil

	case 0xff:
		return 0, false, 0, ErrMalformedPacket

	default:
		return uint64(data[0]), false, 1, nil
	}
}

// lengthEncodedIntegerToBytes encodes n in the shortest LCB form.
func lengthEncodedIntegerToBytes(n uint64) []byte {
	switch {
	case n <= 250:
		return []byte{byte(n)}

	case n <= 0xffff:
		return []byte{0xfc, byte(n), byte(n >> 8)}

	case n <= 0xffffff:
		return []byte{0xfd, byte(n), byte(n >> 8), byte(n >> 16)}

	default:
		b := make([]byte, 9)
		b[0] = 0xfe
		binary.LittleEndian.PutUint64(b[1:], n)
		return b
	}
}

/******************************************************************************
*                  Length-coded strings (LCS) and slices                      *
******************************************************************************/

// readSlice returns the bytes of data up to (not including) the first
// occurrence of delim.
func readSlice(data []byte, delim byte) (slice []byte, err error) {
	pos := bytes.IndexByte(data, delim)
	if pos > -1 {
		return data[:pos], nil
	}
	return data, io.EOF
}

// readLengthEncodedString reads an LCB length followed by that many raw
// bytes. A NULL-LCB yields isNull=true and a nil slice.
func readLengthEncodedString(data []byte) (b []byte, isNull bool, n int, err error) {
	num, isNull, n, err := readLengthEncodedInteger(data)
	if err != nil || isNull {
		return nil, isNull, n, err
	}

	if len(data) < n+int(num) {
		return nil, false, n, io.EOF
	}

	return data[n : n+int(num)], false, n + int(num), nil
}

// readAndDropLengthEncodedString skips over an LCS, returning only how
// many bytes it consumed.
func readAndDropLengthEncodedString(data []byte) (n int, err error) {
	num, isNull, n, err := readLengthEncodedInteger(data)
	if err != nil || isNull {
		return n, err
	}

	if len(data) < n+int(num) {
		return n, io.EOF
	}

	return n + int(num), nil
}

/******************************************************************************
*                    Fixed-width little-endian conversions                    *
******************************************************************************/

func uint24ToBytes(n uint32) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16)}
}

func uint32ToBytes(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

func int64ToBytes(n int64) []byte {
	return uint64ToBytes(uint64(n))
}

func bytesToFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func bytesToFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func float32ToBytes(f float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
	return b
}

func float64ToBytes(f float64) []byte {
	return uint64ToBytes(math.Float64bits(f))
}

func intToByteStr(i int64) []byte {
	return strconv.AppendInt(nil, i, 10)
}

func uintToByteStr(u uint64) []byte {
	return strconv.AppendUint(nil, u, 10)
}
