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
	"encoding/binary"
	"fmt"
)

// TimeValue is the host representation of DATE/DATETIME/TIMESTAMP/TIME
// columns. When Year, Month and Day are all zero it renders as a signed
// duration ("HH:MM:SS"); otherwise as a full timestamp.
type TimeValue struct {
	Year, Month, Day    int
	Hour, Minute, Second int
	Neg                 bool
	Microsecond         int
}

// IsDuration reports whether this value has no calendar date component
// and should render as a bare time-of-day/duration.
func (t TimeValue) IsDuration() bool {
	return t.Year == 0 && t.Month == 0 && t.Day == 0
}

// String renders the value the way the server would print it back:
// "YYYY-MM-DD HH:MM:SS[.ffffff]" for dates, or a signed
// "[-]HH:MM:SS[.ffffff]" duration otherwise.
func (t TimeValue) String() string {
	sign := ""
	if t.Neg {
		sign = "-"
	}

	if t.IsDuration() {
		if t.Microsecond == 0 {
			return fmt.Sprintf("%s%02d:%02d:%02d", sign, t.Hour, t.Minute, t.Second)
		}
		return fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign, t.Hour, t.Minute, t.Second, t.Microsecond)
	}

	if t.Microsecond == 0 {
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
		t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second, t.Microsecond)
}

// decodeBinaryDate decodes a DATE/DATETIME/TIMESTAMP value per §4.4: a
// u8 length prefix (0, 4, 7 or 11) followed by the fields it covers.
// Returns the value and the number of bytes consumed (prefix included).
func decodeBinaryDate(data []byte) (TimeValue, int, error) {
	if len(data) == 0 {
		return TimeValue{}, 0, ErrMalformedPacket
	}

	length := int(data[0])
	var tv TimeValue

	switch length {
	case 0:
		return tv, 1, nil

	case 4:
		if len(data) < 5 {
			return tv, 0, ErrMalformedPacket
		}
		tv.Year = int(binary.LittleEndian.Uint16(data[1:3]))
		tv.Month = int(data[3])
		tv.Day = int(data[4])
		return tv, 5, nil

	case 7:
		if len(data) < 8 {
			return tv, 0, ErrMalformedPacket
		}
		tv.Year = int(binary.LittleEndian.Uint16(data[1:3]))
		tv.Month = int(data[3])
		tv.Day = int(data[4])
		tv.Hour = int(data[5])
		tv.Minute = int(data[6])
		tv.Second = int(data[7])
		return tv, 8, nil

	case 11:
		if len(data) < 12 {
			return tv, 0, ErrMalformedPacket
		}
		tv.Year = int(binary.LittleEndian.Uint16(data[1:3]))
		tv.Month = int(data[3])
		tv.Day = int(data[4])
		tv.Hour = int(data[5])
		tv.Minute = int(data[6])
		tv.Second = int(data[7])
		tv.Microsecond = int(binary.LittleEndian.Uint32(data[8:12]))
		return tv, 12, nil

	default:
		return tv, 0, fmt.Errorf("mysql: invalid DATE/DATETIME length %d", length)
	}
}

// encodeBinaryDate encodes a calendar TimeValue in the DATETIME wire
// form, picking the shortest length prefix that fits.
func encodeBinaryDate(t TimeValue) []byte {
	if t.Year == 0 && t.Month == 0 && t.Day == 0 && t.Hour == 0 && t.Minute == 0 && t.Second == 0 && t.Microsecond == 0 {
		return []byte{0}
	}
	if t.Microsecond != 0 {
		b := make([]byte, 12)
		b[0] = 11
		binary.LittleEndian.PutUint16(b[1:3], uint16(t.Year))
		b[3] = byte(t.Month)
		b[4] = byte(t.Day)
		b[5] = byte(t.Hour)
		b[6] = byte(t.Minute)
		b[7] = byte(t.Second)
		binary.LittleEndian.PutUint32(b[8:12], uint32(t.Microsecond))
		return b
	}
	if t.Hour != 0 || t.Minute != 0 || t.Second != 0 {
		b := make([]byte, 8)
		b[0] = 7
		binary.LittleEndian.PutUint16(b[1:3], uint16(t.Year))
		b[3] = byte(t.Month)
		b[4] = byte(t.Day)
		b[5] = byte(t.Hour)
		b[6] = byte(t.Minute)
		b[7] = byte(t.Second)
		return b
	}
	b := make([]byte, 5)
	b[0] = 4
	binary.LittleEndian.PutUint16(b[1:3], uint16(t.Year))
	b[3] = byte(t.Month)
	b[4] = byte(t.Day)
	return b
}

// decodeBinaryTime decodes a TIME value per §4.4: u8 length prefix (0, 8
// or 12), neg flag, u32 days folded into hours, hour/min/sec, optional
// microseconds.
func decodeBinaryTime(data []byte) (TimeValue, int, error) {
	if len(data) == 0 {
		return TimeValue{}, 0, ErrMalformedPacket
	}

	length := int(data[0])
	var tv TimeValue

	switch length {
	case 0:
		return tv, 1, nil

	case 8:
		if len(data) < 9 {
			return tv, 0, ErrMalformedPacket
		}
		tv.Neg = data[1] == 1
		days := binary.LittleEndian.Uint32(data[2:6])
		tv.Hour = int(days)*24 + int(data[6])
		tv.Minute = int(data[7])
		tv.Second = int(data[8])
		return tv, 9, nil

	case 12:
		if len(data) < 13 {
			return tv, 0, ErrMalformedPacket
		}
		tv.Neg = data[1] == 1
		days := binary.LittleEndian.Uint32(data[2:6])
		tv.Hour = int(days)*24 + int(data[6])
		tv.Minute = int(data[7])
		tv.Second = int(data[8])
		tv.Microsecond = int(binary.LittleEndian.Uint32(data[9:13]))
		return tv, 13, nil

	default:
		return tv, 0, fmt.Errorf("mysql: invalid TIME length %d", length)
	}
}

// encodeBinaryTime encodes a duration TimeValue in the TIME wire form.
// Hour may exceed 24; days/hour are recomposed from it.
func encodeBinaryTime(t TimeValue) []byte {
	if t.Hour == 0 && t.Minute == 0 && t.Second == 0 && t.Microsecond == 0 && !t.Neg {
		return []byte{0}
	}

	days := t.Hour / 24
	hour := t.Hour % 24

	if t.Microsecond != 0 {
		b := make([]byte, 13)
		b[0] = 12
		if t.Neg {
			b[1] = 1
		}
		binary.LittleEndian.PutUint32(b[2:6], uint32(days))
		b[6] = byte(hour)
		b[7] = byte(t.Minute)
		b[8] = byte(t.Second)
		binary.LittleEndian.PutUint32(b[9:13], uint32(t.Microsecond))
		return b
	}

	b := make([]byte, 9)
	b[0] = 8
	if t.Neg {
		b[1] = 1
	}
	binary.LittleEndian.PutUint32(b[2:6], uint32(days))
	b[6] = byte(hour)
	b[7] = byte(t.Minute)
	b[8] = byte(t.Second)
	return b
}
