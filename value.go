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

// Value is the tagged variant over the column-type set (§9 Design
// Notes): nil, int64, uint64, float64, []byte, Decimal or TimeValue.
// Rows are []Value.
type Value = any

/******************************************************************************
*                      Binary protocol: row decoding                          *
******************************************************************************/

// decodeBinaryValue decodes one non-NULL column value at the start of
// data per §4.4, for the field described by f. Returns the value and
// the number of bytes consumed.
func decodeBinaryValue(f *Field, connCharset uint8, data []byte) (Value, int, error) {
	unsigned := f.Flags&flagUnsigned != 0

	switch f.Type {
	case fieldTypeNULL:
		return nil, 0, nil

	case fieldTypeTiny:
		if len(data) < 1 {
			return nil, 0, ErrMalformedPacket
		}
		if unsigned {
			return uint64(data[0]), 1, nil
		}
		return int64(int8(data[0])), 1, nil

	case fieldTypeShort, fieldTypeYear:
		if len(data) < 2 {
			return nil, 0, ErrMalformedPacket
		}
		v := binary.LittleEndian.Uint16(data[:2])
		if unsigned {
			return uint64(v), 2, nil
		}
		return int64(int16(v)), 2, nil

	case fieldTypeInt24, fieldTypeLong:
		if len(data) < 4 {
			return nil, 0, ErrMalformedPacket
		}
		v := binary.LittleEndian.Uint32(data[:4])
		if unsigned {
			return uint64(v), 4, nil
		}
		return int64(int32(v)), 4, nil

	case fieldTypeLongLong:
		if len(data) < 8 {
			return nil, 0, ErrMalformedPacket
		}
		v := binary.LittleEndian.Uint64(data[:8])
		if unsigned {
			return v, 8, nil
		}
		return int64(v), 8, nil

	case fieldTypeFloat:
		if len(data) < 4 {
			return nil, 0, ErrMalformedPacket
		}
		return float64(bytesToFloat32(data[:4])), 4, nil

	case fieldTypeDouble:
		if len(data) < 8 {
			return nil, 0, ErrMalformedPacket
		}
		return bytesToFloat64(data[:8]), 8, nil

	case fieldTypeDecimal, fieldTypeNewDecimal:
		b, isNull, n, err := readLengthEncodedString(data)
		if err != nil {
			return nil, 0, err
		}
		if isNull {
			return nil, n, nil
		}
		return Decimal(b), n, nil

	case fieldTypeVarChar, fieldTypeVarString, fieldTypeString,
		fieldTypeEnum, fieldTypeSet, fieldTypeBit, fieldTypeGeometry,
		fieldTypeTinyBLOB, fieldTypeMediumBLOB, fieldTypeLongBLOB, fieldTypeBLOB, fieldTypeJSON:
		b, isNull, n, err := readLengthEncodedString(data)
		if err != nil {
			return nil, 0, err
		}
		if isNull {
			return nil, n, nil
		}
		if f.isBinaryValue() {
			return cloneBytes(b), n, nil
		}
		return decodeText(connCharset, b), n, nil

	case fieldTypeDate, fieldTypeNewDate:
		tv, n, err := decodeBinaryDate(data)
		if err != nil {
			return nil, 0, err
		}
		return tv, n, nil

	case fieldTypeDateTime, fieldTypeTimestamp:
		tv, n, err := decodeBinaryDate(data)
		if err != nil {
			return nil, 0, err
		}
		return tv, n, nil

	case fieldTypeTime:
		tv, n, err := decodeBinaryTime(data)
		if err != nil {
			return nil, 0, err
		}
		return tv, n, nil

	default:
		return nil, 0, ErrUnknownFieldType
	}
}

/******************************************************************************
*                       Text protocol: row decoding                           *
******************************************************************************/

// decodeTextValue decodes one column of a text-protocol row: an LCS,
// NULL represented by the 0xFB LCB marker. Unlike the binary protocol,
// every text column (even numeric ones) travels as ASCII digits, so no
// per-type conversion happens here beyond the charset/binary split.
func decodeTextValue(f *Field, connCharset uint8, data []byte) (Value, int, error) {
	b, isNull, n, err := readLengthEncodedString(data)
	if err != nil {
		return nil, n, err
	}
	if isNull {
		return nil, n, nil
	}
	if f.isBinaryValue() {
		return cloneBytes(b), n, nil
	}
	return decodeText(connCharset, b), n, nil
}

/******************************************************************************
*                    Binary protocol: parameter encoding                      *
******************************************************************************/

// encodeBinaryParam maps a host Value to (wire type, unsigned flag,
// encoded payload). NULL values are signalled through the parameter
// null-bitmap by the caller and never reach this function with a
// non-empty payload requirement; isNull is returned so the caller can
// still emit a type tag for them.
func encodeBinaryParam(v Value) (ft fieldType, unsigned bool, payload []byte, isNull bool, err error) {
	switch val := v.(type) {
	case nil:
		return fieldTypeNULL, false, nil, true, nil

	case int64:
		return fieldTypeLongLong, false, int64ToBytes(val), false, nil

	case int:
		return fieldTypeLongLong, false, int64ToBytes(int64(val)), false, nil

	case int32:
		return fieldTypeLongLong, false, int64ToBytes(int64(val)), false, nil

	case uint64:
		return fieldTypeLongLong, true, uint64ToBytes(val), false, nil

	case uint:
		return fieldTypeLongLong, true, uint64ToBytes(uint64(val)), false, nil

	case uint32:
		return fieldTypeLongLong, true, uint64ToBytes(uint64(val)), false, nil

	case bool:
		b := byte(0)
		if val {
			b = 1
		}
		return fieldTypeTiny, false, []byte{b}, false, nil

	case float32:
		return fieldTypeDouble, false, float64ToBytes(float64(val)), false, nil

	case float64:
		return fieldTypeDouble, false, float64ToBytes(val), false, nil

	case Decimal:
		return encodeBinaryLCS(fieldTypeNewDecimal, []byte(val))

	case string:
		return encodeBinaryLCS(fieldTypeString, []byte(val))

	case []byte:
		return encodeBinaryLCS(fieldTypeBLOB, val)

	case TimeValue:
		if val.IsDuration() {
			return fieldTypeTime, false, encodeBinaryTime(val), false, nil
		}
		return fieldTypeDateTime, false, encodeBinaryDate(val), false, nil

	default:
		return 0, false, nil, false, fmt.Errorf("mysql: unsupported parameter type %T", v)
	}
}

func encodeBinaryLCS(ft fieldType, b []byte) (fieldType, bool, []byte, bool, error) {
	lcb := lengthEncodedIntegerToBytes(uint64(len(b)))
	payload := make([]byte, 0, len(lcb)+len(b))
	payload = append(payload, lcb...)
	payload = append(payload, b...)
	return ft, false, payload, false, nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
