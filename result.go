// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "strconv"

// Result is an eagerly-materialised result set: all rows are read off
// the wire up front (§4.6), after which the connection returns to idle
// and further access is purely local index manipulation — it never
// touches the socket.
type Result struct {
	fields []*Field
	rows   [][]Value

	cursor      int
	lastFetched int // index of the last row returned by FetchRow, or -1
}

// newResult drains a result-set stream (text or binary rows, both
// EOF-terminated) into an eagerly materialised Result.
func newResult(mc *Connection, fields []*Field, binary bool) (*Result, error) {
	r := &Result{
		fields:      fields,
		lastFetched: -1,
	}

	for {
		var row []Value
		var done bool
		var err error

		if binary {
			row, done, err = mc.readBinaryRow(fields)
		} else {
			row, done, err = mc.readTextRow(fields)
		}
		if err != nil {
			return nil, err
		}
		if done {
			return r, nil
		}
		r.rows = append(r.rows, row)
	}
}

// Fields returns the result set's column descriptors.
func (r *Result) Fields() []*Field { return r.fields }

// NumRows returns the total number of materialised rows.
func (r *Result) NumRows() int { return len(r.rows) }

// FetchRow returns the row at the cursor and advances it, or nil when
// the cursor has passed the last row.
func (r *Result) FetchRow() []Value {
	if r.cursor >= len(r.rows) {
		return nil
	}
	row := r.rows[r.cursor]
	r.lastFetched = r.cursor
	r.cursor++
	return row
}

// DataSeek repositions the cursor to the given zero-based row offset.
func (r *Result) DataSeek(offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(r.rows) {
		offset = len(r.rows)
	}
	r.cursor = offset
	r.lastFetched = -1
}

// RowTell returns the cursor's current row offset, an opaque value
// suitable for a later RowSeek.
func (r *Result) RowTell() int { return r.cursor }

// RowSeek restores a cursor position previously returned by RowTell.
func (r *Result) RowSeek(pos int) { r.DataSeek(pos) }

// FieldSeek returns the field descriptor at index i, or nil if out of
// range.
func (r *Result) FieldSeek(i int) *Field {
	if i < 0 || i >= len(r.fields) {
		return nil
	}
	return r.fields[i]
}

// FetchLengths returns the byte length of each column of the last
// fetched row. It returns ErrNoRowFetched if no row has been fetched
// since construction or the last DataSeek/RowSeek.
func (r *Result) FetchLengths() ([]int, error) {
	if r.lastFetched < 0 || r.lastFetched >= len(r.rows) {
		return nil, ErrNoRowFetched
	}
	row := r.rows[r.lastFetched]
	lens := make([]int, len(row))
	for i, v := range row {
		switch val := v.(type) {
		case nil:
			lens[i] = 0
		case []byte:
			lens[i] = len(val)
		case string:
			lens[i] = len(val)
		case Decimal:
			lens[i] = len(val)
		default:
			lens[i] = len(valueToText(v))
		}
	}
	return lens, nil
}

// valueToText renders a decoded Value the way the text protocol would
// have sent it, for FetchLengths' benefit on binary-protocol rows.
func valueToText(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case Decimal:
		return val.String()
	case TimeValue:
		return val.String()
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return ""
	}
}
