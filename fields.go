// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2017 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

// Field describes one result-set column, decoded from a field packet
// (§4.3). Database/Table/OrgTable/Name/OrgName/Default are copies, not
// references into the packet buffer that produced them.
type Field struct {
	Database    string
	Table       string
	OrgTable    string
	Name        string
	OrgName     string
	Charset     uint16
	Length      uint32
	Type        fieldType
	Flags       fieldFlag
	Decimals    byte
	Default     []byte // only populated for COM_FIELD_LIST responses
	hasDefault  bool
}

// IsNum reports whether the column is a numeric type, per §3: forced on
// for DECIMAL/TINY/SHORT/LONG/FLOAT/DOUBLE/LONGLONG/INT24, and for
// TIMESTAMP columns of display length 8 or 14 (the classic "legacy
// TIMESTAMP" display widths).
func (f *Field) IsNum() bool {
	switch f.Type {
	case fieldTypeDecimal, fieldTypeNewDecimal, fieldTypeTiny, fieldTypeShort,
		fieldTypeLong, fieldTypeFloat, fieldTypeDouble, fieldTypeLongLong, fieldTypeInt24:
		return true
	case fieldTypeTimestamp:
		return f.Length == 8 || f.Length == 14
	default:
		return false
	}
}

// isBinaryValue reports whether this column's bytes must be treated as
// opaque binary rather than routed through the connection charset:
// BIT columns and any column carrying the BINARY flag.
func (f *Field) isBinaryValue() bool {
	return f.Type == fieldTypeBit || f.Flags&flagBinary != 0
}

// decodeFieldPacket parses one field packet (§4.3): LCS catalog, db,
// table, org_table, name, org_name; 0x0c filler; u16 charset; u32
// length; u8 type; u16 flags; u8 decimals; u16 filler; optional LCS
// default (COM_FIELD_LIST only).
func decodeFieldPacket(data []byte) (*Field, error) {
	var pos int

	// catalog, unused
	n, err := readAndDropLengthEncodedString(data)
	if err != nil {
		return nil, err
	}
	pos += n

	db, isNull, n, err := readLengthEncodedString(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if isNull {
		db = nil
	}

	table, isNull, n, err := readLengthEncodedString(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if isNull {
		table = nil
	}

	orgTable, isNull, n, err := readLengthEncodedString(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if isNull {
		orgTable = nil
	}

	name, isNull, n, err := readLengthEncodedString(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if isNull {
		name = nil
	}

	orgName, isNull, n, err := readLengthEncodedString(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if isNull {
		orgName = nil
	}

	// 0x0c filler
	pos++

	if pos+12 > len(data) {
		return nil, ErrMalformedPacket
	}

	f := &Field{
		Database: string(db),
		Table:    string(table),
		OrgTable: string(orgTable),
		Name:     string(name),
		OrgName:  string(orgName),
		Charset:  uint16(data[pos]) | uint16(data[pos+1])<<8,
		Length:   uint32(data[pos+2]) | uint32(data[pos+3])<<8 | uint32(data[pos+4])<<16 | uint32(data[pos+5])<<24,
		Type:     fieldType(data[pos+6]),
		Flags:    fieldFlag(uint16(data[pos+7]) | uint16(data[pos+8])<<8),
		Decimals: data[pos+9],
	}
	pos += 10 + 2 // decimals + 2-byte filler

	if pos < len(data) {
		def, isNull, _, err := readLengthEncodedString(data[pos:])
		if err == nil && !isNull {
			f.Default = cloneBytes(def)
			f.hasDefault = true
		}
	}

	return f, nil
}
