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
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// charsetEntry binds a wire charset id to the collation name MySQL uses
// in "SET NAMES" and to the host text encoding needed to decode LCS
// bytes that arrive under that charset.
type charsetEntry struct {
	name string
	enc  encoding.Encoding // nil means "already valid UTF-8 / ASCII-compatible, pass through"
}

// charsets is the directory mapping wire charset ids to names and host
// encodings. It is not exhaustive of every collation MySQL ships (that
// table runs past 250 entries); it covers the charsets a 4.1+ handshake
// commonly negotiates. An id missing from this table is not a connect
// error: the driver treats field bytes under it as opaque.
var charsets = map[uint8]charsetEntry{
	8:   {"latin1", charmap.Windows1252},
	9:   {"latin2", charmap.ISO8859_2},
	28:  {"gbk", simplifiedchinese.GBK},
	33:  {"utf8", nil},
	45:  {"utf8mb4", nil},
	46:  {"utf8mb4", nil},
	63:  {"binary", nil},
	1:   {"big5", traditionalchinese.Big5},
	3:   {"dec8", nil},
	4:   {"cp850", charmap.CodePage850},
	6:   {"hp8", nil},
	7:   {"koi8r", charmap.KOI8R},
	11:  {"ascii", nil},
	13:  {"sjis", japanese.ShiftJIS},
	14:  {"cp1251", charmap.Windows1251},
	24:  {"gb2312", simplifiedchinese.HZGB2312},
	35:  {"euckr", korean.EUCKR},
	36:  {"gb2312", simplifiedchinese.HZGB2312},
	51:  {"cp1251", charmap.Windows1251},
	57:  {"cp1256", charmap.Windows1256},
	59:  {"cp1257", charmap.Windows1257},
	95:  {"cp932", japanese.ShiftJIS},
	97:  {"eucjpms", japanese.EUCJP},
	224: {"utf8mb4", nil},
	255: {"utf8mb4", nil},
}

// defaultCharset is used when a handshake's server default charset id is
// not in our directory and the caller did not request one explicitly.
const defaultCharset uint8 = 33 // utf8_general_ci

// charsetByID looks up the name and host encoding for a wire charset id.
func charsetByID(id uint8) (name string, enc encoding.Encoding, ok bool) {
	e, ok := charsets[id]
	return e.name, e.enc, ok
}

// charsetNameToID performs the reverse lookup used by "charset=" DSN
// handling; it matches by collation family name (the part before any
// "_ci"/"_bin" suffix is not required here, the caller passes exactly
// the names this table publishes).
func charsetNameToID(name string) (id uint8, ok bool) {
	for cid, entry := range charsets {
		if entry.name == name {
			return cid, true
		}
	}
	return 0, false
}

// decodeText converts LCS bytes received under charset id into host
// text. BIT columns and columns carrying the BINARY flag must not be
// routed through here (§4.4): they are raw bytes regardless of the
// connection charset.
func decodeText(id uint8, b []byte) []byte {
	_, enc, ok := charsetByID(id)
	if !ok || enc == nil {
		return b
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return b
	}
	return out
}
