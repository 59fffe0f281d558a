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
	"fmt"
)

// Packets documentation:
// https://dev.mysql.com/doc/internals/en/client-server-protocol.html

/******************************************************************************
*                              Framing layer                                  *
******************************************************************************/

// readPacket reads one logical packet, transparently reassembling any
// 0xFFFFFF-length continuation packets into a single payload.
func (mc *Connection) readPacket() ([]byte, error) {
	var payload []byte

	for {
		header, err := mc.buf.readNext(4)
		if err != nil {
			errLog.Print(err)
			return nil, ErrInvalidConn
		}

		pktLen := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
		seq := header[3]

		if seq != mc.sequence {
			if seq > mc.sequence {
				return nil, ErrPktSyncMul
			}
			return nil, ErrPktSync
		}
		mc.sequence++

		data, err := mc.buf.readNext(pktLen)
		if err != nil {
			errLog.Print(err)
			return nil, ErrInvalidConn
		}

		// readNext's slice is only valid until the next read; the caller
		// keeps payload past that point, so it must be copied.
		buf := make([]byte, len(data))
		copy(buf, data)

		if payload == nil {
			payload = buf
		} else {
			payload = append(payload, buf...)
		}

		if pktLen < maxPacketSize {
			return payload, nil
		}
		// exactly maxPacketSize: another packet (possibly zero-length)
		// follows and belongs to the same message.
	}
}

// writePacket frames data (a single logical message) into one or more
// ≤16MiB wire packets, emitting a trailing zero-length packet when the
// final chunk is exactly maxPacketSize bytes long.
func (mc *Connection) writePacket(data []byte) error {
	for {
		chunk := data
		if len(chunk) > maxPacketSize {
			chunk = chunk[:maxPacketSize]
		}

		header := []byte{
			byte(len(chunk)),
			byte(len(chunk) >> 8),
			byte(len(chunk) >> 16),
			mc.sequence,
		}

		if err := mc.writeRaw(header); err != nil {
			return err
		}
		if len(chunk) > 0 {
			if err := mc.writeRaw(chunk); err != nil {
				return err
			}
		}
		mc.sequence++

		data = data[len(chunk):]
		if len(chunk) < maxPacketSize {
			return nil
		}
		if len(data) == 0 {
			// exact multiple: emit the empty terminator packet too.
			header = []byte{0, 0, 0, mc.sequence}
			if err := mc.writeRaw(header); err != nil {
				return err
			}
			mc.sequence++
			return nil
		}
	}
}

func (mc *Connection) writeRaw(b []byte) error {
	n, err := mc.netConn.Write(b)
	if err != nil || n != len(b) {
		if err == nil {
			err = ErrMalformedPacket
		}
		errLog.Print(err)
		return ErrInvalidConn
	}
	return nil
}

// resetSequence starts a new command exchange: the client's first
// packet of every exchange carries sequence id 0.
func (mc *Connection) resetSequence() {
	mc.sequence = 0
}

/******************************************************************************
*                          Initialisation process                             *
******************************************************************************/

// handshakeInfo holds what the initial handshake packet reveals about
// the peer, prior to authentication.
type handshakeInfo struct {
	serverVersion string
	threadID      uint32
	salt          []byte
	capabilities  ClientFlag
	charset       uint8
	status        serverStatus
}

// readHandshakePacket parses the server's initial handshake (§4.3).
func (mc *Connection) readHandshakePacket() (*handshakeInfo, error) {
	data, err := mc.readPacket()
	if err != nil {
		return nil, err
	}

	if len(data) < 1 {
		return nil, ErrMalformedPacket
	}
	if data[0] < minProtocolVersion {
		return nil, ErrUnsupportedProto
	}

	pos := 1
	end := bytes.IndexByte(data[pos:], 0x00)
	if end < 0 {
		return nil, ErrMalformedPacket
	}
	serverVersion := string(data[pos : pos+end])
	pos += end + 1

	if pos+4 > len(data) {
		return nil, ErrMalformedPacket
	}
	threadID := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4

	if pos+8 > len(data) {
		return nil, ErrMalformedPacket
	}
	salt := append([]byte(nil), data[pos:pos+8]...)
	pos += 8

	// filler
	pos++

	if pos+2 > len(data) {
		return nil, ErrMalformedPacket
	}
	capLower := binary.LittleEndian.Uint16(data[pos : pos+2])
	pos += 2

	info := &handshakeInfo{
		serverVersion: serverVersion,
		threadID:      threadID,
		capabilities:  ClientFlag(capLower),
	}

	if len(data) <= pos {
		info.salt = salt
		return info, nil
	}

	info.charset = data[pos]
	pos++

	if pos+2 > len(data) {
		return nil, ErrMalformedPacket
	}
	info.status = serverStatus(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	if pos+2 > len(data) {
		return nil, ErrMalformedPacket
	}
	capUpper := binary.LittleEndian.Uint16(data[pos : pos+2])
	info.capabilities |= ClientFlag(capUpper) << 16
	pos += 2

	// auth-plugin-data-len, 10 reserved bytes
	pos += 1 + 10

	if pos < len(data) {
		rest := data[pos:]
		if end := bytes.IndexByte(rest, 0x00); end >= 0 {
			rest = rest[:end]
		}
		salt = append(salt, rest...)
	}

	info.salt = salt
	return info, nil
}

/* Client Authentication Packet
Bytes                        Name
-----                        ----
4                            client_flags
4                            max_packet_size
1                            charset_number
23                           (filler) always 0x00...
n (Null-Terminated String)   user
n (Length Coded Binary)      scramble_buff (1 + x bytes)
n (Null-Terminated String)   databasename (optional)
*/
func (mc *Connection) writeAuthPacket(hs *handshakeInfo) error {
	clientFlags := ClientFlag(clientLongPassword | clientSecureConn | clientTransactions | clientProtocol41)
	if hs.capabilities&clientLongFlag != 0 {
		clientFlags |= clientLongFlag
	}
	if mc.cfg.LocalInfile {
		clientFlags |= clientLocalFiles
	}

	scramble := scramblePassword(hs.salt, mc.cfg.Passwd)

	pktLen := 4 + 4 + 1 + 23 + len(mc.cfg.User) + 1 + 1 + len(scramble)
	if len(mc.cfg.DBName) > 0 {
		clientFlags |= clientConnectWithDB
		pktLen += len(mc.cfg.DBName) + 1
	}

	data := make([]byte, 0, pktLen)
	data = append(data, uint32ToBytes(uint32(clientFlags))...)
	data = append(data, uint32ToBytes(maxClientPacketSize)...)
	data = append(data, mc.charset)
	data = append(data, make([]byte, 23)...)
	data = append(data, []byte(mc.cfg.User)...)
	data = append(data, 0x00)
	data = append(data, byte(len(scramble)))
	data = append(data, scramble...)
	if len(mc.cfg.DBName) > 0 {
		data = append(data, []byte(mc.cfg.DBName)...)
		data = append(data, 0x00)
	}

	mc.capabilities = clientFlags
	return mc.writePacket(data)
}

/******************************************************************************
*                              Command packets                                *
******************************************************************************/

// writeCommandPacket resets the sequence counter and sends a bare
// command byte followed by arg.
func (mc *Connection) writeCommandPacket(cmd command, arg []byte) error {
	mc.resetSequence()
	if limit := mc.cfg.MaxAllowedPacket; limit > 0 && len(arg)+1 > limit {
		return ErrPktTooLarge
	}
	data := make([]byte, 0, 1+len(arg))
	data = append(data, byte(cmd))
	data = append(data, arg...)
	return mc.writePacket(data)
}

/******************************************************************************
*                              Result packets                                 *
******************************************************************************/

// readResultOK reads a packet expected to be OK (or ERR/old-password).
func (mc *Connection) readResultOK() error {
	data, err := mc.readPacket()
	if err != nil {
		return err
	}

	switch data[0] {
	case iOK:
		return mc.handleOkPacket(data)
	case iEOF:
		return ErrOldPassword
	case iERR:
		return mc.handleErrorPacket(data)
	}
	return ErrMalformedPacket
}

/* Error Packet
Bytes                       Name
-----                       ----
1                           field_count, always = 0xff
2                           errno
1                           (sqlstate marker), always '#'
5                           sqlstate
n                           message
*/
func (mc *Connection) handleErrorPacket(data []byte) error {
	if len(data) < 9 {
		return ErrMalformedPacket
	}

	e := &MySQLError{
		Number: binary.LittleEndian.Uint16(data[1:3]),
	}
	if data[3] == '#' {
		copy(e.SQLState[:], data[4:9])
		e.Message = string(data[9:])
	} else {
		e.Message = string(data[3:])
	}

	mc.lastError = e
	return e
}

/* OK Packet
Bytes                       Name
-----                       ----
1   (Length Coded Binary)   field_count, always = 0
1-9 (Length Coded Binary)   affected_rows
1-9 (Length Coded Binary)   insert_id
2                           server_status
2                           warning_count
n   (until end of packet)   message
*/
func (mc *Connection) handleOkPacket(data []byte) error {
	var n int
	var err error

	mc.affectedRows, _, n, err = readLengthEncodedInteger(data[1:])
	if err != nil {
		return err
	}
	pos := 1 + n

	mc.insertID, _, n, err = readLengthEncodedInteger(data[pos:])
	if err != nil {
		return err
	}
	pos += n

	if pos+4 > len(data) {
		return ErrMalformedPacket
	}
	mc.status = serverStatus(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2
	mc.warningCount = binary.LittleEndian.Uint16(data[pos : pos+2])
	pos += 2

	mc.info = ""
	if pos < len(data) {
		mc.info = string(data[pos:])
	}

	mc.lastError = nil
	return nil
}

// readEOFPacket decodes a 5-byte EOF/result-terminator packet.
func readEOFPacket(data []byte) (warnings uint16, status serverStatus, err error) {
	if len(data) != 5 || data[0] != iEOF {
		return 0, 0, ErrMalformedPacket
	}
	warnings = binary.LittleEndian.Uint16(data[1:3])
	status = serverStatus(binary.LittleEndian.Uint16(data[3:5]))
	return warnings, status, nil
}

func isEOFPacket(data []byte) bool {
	return len(data) >= 1 && len(data) <= 5 && data[0] == iEOF
}

/* Result Set Header Packet
Bytes                        Name
-----                        ----
1-9   (Length-Coded-Binary)  field_count
*/
func (mc *Connection) readResultSetHeaderPacket() (fieldCount uint64, err error) {
	data, err := mc.readPacket()
	if err != nil {
		return 0, err
	}

	switch data[0] {
	case iOK:
		return 0, mc.handleOkPacket(data)
	case iERR:
		return 0, mc.handleErrorPacket(data)
	case iLocalInFile:
		return 0, &localInFileRequest{name: string(data[1:])}
	}

	num, isNull, _, err := readLengthEncodedInteger(data)
	if err != nil || isNull {
		return 0, ErrMalformedPacket
	}
	return num, nil
}

// localInFileRequest signals that the server answered a query with a
// LOCAL INFILE request instead of a result-set header.
type localInFileRequest struct {
	name string
}

func (r *localInFileRequest) Error() string {
	return fmt.Sprintf("mysql: server requested LOCAL INFILE %q", r.name)
}

// readColumns reads count field packets followed by their terminating
// EOF packet.
func (mc *Connection) readColumns(count int) ([]*Field, error) {
	columns := make([]*Field, 0, count)

	for {
		data, err := mc.readPacket()
		if err != nil {
			return nil, err
		}

		if isEOFPacket(data) {
			if len(columns) != count {
				return nil, fmt.Errorf("mysql: column count mismatch: want %d, got %d", count, len(columns))
			}
			return columns, nil
		}

		f, err := decodeFieldPacket(data)
		if err != nil {
			return nil, err
		}
		columns = append(columns, f)
	}
}

// readUntilEOF drains packets until the terminating EOF is seen.
func (mc *Connection) readUntilEOF() error {
	for {
		data, err := mc.readPacket()
		if err != nil {
			return err
		}
		if isEOFPacket(data) {
			return nil
		}
	}
}

// readTextRow decodes one text-protocol row packet. done is true when
// the packet read was the terminating EOF marker rather than a row.
func (mc *Connection) readTextRow(fields []*Field) (row []Value, done bool, err error) {
	data, err := mc.readPacket()
	if err != nil {
		return nil, false, err
	}
	if isEOFPacket(data) {
		warnings, status, err := readEOFPacket(data)
		if err != nil {
			return nil, false, err
		}
		mc.warningCount = warnings
		mc.status = status
		return nil, true, nil
	}

	row = make([]Value, len(fields))
	pos := 0
	for i, f := range fields {
		v, n, err := decodeTextValue(f, mc.charset, data[pos:])
		if err != nil {
			return nil, false, err
		}
		row[i] = v
		pos += n
	}
	return row, false, nil
}

// readBinaryRow decodes one binary-protocol (prepared statement) row
// packet per the Row (binary) data model: a 0x00 prefix, a null bitmap
// offset by 2 bits, then a type-specific value per non-null column.
func (mc *Connection) readBinaryRow(fields []*Field) (row []Value, done bool, err error) {
	data, err := mc.readPacket()
	if err != nil {
		return nil, false, err
	}
	if isEOFPacket(data) {
		warnings, status, err := readEOFPacket(data)
		if err != nil {
			return nil, false, err
		}
		mc.warningCount = warnings
		mc.status = status
		return nil, true, nil
	}
	if len(data) < 1 || data[0] != 0x00 {
		return nil, false, ErrMalformedPacket
	}

	bitmapLen := (len(fields) + 7 + 2) / 8
	if 1+bitmapLen > len(data) {
		return nil, false, ErrMalformedPacket
	}
	nullBitmap := data[1 : 1+bitmapLen]
	pos := 1 + bitmapLen

	row = make([]Value, len(fields))
	for i, f := range fields {
		if nullBitmap[(i+2)/8]>>uint((i+2)%8)&1 == 1 {
			row[i] = nil
			continue
		}
		v, n, err := decodeBinaryValue(f, mc.charset, data[pos:])
		if err != nil {
			return nil, false, err
		}
		row[i] = v
		pos += n
	}
	return row, false, nil
}

/******************************************************************************
*                           Prepared statements                               *
******************************************************************************/

type prepareOK struct {
	stmtID      uint32
	columnCount uint16
	paramCount  uint16
}

/* Prepare OK Packet
Bytes              Name
-----              ----
1                  0 - marker for OK packet
4                  statement_id
2                  number of columns in result set
2                  number of parameters in query
1                  filler (always 0)
2                  warning count
*/
func (mc *Connection) readPrepareResultPacket() (*prepareOK, error) {
	data, err := mc.readPacket()
	if err != nil {
		return nil, err
	}

	if data[0] == iERR {
		return nil, mc.handleErrorPacket(data)
	}
	if data[0] != iOK {
		return nil, ErrMalformedPacket
	}
	if len(data) < 12 {
		return nil, ErrMalformedPacket
	}

	ok := &prepareOK{
		stmtID:      binary.LittleEndian.Uint32(data[1:5]),
		columnCount: binary.LittleEndian.Uint16(data[5:7]),
		paramCount:  binary.LittleEndian.Uint16(data[7:9]),
	}
	return ok, nil
}

/* Execute Packet
Bytes                Name
-----                ----
1                    code (0x17)
4                    statement_id
1                    flags (0 = no cursor)
4                    iteration_count (always 1)
  if param_count > 0:
(param_count+7)/8    null_bit_map
1                    new_parameter_bound_flag
  if new_params_bound == 1:
n*2                  type of parameters
n                    values for the parameters
*/
func buildExecutePacket(stmtID uint32, args []Value) ([]byte, error) {
	paramCount := len(args)

	nullBitmap := make([]byte, (paramCount+7)/8)
	paramTypes := make([]byte, 0, paramCount*2)
	paramValues := make([][]byte, 0, paramCount)

	for i, v := range args {
		ft, unsigned, payload, isNull, err := encodeBinaryParam(v)
		if err != nil {
			return nil, err
		}
		if isNull {
			nullBitmap[i/8] |= 1 << uint(i%8)
		}

		unsignedFlag := byte(0)
		if unsigned {
			unsignedFlag = 0x80
		}
		paramTypes = append(paramTypes, byte(ft), unsignedFlag)
		if !isNull {
			paramValues = append(paramValues, payload)
		}
	}

	data := make([]byte, 0, 1+4+1+4+len(nullBitmap)+1+len(paramTypes)+64)
	data = append(data, byte(comStmtExecute))
	data = append(data, uint32ToBytes(stmtID)...)
	data = append(data, 0) // CURSOR_TYPE_NO_CURSOR
	data = append(data, uint32ToBytes(1)...)

	if paramCount > 0 {
		data = append(data, nullBitmap...)
		data = append(data, 1) // new-params-bound
		data = append(data, paramTypes...)
		for _, pv := range paramValues {
			data = append(data, pv...)
		}
	}

	return data, nil
}
