// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "strings"

// Query runs sql as a text-protocol command and returns its result
// set, or nil if the statement produced no columns (an INSERT/UPDATE/
// DDL statement — inspect AffectedRows/InsertID instead).
func (mc *Connection) Query(sql string) (*Result, error) {
	var result *Result

	err := mc.withExchange(func() error {
		if err := mc.writeCommandPacket(comQuery, []byte(sql)); err != nil {
			return err
		}

		fieldCount, err := mc.readResultSetHeaderPacket()
		if err != nil {
			if req, ok := err.(*localInFileRequest); ok {
				r, ierr := mc.handleLocalInfileRequest(req)
				result = r
				return ierr
			}
			return err
		}
		if fieldCount == 0 {
			return nil
		}

		fields, err := mc.readColumns(int(fieldCount))
		if err != nil {
			return err
		}

		r, err := newResult(mc, fields, false)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// Ping sends COM_PING, verifying the connection is alive.
func (mc *Connection) Ping() error {
	return mc.withExchange(func() error {
		if err := mc.writeCommandPacket(comPing, nil); err != nil {
			return err
		}
		return mc.readResultOK()
	})
}

// SelectDB changes the default database, equivalent to COM_INIT_DB.
func (mc *Connection) SelectDB(name string) error {
	return mc.withExchange(func() error {
		if err := mc.writeCommandPacket(comInitDB, []byte(name)); err != nil {
			return err
		}
		return mc.readResultOK()
	})
}

// Stat sends COM_STATISTICS and returns the server's human-readable
// status line.
func (mc *Connection) Stat() (string, error) {
	var stat string
	err := mc.withExchange(func() error {
		if err := mc.writeCommandPacket(comStatistics, nil); err != nil {
			return err
		}
		data, err := mc.readPacket()
		if err != nil {
			return err
		}
		stat = string(data)
		return nil
	})
	return stat, err
}

// Refresh sends COM_REFRESH with the given flag bitmask, flushing the
// server caches it selects.
func (mc *Connection) Refresh(flags RefreshFlag) error {
	return mc.withExchange(func() error {
		if err := mc.writeCommandPacket(comRefresh, []byte{byte(flags)}); err != nil {
			return err
		}
		return mc.readResultOK()
	})
}

// Kill sends COM_PROCESS_KILL for the given thread id, asking the
// server to abort that connection's current statement. Per the
// concurrency model, this must be issued on a second connection since
// a blocked connection cannot service its own kill request.
func (mc *Connection) Kill(threadID uint32) error {
	return mc.withExchange(func() error {
		if err := mc.writeCommandPacket(comProcessKill, uint32ToBytes(threadID)); err != nil {
			return err
		}
		return mc.readResultOK()
	})
}

// Autocommit sets the session's autocommit mode.
func (mc *Connection) Autocommit(on bool) error {
	if on {
		_, err := mc.Query("SET autocommit=1")
		return err
	}
	_, err := mc.Query("SET autocommit=0")
	return err
}

// Commit commits the current transaction.
func (mc *Connection) Commit() error {
	_, err := mc.Query("COMMIT")
	return err
}

// Rollback rolls back the current transaction.
func (mc *Connection) Rollback() error {
	_, err := mc.Query("ROLLBACK")
	return err
}

// NextResult reads the next result header on the same command exchange
// without resetting the sequence id, per the multi-result-set
// transition: valid only when MoreResults reported true.
func (mc *Connection) NextResult() (*Result, error) {
	var result *Result

	err := mc.withExchange(func() error {
		fieldCount, err := mc.readResultSetHeaderPacket()
		if err != nil {
			return err
		}
		if fieldCount == 0 {
			return nil
		}

		fields, err := mc.readColumns(int(fieldCount))
		if err != nil {
			return err
		}

		r, err := newResult(mc, fields, false)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// Escape quotes s for safe inclusion in a single-quoted SQL literal,
// honouring the NO_BACKSLASH_ESCAPES server mode from the last status.
func (mc *Connection) Escape(s string) string {
	if mc.status&statusNoBackslashEscapes != 0 {
		return strings.ReplaceAll(s, "'", "''")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\x1a':
			b.WriteString(`\Z`)
		case '\'', '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
