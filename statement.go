// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "runtime"

// Statement is a prepared statement bound to the Connection that
// created it. The connection is a non-owning handle (§9 Design Notes):
// the connection outlives the statement by construction, so no cycle
// needs breaking.
type Statement struct {
	mc         *Connection
	id         uint32
	paramCount int
	params     []*Field
	fields     []*Field
	closed     bool
}

// Prepare sends STMT_PREPARE, consumes the Prepare-OK plus parameter
// and result field metadata, and returns a Statement bound to mc.
//
// If the returned Statement is dropped without Close being called, a
// finaliser schedules STMT_CLOSE on the connection's deferred-close
// queue rather than racing whatever exchange happens to be in flight.
func (mc *Connection) Prepare(query string) (stmt *Statement, err error) {
	err = mc.withExchange(func() error {
		if werr := mc.writeCommandPacket(comStmtPrepare, []byte(query)); werr != nil {
			return werr
		}

		ok, perr := mc.readPrepareResultPacket()
		if perr != nil {
			return perr
		}

		s := &Statement{
			mc:         mc,
			id:         ok.stmtID,
			paramCount: int(ok.paramCount),
		}

		if s.paramCount > 0 {
			params, cerr := mc.readColumns(s.paramCount)
			if cerr != nil {
				return cerr
			}
			s.params = params
		}

		if ok.columnCount > 0 {
			fields, cerr := mc.readColumns(int(ok.columnCount))
			if cerr != nil {
				return cerr
			}
			s.fields = fields
		}

		stmt = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	runtime.SetFinalizer(stmt, (*Statement).finalize)
	return stmt, nil
}

// ParamCount returns the number of placeholders the statement expects.
func (stmt *Statement) ParamCount() int { return stmt.paramCount }

// Fields returns the statement's result column descriptors, or nil for
// statements that do not produce a result set.
func (stmt *Statement) Fields() []*Field { return stmt.fields }

// Execute binds args to the statement's placeholders and runs it,
// returning the result set for SELECT-shaped statements or nil for
// statements that only report affected rows.
func (stmt *Statement) Execute(args ...Value) (*Result, error) {
	if stmt.mc == nil {
		return nil, ErrNotPrepared
	}
	if stmt.closed {
		return nil, ErrStatementClosed
	}
	if len(args) != stmt.paramCount {
		return nil, ErrArityMismatch
	}

	mc := stmt.mc
	var result *Result

	err := mc.withExchange(func() error {
		mc.resetSequence()
		payload, berr := buildExecutePacket(stmt.id, args)
		if berr != nil {
			return berr
		}
		if limit := mc.cfg.MaxAllowedPacket; limit > 0 && len(payload) > limit {
			return ErrPktTooLarge
		}
		if werr := mc.writePacket(payload); werr != nil {
			return werr
		}

		fieldCount, herr := mc.readResultSetHeaderPacket()
		if herr != nil {
			return herr
		}
		if fieldCount == 0 {
			return nil
		}

		fields, cerr := mc.readColumns(int(fieldCount))
		if cerr != nil {
			return cerr
		}

		r, rerr := newResult(mc, fields, true)
		if rerr != nil {
			return rerr
		}
		result = r
		return nil
	})
	return result, err
}

// Close sends STMT_CLOSE, releasing the statement id on the server. No
// reply is expected. Close is idempotent.
func (stmt *Statement) Close() error {
	if stmt.mc == nil {
		return ErrNotPrepared
	}
	if stmt.closed {
		return nil
	}
	stmt.closed = true
	runtime.SetFinalizer(stmt, nil)

	mc := stmt.mc
	return mc.withExchange(func() error {
		return mc.writeCommandPacket(comStmtClose, uint32ToBytes(stmt.id))
	})
}

// finalize is the runtime finaliser for statements dropped without an
// explicit Close: it hands the close off to the connection's deferred
// queue instead of taking the exchange lock from finaliser context.
func (stmt *Statement) finalize() {
	if stmt.closed {
		return
	}
	stmt.closed = true
	stmt.mc.scheduleStatementClose(stmt.id)
}
