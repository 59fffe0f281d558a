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
	"io"
	"net"
	"sync"
	"time"
)

// Connection is a single cooperative, non-pooled session against a
// MySQL 4.1+ server: exactly one command exchange runs at a time (an
// overlapping call fails with ErrBusy; see withExchange). It is not safe
// for concurrent use by multiple goroutines.
type Connection struct {
	cfg     *Config
	netConn net.Conn
	buf     *buffer

	// exchange serialises every multi-packet command from header write
	// through the final response packet.
	exchange sync.Mutex

	sequence     uint8
	charset      uint8
	capabilities ClientFlag

	serverVersion    string
	serverVersionNum int
	threadID         uint32

	status       serverStatus
	affectedRows uint64
	insertID     uint64
	warningCount uint16
	info         string
	lastError    *MySQLError

	closed atomicBool

	closeQueueMu sync.Mutex
	closeQueue   []uint32
}

// Connect dials cfg.Net/cfg.Addr, performs the handshake and native
// 4.1 authentication, and runs cfg.InitCommand if set. On any failure
// the transport is closed and the connection is unusable.
func Connect(cfg *Config) (*Connection, error) {
	netw := cfg.Net
	if netw == "" {
		netw = "tcp"
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.Dial(netw, cfg.Addr)
	if err != nil {
		return nil, err
	}

	mc := &Connection{
		cfg:     cfg,
		netConn: conn,
		buf:     newBuffer(conn),
		charset: defaultCharset,
	}
	if cfg.Charset != "" {
		if id, ok := charsetNameToID(cfg.Charset); ok {
			mc.charset = id
		}
	}
	if cfg.ReadTimeout > 0 || cfg.WriteTimeout > 0 {
		mc.buf.timeout = cfg.ReadTimeout
	}

	if err := mc.handshake(); err != nil {
		mc.netConn.Close()
		return nil, err
	}

	if cfg.InitCommand != "" {
		if _, err := mc.Query(cfg.InitCommand); err != nil {
			mc.netConn.Close()
			return nil, err
		}
	}

	return mc, nil
}

// handshake drives fresh → handshaking → authenticated → idle.
func (mc *Connection) handshake() error {
	hs, err := mc.readHandshakePacket()
	if err != nil {
		return err
	}

	mc.serverVersion = hs.serverVersion
	mc.serverVersionNum = parseServerVersion(hs.serverVersion)
	mc.threadID = hs.threadID
	mc.status = hs.status

	if _, configured := charsetNameToID(mc.cfg.Charset); !configured && hs.charset != 0 {
		if _, _, ok := charsetByID(hs.charset); ok {
			mc.charset = hs.charset
		}
	}
	if _, _, ok := charsetByID(mc.charset); !ok {
		return ErrUnsupportedOption
	}

	if err := mc.writeAuthPacket(hs); err != nil {
		return err
	}

	if err := mc.readResultOK(); err != nil {
		return err
	}

	return nil
}

// parseServerVersion packs "major.minor.patch[-suffix]" into
// major*10000 + minor*100 + patch, per the Connection data model.
func parseServerVersion(v string) int {
	var out [3]int
	field := 0
	val := 0
	any := false
	for _, c := range v {
		switch {
		case c >= '0' && c <= '9':
			val = val*10 + int(c-'0')
			any = true
		case c == '.' && field < 2:
			out[field] = val
			field++
			val = 0
			any = false
		default:
			if any {
				out[field] = val
			}
			return out[0]*10000 + out[1]*100 + out[2]
		}
	}
	if any {
		out[field] = val
	}
	return out[0]*10000 + out[1]*100 + out[2]
}

// withExchange runs fn holding the connection's critical section,
// matching the single-threaded cooperative resource model: exactly one
// command exchange at a time. A second caller overlapping an in-flight
// exchange (e.g. from another goroutine) is rejected with ErrBusy
// rather than queued behind it.
func (mc *Connection) withExchange(fn func() error) error {
	if !mc.exchange.TryLock() {
		return ErrBusy
	}
	defer mc.exchange.Unlock()

	mc.drainDeferredCloses()

	if mc.closed.IsSet() {
		if !mc.cfg.Reconnect {
			return ErrConnDone
		}
		if err := mc.reconnect(); err != nil {
			return err
		}
	}

	mc.lastError = nil
	if mc.cfg.WriteTimeout > 0 || mc.cfg.ReadTimeout > 0 {
		mc.buf.timeout = mc.cfg.ReadTimeout
	}

	err := fn()
	if err != nil && isFatalProtocolError(err) {
		mc.markClosed()
	}
	return err
}

// isFatalProtocolError reports whether err must poison the connection,
// per §4.8: protocol violations and transport errors are fatal; server
// ERR packets (MySQLError) are not.
func isFatalProtocolError(err error) bool {
	switch err.(type) {
	case *MySQLError:
		return false
	}
	switch err {
	case ErrPktSync, ErrPktSyncMul, ErrMalformedPacket, ErrPktTooLarge,
		ErrUnknownFieldType, ErrOldPassword, ErrInvalidConn,
		io.EOF: // the codec's signal for a truncated payload
		return true
	}
	return false
}

func (mc *Connection) markClosed() {
	mc.closed.Set(true)
}

// maxReconnectAttempts bounds the redial loop the "reconnect" Config
// option drives; exhausting it surfaces the last dial/handshake error.
const maxReconnectAttempts = 5

// reconnect redials cfg.Net/cfg.Addr with exponential backoff and
// replaces the transport in place, re-running the handshake. Only
// called from withExchange when the connection was previously marked
// closed by a fatal protocol/transport error and cfg.Reconnect opted
// in to automatic recovery.
func (mc *Connection) reconnect() error {
	netw := mc.cfg.Net
	if netw == "" {
		netw = "tcp"
	}
	backoff := newExponentialBackoff()

	var lastErr error
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(backoff.NextInterval(attempt - 1))
		}

		dialer := net.Dialer{Timeout: mc.cfg.ConnectTimeout}
		conn, err := dialer.Dial(netw, mc.cfg.Addr)
		if err != nil {
			lastErr = err
			continue
		}

		mc.netConn = conn
		mc.buf = newBuffer(conn)
		if mc.cfg.ReadTimeout > 0 || mc.cfg.WriteTimeout > 0 {
			mc.buf.timeout = mc.cfg.ReadTimeout
		}
		mc.sequence = 0

		if err := mc.handshake(); err != nil {
			lastErr = err
			conn.Close()
			continue
		}

		mc.closed.Set(false)
		return nil
	}
	return lastErr
}

// scheduleStatementClose enqueues a deferred STMT_CLOSE for a statement
// dropped without an explicit Close call (§4.7, §9 Design Notes): the
// finaliser cannot race an in-flight exchange, so it only hands the id
// off here and the next exchange drains the queue first.
func (mc *Connection) scheduleStatementClose(stmtID uint32) {
	mc.closeQueueMu.Lock()
	mc.closeQueue = append(mc.closeQueue, stmtID)
	mc.closeQueueMu.Unlock()
}

func (mc *Connection) drainDeferredCloses() {
	mc.closeQueueMu.Lock()
	queue := mc.closeQueue
	mc.closeQueue = nil
	mc.closeQueueMu.Unlock()

	for _, id := range queue {
		arg := uint32ToBytes(id)
		if err := mc.writeCommandPacket(comStmtClose, arg); err != nil {
			return
		}
	}
}

// Close sends COM_QUIT and releases the transport. Best-effort: socket
// errors while quitting are swallowed, matching the close() transition
// in the connection state machine.
func (mc *Connection) Close() error {
	if mc.closed.TrySet(true) {
		mc.exchange.Lock()
		_ = mc.writeCommandPacket(comQuit, nil)
		mc.exchange.Unlock()
	}
	return mc.netConn.Close()
}

// IsClosed reports whether the connection has been closed or has
// suffered a fatal protocol/transport error.
func (mc *Connection) IsClosed() bool {
	return mc.closed.IsSet()
}

// ThreadID returns the server-assigned connection id from the
// handshake.
func (mc *Connection) ThreadID() uint32 { return mc.threadID }

// ServerVersion returns the server's version string verbatim.
func (mc *Connection) ServerVersion() string { return mc.serverVersion }

// ServerVersionNumber returns major*10000 + minor*100 + patch.
func (mc *Connection) ServerVersionNumber() int { return mc.serverVersionNum }

// Errno returns the last server error's number, or 0 if none.
func (mc *Connection) Errno() uint16 {
	if mc.lastError == nil {
		return 0
	}
	return mc.lastError.Number
}

// Error returns the last server error's message, or "" if none.
func (mc *Connection) Error() string {
	if mc.lastError == nil {
		return ""
	}
	return mc.lastError.Message
}

// SqlstateErr returns the last server error's SQLSTATE, or "00000" if
// none.
func (mc *Connection) SqlstateErr() string {
	if mc.lastError == nil {
		return "00000"
	}
	return mc.lastError.Sqlstate()
}

// WarningCount returns the warning count from the last command.
func (mc *Connection) WarningCount() uint16 { return mc.warningCount }

// AffectedRows returns the affected-row count from the last command.
func (mc *Connection) AffectedRows() uint64 { return mc.affectedRows }

// InsertID returns the auto-increment id generated by the last insert.
func (mc *Connection) InsertID() uint64 { return mc.insertID }

// Info returns the human-readable info string from the last OK packet.
func (mc *Connection) Info() string { return mc.info }

// MoreResults reports whether the last command's server status carries
// SERVER_MORE_RESULTS_EXISTS.
func (mc *Connection) MoreResults() bool {
	return mc.status&statusMoreResultsExists != 0
}

// timeoutDeadline sets a combined read/write deadline d from now on the
// transport; a non-positive d leaves it unchanged. The LOAD DATA LOCAL
// INFILE streaming path calls it with the write timeout before each
// packet, since writePacket itself sets no deadline.
func (mc *Connection) timeoutDeadline(d time.Duration) {
	if d <= 0 {
		return
	}
	_ = mc.netConn.SetDeadline(time.Now().Add(d))
}
