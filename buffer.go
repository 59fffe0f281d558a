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
	"io"
	"net"
	"time"
)

const defaultBufSize = 4096

// buffer is a read buffer similar to bufio.Reader but tuned for this
// package's read-exactly-N-bytes access pattern, with an optional
// per-read deadline applied to the underlying net.Conn.
type buffer struct {
	buf     []byte
	rd      io.Reader
	idx     int
	length  int
	timeout time.Duration
	conn    net.Conn
}

func newBuffer(rd io.Reader) *buffer {
	var b [defaultBufSize]byte
	conn, _ := rd.(net.Conn)
	return &buffer{
		buf:  b[:],
		rd:   rd,
		conn: conn,
	}
}

// fill reads into the buffer until at least _need_ bytes are in it
func (b *buffer) fill(need int) (err error) {
	// move existing data to the beginning
	if b.length > 0 && b.idx > 0 {
		copy(b.buf[0:b.length], b.buf[b.idx:b.idx+b.length])
	}

	// grow buffer if necessary
	if need > len(b.buf) {
		newBuf := make([]byte, need)
		copy(newBuf, b.buf[:b.length])
		b.buf = newBuf
	}

	b.idx = 0

	var n int
	for b.length < need {
		if b.timeout > 0 && b.conn != nil {
			if err = b.conn.SetReadDeadline(time.Now().Add(b.timeout)); err != nil {
				return err
			}
		}

		n, err = b.rd.Read(b.buf[b.length:])
		b.length += n

		if err != nil {
			return err
		}
	}
	return nil
}

// readNext returns the next N bytes from the buffer without copying when
// possible. The returned slice is only valid until the next read.
func (b *buffer) readNext(need int) (p []byte, err error) {
	if b.length < need {
		if err = b.fill(need); err != nil {
			return nil, err
		}
	}

	p = b.buf[b.idx : b.idx+need]
	b.idx += need
	b.length -= need
	return
}
