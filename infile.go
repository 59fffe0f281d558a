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
	"os"
	"strings"
)

var (
	fileRegister   = make(map[string]bool)
	readerRegister = make(map[string]func() io.Reader)
)

// RegisterLocalFile whitelists filepath for use in
// "LOAD DATA LOCAL INFILE <filepath>". Local_infile must also be
// enabled on the Config for the capability to be advertised at all.
func RegisterLocalFile(filepath string) {
	fileRegister[filepath] = true
}

// RegisterReaderHandler registers an io.Reader factory under name, for
// use via "LOAD DATA LOCAL INFILE Reader::<name>". Not safe for
// concurrent use of the same name.
func RegisterReaderHandler(name string, cb func() io.Reader) {
	readerRegister[name] = cb
}

// DeregisterLocalFile removes a path from the whitelist.
func DeregisterLocalFile(filepath string) {
	delete(fileRegister, filepath)
}

// DeregisterReaderHandler removes a registered reader factory.
func DeregisterReaderHandler(name string) {
	delete(readerRegister, name)
}

// handleLocalInfileRequest services the 0xFB LOCAL INFILE sub-protocol
// (§4.5): stream the source in ≤16MiB packet payloads, send a
// zero-length terminator, then read and surface the final OK.
func (mc *Connection) handleLocalInfileRequest(req *localInFileRequest) (*Result, error) {
	rdr, err := mc.openLocalInfileSource(req.name)
	if err != nil {
		// The protocol still expects the terminator packet even when
		// the client refuses to open the source.
		_ = mc.writePacket(nil)
		mc.readPacket() //nolint:errcheck // best-effort drain of the server's resulting ERR
		return nil, err
	}
	if closer, ok := rdr.(io.Closer); ok {
		defer closer.Close()
	}

	buf := make([]byte, maxPacketSize)
	for {
		n, rerr := rdr.Read(buf)
		if n > 0 {
			mc.timeoutDeadline(mc.cfg.WriteTimeout)
			if werr := mc.writePacket(buf[:n]); werr != nil {
				return nil, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = mc.writePacket(nil)
			return nil, rerr
		}
	}

	if err := mc.writePacket(nil); err != nil {
		return nil, err
	}

	if err := mc.readResultOK(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (mc *Connection) openLocalInfileSource(name string) (io.Reader, error) {
	if !mc.cfg.LocalInfile {
		return nil, ErrUnsupportedOption
	}

	if strings.HasPrefix(name, "Reader::") {
		key := name[len("Reader::"):]
		cb, registered := readerRegister[key]
		if cb == nil {
			if !registered {
				return nil, &localInfileError{"reader " + key + " is not registered"}
			}
			return nil, &localInfileError{"reader " + key + " returned nil"}
		}
		return cb(), nil
	}

	if !fileRegister[name] {
		return nil, &localInfileError{"local file " + name + " is not registered; call RegisterLocalFile first"}
	}
	return os.Open(name)
}

type localInfileError struct{ msg string }

func (e *localInfileError) Error() string { return "mysql: " + e.msg }
