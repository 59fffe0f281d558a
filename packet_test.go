package mysql

import (
	"bytes"
	"crypto/sha1"
	"io"
	"net"
	"testing"
	"time"
)

// mockConn is an in-memory net.Conn double: Read drains a pre-seeded
// byte slice, Write accumulates into a buffer the test can inspect.
type mockConn struct {
	toRead  []byte
	written bytes.Buffer
	closed  bool
}

func (m *mockConn) Read(b []byte) (int, error) {
	if len(m.toRead) == 0 {
		return 0, io.EOF
	}
	n := copy(b, m.toRead)
	m.toRead = m.toRead[n:]
	return n, nil
}

func (m *mockConn) Write(b []byte) (int, error)     { return m.written.Write(b) }
func (m *mockConn) Close() error                     { m.closed = true; return nil }
func (m *mockConn) LocalAddr() net.Addr              { return nil }
func (m *mockConn) RemoteAddr() net.Addr             { return nil }
func (m *mockConn) SetDeadline(time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

// rawPacket frames payload as a single wire packet under sequence seq,
// for payloads smaller than maxPacketSize.
func rawPacket(seq byte, payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	out[0] = byte(len(payload))
	out[1] = byte(len(payload) >> 8)
	out[2] = byte(len(payload) >> 16)
	out[3] = seq
	copy(out[4:], payload)
	return out
}

func newTestConn(seed []byte) (*Connection, *mockConn) {
	mock := &mockConn{toRead: seed}
	mc := &Connection{
		cfg:     &Config{User: "u", Passwd: "p"},
		netConn: mock,
		buf:     newBuffer(mock),
		charset: defaultCharset,
	}
	return mc, mock
}

func TestReadPacketSingle(t *testing.T) {
	payload := []byte("hello")
	mc, _ := newTestConn(rawPacket(0, payload))

	got, err := mc.readPacket()
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
	if mc.sequence != 1 {
		t.Fatalf("sequence = %d, want 1", mc.sequence)
	}
}

func TestReadPacketSequenceMismatch(t *testing.T) {
	// Server's first reply carries sequence 1 while we expect 0: a gap
	// forward in sequence id.
	mc, _ := newTestConn(rawPacket(1, []byte("x")))
	_, err := mc.readPacket()
	if err != ErrPktSyncMul {
		t.Fatalf("err = %v, want ErrPktSyncMul", err)
	}

	// A stale/regressed sequence id instead.
	mc2, _ := newTestConn(rawPacket(0, []byte("x")))
	mc2.sequence = 2
	_, err = mc2.readPacket()
	if err != ErrPktSync {
		t.Fatalf("err = %v, want ErrPktSync", err)
	}
}

func TestReadPacketContinuation(t *testing.T) {
	// A payload of exactly maxPacketSize bytes must be followed by a
	// continuation packet (here zero-length) carrying the remainder.
	first := make([]byte, maxPacketSize)
	for i := range first {
		first[i] = byte(i)
	}
	seed := append(rawPacket(0, first), rawPacket(1, nil)...)
	mc, _ := newTestConn(seed)

	got, err := mc.readPacket()
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if len(got) != len(first) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(first))
	}
	if !bytes.Equal(got, first) {
		t.Fatalf("payload mismatch after reassembly")
	}
	if mc.sequence != 2 {
		t.Fatalf("sequence = %d, want 2", mc.sequence)
	}
}

func TestWritePacketSingle(t *testing.T) {
	mc, mock := newTestConn(nil)
	if err := mc.writePacket([]byte("ping")); err != nil {
		t.Fatalf("writePacket: %v", err)
	}
	want := rawPacket(0, []byte("ping"))
	if !bytes.Equal(mock.written.Bytes(), want) {
		t.Fatalf("wrote %x, want %x", mock.written.Bytes(), want)
	}
	if mc.sequence != 1 {
		t.Fatalf("sequence = %d, want 1", mc.sequence)
	}
}

func TestHandleOkPacket(t *testing.T) {
	mc, _ := newTestConn(nil)
	// field_count=0, affected_rows=1 (LCB), insert_id=5 (LCB), status,
	// warnings, info "done".
	data := []byte{0x00, 0x01, 0x05}
	data = append(data, 0x02, 0x00) // statusAutocommit
	data = append(data, 0x00, 0x00) // warnings
	data = append(data, []byte("done")...)

	if err := mc.handleOkPacket(data); err != nil {
		t.Fatalf("handleOkPacket: %v", err)
	}
	if mc.affectedRows != 1 || mc.insertID != 5 {
		t.Fatalf("affectedRows=%d insertID=%d, want 1,5", mc.affectedRows, mc.insertID)
	}
	if mc.status != statusAutocommit {
		t.Fatalf("status = %v, want statusAutocommit", mc.status)
	}
	if mc.info != "done" {
		t.Fatalf("info = %q, want done", mc.info)
	}
	if mc.lastError != nil {
		t.Fatalf("lastError should be cleared by a fresh OK")
	}
}

func TestHandleErrorPacket(t *testing.T) {
	mc, _ := newTestConn(nil)
	data := []byte{0xff, 0x15, 0x04} // errno 1045 little-endian
	data = append(data, '#')
	data = append(data, []byte("42000")...)
	data = append(data, []byte("Access denied")...)

	err := mc.handleErrorPacket(data)
	me, ok := err.(*MySQLError)
	if !ok {
		t.Fatalf("got %T, want *MySQLError", err)
	}
	if me.Number != 1045 {
		t.Fatalf("Number = %d, want 1045", me.Number)
	}
	if me.Sqlstate() != "42000" {
		t.Fatalf("Sqlstate = %q, want 42000", me.Sqlstate())
	}
	if me.Message != "Access denied" {
		t.Fatalf("Message = %q", me.Message)
	}
	if mc.lastError != me {
		t.Fatalf("lastError not recorded on the connection")
	}
}

func TestEOFPacket(t *testing.T) {
	data := []byte{iEOF, 0x01, 0x00, 0x08, 0x00}
	if !isEOFPacket(data) {
		t.Fatalf("isEOFPacket = false, want true")
	}
	warnings, status, err := readEOFPacket(data)
	if err != nil {
		t.Fatalf("readEOFPacket: %v", err)
	}
	if warnings != 1 {
		t.Fatalf("warnings = %d, want 1", warnings)
	}
	if status != statusMoreResultsExists {
		t.Fatalf("status = %v, want statusMoreResultsExists", status)
	}
}

// TestHandshakeAndAuth exercises the fixture from the initial handshake
// scenario: server version "5.1.34", thread id 42, an 8+12 byte salt
// split across the two auth-plugin-data segments, status 0x0002,
// charset 33.
func TestHandshakeAndAuth(t *testing.T) {
	salt1 := []byte("12345678")
	salt2rest := []byte("9ABCDEFGHIJK") // salt2 without its null terminator

	payload := []byte{10} // protocol version
	payload = append(payload, []byte("5.1.34")...)
	payload = append(payload, 0x00)
	payload = append(payload, uint32ToBytes(42)...)
	payload = append(payload, salt1...)
	payload = append(payload, 0x00)       // filler
	payload = append(payload, 0xff, 0xf7) // capabilities lower
	payload = append(payload, 33)         // charset
	payload = append(payload, 0x02, 0x00) // status
	payload = append(payload, 0x00, 0x00) // capabilities upper
	payload = append(payload, 21)         // auth-plugin-data-len
	payload = append(payload, make([]byte, 10)...)
	payload = append(payload, salt2rest...)
	payload = append(payload, 0x00)

	mc, mock := newTestConn(rawPacket(0, payload))

	hs, err := mc.readHandshakePacket()
	if err != nil {
		t.Fatalf("readHandshakePacket: %v", err)
	}
	if hs.serverVersion != "5.1.34" {
		t.Fatalf("serverVersion = %q", hs.serverVersion)
	}
	if hs.threadID != 42 {
		t.Fatalf("threadID = %d, want 42", hs.threadID)
	}
	if hs.status != 0x0002 {
		t.Fatalf("status = %#x, want 0x0002", hs.status)
	}
	if hs.charset != 33 {
		t.Fatalf("charset = %d, want 33", hs.charset)
	}
	wantSalt := append(append([]byte{}, salt1...), salt2rest...)
	if !bytes.Equal(hs.salt, wantSalt) {
		t.Fatalf("salt = %q, want %q", hs.salt, wantSalt)
	}

	mc.charset = hs.charset
	if err := mc.writeAuthPacket(hs); err != nil {
		t.Fatalf("writeAuthPacket: %v", err)
	}

	stage1 := sha1.Sum([]byte("p"))
	stage2 := sha1.Sum(stage1[:])
	h := sha1.New()
	h.Write(wantSalt)
	h.Write(stage2[:])
	token := h.Sum(nil)
	for i := range token {
		token[i] ^= stage1[i]
	}

	written := mock.written.Bytes()
	// client_flags(4) max_packet_size(4) charset(1) filler(23) user "u\x00"
	scrambleLenOffset := 4 + 4 + 1 + 23 + len("u") + 1
	if int(written[4+scrambleLenOffset]) != len(token) {
		t.Fatalf("scramble length = %d, want %d", written[4+scrambleLenOffset], len(token))
	}
	gotScramble := written[4+scrambleLenOffset+1 : 4+scrambleLenOffset+1+len(token)]
	if !bytes.Equal(gotScramble, token) {
		t.Fatalf("scramble = %x, want %x", gotScramble, token)
	}
}

func TestReadColumnsAndFieldPacket(t *testing.T) {
	lcs := func(s string) []byte {
		b := []byte{byte(len(s))}
		return append(b, s...)
	}

	var field []byte
	field = append(field, lcs("def")...)          // catalog
	field = append(field, lcs("db")...)           // database
	field = append(field, lcs("t")...)            // table
	field = append(field, lcs("t")...)            // org_table
	field = append(field, lcs("id")...)           // name
	field = append(field, lcs("id")...)           // org_name
	field = append(field, 0x0c)                   // filler
	field = append(field, 33, 0x00)                // charset
	field = append(field, 0x0b, 0x00, 0x00, 0x00) // length
	field = append(field, byte(fieldTypeLong))    // type
	field = append(field, 0x00, 0x00)             // flags
	field = append(field, 0x00)                   // decimals
	field = append(field, 0x00, 0x00)              // filler

	seed := append(rawPacket(0, field), rawPacket(1, []byte{iEOF, 0x00, 0x00, 0x00, 0x00})...)
	mc, _ := newTestConn(seed)

	cols, err := mc.readColumns(1)
	if err != nil {
		t.Fatalf("readColumns: %v", err)
	}
	if len(cols) != 1 {
		t.Fatalf("len(cols) = %d, want 1", len(cols))
	}
	f := cols[0]
	if f.Name != "id" || f.Table != "t" || f.Database != "db" {
		t.Fatalf("field = %+v", f)
	}
	if f.Type != fieldTypeLong {
		t.Fatalf("Type = %v, want fieldTypeLong", f.Type)
	}
	if !f.IsNum() {
		t.Fatalf("IsNum() = false for a LONG column")
	}
}

func TestReadPrepareResultPacket(t *testing.T) {
	data := []byte{iOK}
	data = append(data, uint32ToBytes(7)...) // stmt id
	data = append(data, 0x01, 0x00)          // column count
	data = append(data, 0x02, 0x00)          // param count
	data = append(data, 0x00)                // filler
	data = append(data, 0x00, 0x00)          // warning count

	mc, _ := newTestConn(rawPacket(0, data))
	ok, err := mc.readPrepareResultPacket()
	if err != nil {
		t.Fatalf("readPrepareResultPacket: %v", err)
	}
	if ok.stmtID != 7 || ok.columnCount != 1 || ok.paramCount != 2 {
		t.Fatalf("ok = %+v", ok)
	}
}

func TestBuildExecutePacket(t *testing.T) {
	payload, err := buildExecutePacket(7, []Value{int64(2), int64(3)})
	if err != nil {
		t.Fatalf("buildExecutePacket: %v", err)
	}

	want := []byte{byte(comStmtExecute)}
	want = append(want, uint32ToBytes(7)...)
	want = append(want, 0) // cursor type
	want = append(want, uint32ToBytes(1)...)
	want = append(want, 0x00) // null bitmap, 2 params fit in one byte
	want = append(want, 0x01) // new-params-bound
	want = append(want, byte(fieldTypeLongLong), 0x00)
	want = append(want, byte(fieldTypeLongLong), 0x00)
	want = append(want, int64ToBytes(2)...)
	want = append(want, int64ToBytes(3)...)

	if !bytes.Equal(payload, want) {
		t.Fatalf("payload = %x, want %x", payload, want)
	}
}
