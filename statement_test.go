package mysql

import (
	"bytes"
	"testing"
)

func prepareOKPayload(stmtID uint32, columnCount, paramCount uint16) []byte {
	data := []byte{iOK}
	data = append(data, uint32ToBytes(stmtID)...)
	data = append(data, byte(columnCount), byte(columnCount>>8))
	data = append(data, byte(paramCount), byte(paramCount>>8))
	data = append(data, 0x00)
	data = append(data, 0x00, 0x00)
	return data
}

func binaryRowPayload(nullBitmapLen int, values ...[]byte) []byte {
	row := []byte{0x00}
	row = append(row, make([]byte, nullBitmapLen)...)
	for _, v := range values {
		row = append(row, v...)
	}
	return row
}

// preparedStatement drives a full STMT_PREPARE exchange over a
// connected mockConn and returns the resulting Statement, matching the
// "select ? + ?" fixture: two LONG placeholders, one LONG result
// column.
func preparedStatement(t *testing.T, mc *Connection, mock *mockConn) *Statement {
	t.Helper()

	var seed []byte
	seed = append(seed, rawPacket(1, prepareOKPayload(1, 1, 2))...)
	seed = append(seed, rawPacket(2, fieldPayload("p1", fieldTypeLong))...)
	seed = append(seed, rawPacket(3, fieldPayload("p2", fieldTypeLong))...)
	seed = append(seed, rawPacket(4, eofPayload(0))...)
	seed = append(seed, rawPacket(5, fieldPayload("sum", fieldTypeLong))...)
	seed = append(seed, rawPacket(6, eofPayload(0))...)
	mock.toRead = append(mock.toRead, seed...)

	stmt, err := mc.Prepare("select ? + ?")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return stmt
}

func TestPrepareExecuteClose(t *testing.T) {
	mc, mock := connectWith(t, 2, statusAutocommit)
	stmt := preparedStatement(t, mc, mock)

	if stmt.ParamCount() != 2 {
		t.Fatalf("ParamCount = %d, want 2", stmt.ParamCount())
	}
	if len(stmt.Fields()) != 1 || stmt.Fields()[0].Name != "sum" {
		t.Fatalf("Fields = %+v", stmt.Fields())
	}

	var execSeed []byte
	execSeed = append(execSeed, rawPacket(1, []byte{0x01})...)
	execSeed = append(execSeed, rawPacket(2, fieldPayload("sum", fieldTypeLong))...)
	execSeed = append(execSeed, rawPacket(3, eofPayload(0))...)
	execSeed = append(execSeed, rawPacket(4, binaryRowPayload(1, uint32ToBytes(5)))...)
	execSeed = append(execSeed, rawPacket(5, eofPayload(0))...)
	mock.toRead = append(mock.toRead, execSeed...)

	mock.written.Reset()
	result, err := stmt.Execute(int64(2), int64(3))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantExec, err := buildExecutePacket(1, []Value{int64(2), int64(3)})
	if err != nil {
		t.Fatalf("buildExecutePacket: %v", err)
	}
	if !bytes.Contains(mock.written.Bytes(), wantExec) {
		t.Fatalf("written bytes %x do not contain expected execute packet %x", mock.written.Bytes(), wantExec)
	}

	row := result.FetchRow()
	if row[0].(int64) != 5 {
		t.Fatalf("row[0] = %v, want 5", row[0])
	}

	mock.written.Reset()
	if err := stmt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wantClose := append([]byte{byte(comStmtClose)}, uint32ToBytes(1)...)
	if !bytes.Contains(mock.written.Bytes(), wantClose) {
		t.Fatalf("STMT_CLOSE not found in %x", mock.written.Bytes())
	}

	// Close is idempotent and Execute must reject a closed statement.
	if err := stmt.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := stmt.Execute(int64(1), int64(2)); err != ErrStatementClosed {
		t.Fatalf("Execute on closed statement: %v, want ErrStatementClosed", err)
	}
}

func TestExecuteArityMismatch(t *testing.T) {
	mc, mock := connectWith(t, 2, statusAutocommit)
	stmt := preparedStatement(t, mc, mock)

	if _, err := stmt.Execute(int64(1)); err != ErrArityMismatch {
		t.Fatalf("err = %v, want ErrArityMismatch", err)
	}
}

// TestFinalizeSchedulesDeferredClose covers the finalizer path: a
// statement dropped without Close must not take the exchange lock
// itself but hand off to the connection's deferred-close queue.
func TestFinalizeSchedulesDeferredClose(t *testing.T) {
	mc, mock := connectWith(t, 2, statusAutocommit)
	stmt := preparedStatement(t, mc, mock)

	stmt.finalize()
	if !stmt.closed {
		t.Fatalf("finalize should mark the statement closed")
	}
	if len(mc.closeQueue) != 1 || mc.closeQueue[0] != stmt.id {
		t.Fatalf("closeQueue = %v, want [%d]", mc.closeQueue, stmt.id)
	}

	// finalize must be idempotent: a second call (e.g. a stray re-run)
	// must not enqueue a duplicate close.
	stmt.finalize()
	if len(mc.closeQueue) != 1 {
		t.Fatalf("closeQueue = %v, want a single entry", mc.closeQueue)
	}

	if err := mc.withExchange(func() error { return nil }); err != nil {
		t.Fatalf("withExchange: %v", err)
	}
	wantClose := append([]byte{byte(comStmtClose)}, uint32ToBytes(stmt.id)...)
	if !bytes.Contains(mock.written.Bytes(), wantClose) {
		t.Fatalf("deferred STMT_CLOSE not drained into %x", mock.written.Bytes())
	}
}
