package tracking

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/taskhub/taskhub/database/types"
)

type stubResult int64

func (r stubResult) LastInsertId() (int64, error) { return 0, nil }
func (r stubResult) RowsAffected() (int64, error) { return int64(r), nil }

type stubStatement struct {
	queryErr error
	execErr  error
	closeErr error
	row      types.Row

	queryCalls int
	execCalls  int
	closed     bool
	lastArgs   []any
}

func (s *stubStatement) Query(_ context.Context, args ...any) (*sql.Rows, error) {
	s.queryCalls++
	s.lastArgs = args
	return nil, s.queryErr
}

func (s *stubStatement) QueryRow(_ context.Context, args ...any) types.Row {
	s.lastArgs = args
	if s.row != nil {
		return s.row
	}
	return &stubRow{}
}

func (s *stubStatement) Exec(_ context.Context, args ...any) (sql.Result, error) {
	s.execCalls++
	s.lastArgs = args
	if s.execErr != nil {
		return nil, s.execErr
	}
	return stubResult(2), nil
}

func (s *stubStatement) Close() error {
	s.closed = true
	return s.closeErr
}

func testSettings() Settings {
	return Settings{
		slowQueryThreshold: time.Second,
		maxQueryLength:     DefaultMaxQueryLength,
	}
}

func TestStatementQueryTracksOperation(t *testing.T) {
	stub := &stubStatement{}
	recLogger := newRecordingLogger()
	stmt := NewStatement(stub, recLogger, "postgresql", selectOne, testSettings())

	if _, err := stmt.Query(context.Background(), "arg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stub.queryCalls != 1 {
		t.Fatalf("expected query to reach the underlying statement")
	}
	events := recLogger.events()
	if len(events) != 1 {
		t.Fatalf("expected a single event, got %d", len(events))
	}
	if events[0].Fields["query"] != "STMT_QUERY: "+selectOne {
		t.Fatalf("unexpected logged operation: %v", events[0].Fields["query"])
	}
	if events[0].Level != levelDebug {
		t.Fatalf("expected debug level, got %s", events[0].Level)
	}
}

func TestStatementQueryOmitsEmptyQuery(t *testing.T) {
	stub := &stubStatement{}
	recLogger := newRecordingLogger()
	stmt := NewStatement(stub, recLogger, "postgresql", "", testSettings())

	if _, err := stmt.Query(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := recLogger.events()
	if len(events) != 1 {
		t.Fatalf("expected a single event, got %d", len(events))
	}
	if events[0].Fields["query"] != "STMT_QUERY" {
		t.Fatalf("expected bare operation name, got %v", events[0].Fields["query"])
	}
}

func TestStatementQueryRowDefersTracking(t *testing.T) {
	stub := &stubStatement{row: &stubRow{}}
	recLogger := newRecordingLogger()
	stmt := NewStatement(stub, recLogger, "postgresql", selectOne, testSettings())

	row := stmt.QueryRow(context.Background(), 42)
	if len(recLogger.events()) != 0 {
		t.Fatalf("expected tracking to wait for scan")
	}

	if err := row.Scan(); err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}

	events := recLogger.events()
	if len(events) != 1 {
		t.Fatalf("expected a single event after scan, got %d", len(events))
	}
	query, _ := events[0].Fields["query"].(string)
	if !strings.HasPrefix(query, "STMT_QUERY_ROW") {
		t.Fatalf("unexpected logged operation: %v", query)
	}
}

func TestStatementExecTracksErrors(t *testing.T) {
	failure := errors.New("exec failed")
	stub := &stubStatement{execErr: failure}
	recLogger := newRecordingLogger()
	stmt := NewStatement(stub, recLogger, "oracle", "UPDATE tasks SET done = 1", testSettings())

	if _, err := stmt.Exec(context.Background()); !errors.Is(err, failure) {
		t.Fatalf("expected exec error to propagate, got %v", err)
	}

	events := recLogger.events()
	if len(events) != 1 {
		t.Fatalf("expected a single event, got %d", len(events))
	}
	if events[0].Level != levelError {
		t.Fatalf("expected error level, got %s", events[0].Level)
	}
	if events[0].Err != failure {
		t.Fatalf("expected error recorded on event")
	}
}

func TestStatementCloseDelegates(t *testing.T) {
	stub := &stubStatement{closeErr: errors.New("close failed")}
	stmt := NewStatement(stub, newRecordingLogger(), "postgresql", "", testSettings())

	if err := stmt.Close(); err == nil {
		t.Fatalf("expected close error to propagate")
	}
	if !stub.closed {
		t.Fatalf("expected close to reach the underlying statement")
	}
}
