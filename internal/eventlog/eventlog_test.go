package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var _ Recorder = (*Store)(nil)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlite"), func() time.Time { return t0 }), mock
}

func TestRecordFillsDefaults(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO events (id, occurred_at, kind, message) VALUES (?, ?, ?, ?)`)).
		WithArgs(sqlmock.AnyArg(), "2026-03-01T09:00:00.000000Z", "ALERT", "CO2 high").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Record(context.Background(), Event{Kind: " alert ", Message: "CO2 high"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestRecordDBError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("disk I/O error"))

	err := s.Record(context.Background(), Event{ID: "x", Kind: KindFan, Message: "fan 0 HIGH"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestListParsesRows(t *testing.T) {
	s, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "kind", "message"}).
		AddRow("b", "2026-03-01T09:00:05.000000Z", "LIFECYCLE", "RUNNING -> ERROR").
		AddRow("a", "2026-03-01T09:00:00.000000Z", "ALERT", "CO2 high")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, occurred_at, kind, message FROM events ORDER BY occurred_at DESC LIMIT ?`)).
		WithArgs(10).
		WillReturnRows(rows)

	got, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Kind != KindLifecycle || !got[0].OccurredAt.Equal(t0.Add(5*time.Second)) {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestListDefaultLimit(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT id").WithArgs(DefaultListLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "kind", "message"}))

	got, err := s.List(context.Background(), 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("List = %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestListBadTimestamp(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "kind", "message"}).
			AddRow("a", "yesterday", "ALERT", "x"))

	if _, err := s.List(context.Background(), 5); err == nil {
		t.Error("expected timestamp parse error")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for i, msg := range []string{"first", "second", "third"} {
		e := Event{Kind: KindMode, Message: msg, OccurredAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Message != "third" || got[1].Message != "second" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[0].ID == "" {
		t.Error("ID should be generated")
	}

	n, err := s.Prune(ctx, t0.Add(90*time.Second))
	if err != nil || n != 2 {
		t.Errorf("Prune = %d, %v; want 2", n, err)
	}
}
