package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"cellar_monitor/internal/models"
	"cellar_monitor/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

var eventCols = []string{"id", "occurred_at", "type", "sensor", "message", "meta"}

func newMockRepo(t *testing.T) (*EventSQLite, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewEventSQLite(conn), mock
}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(),
			"STATUS_CHANGE", "temperature", "Temperatura Alta",
			`{"from":"NORMAL","to":"HIGH"}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.AlertEvent{
		// EventID empty -> repo generates
		// OccurredAt zero -> repo sets UTC now
		Type:        "  status_change ",
		Sensor:      "temperature",
		Description: "Temperatura Alta",
		Metadata:    map[string]any{"from": "NORMAL", "to": "HIGH"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_KeepsGivenIDAndFormatsTimeUTC(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	at := time.Date(2025, 9, 1, 9, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("evt-1", "2025-09-01 12:30:00", "FETCH_FAILED", "", "broker down", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.AlertEvent{
		EventID:     "evt-1",
		OccurredAt:  at,
		Type:        "FETCH_FAILED",
		Description: "broker down",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO alert_events").
		WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), models.AlertEvent{Type: "fetch_failed", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	js, _ := json.Marshal(map[string]any{"a": "b"})
	rows := sqlmock.NewRows(eventCols).
		AddRow("1", "2025-01-01 10:00:00", "STATUS_CHANGE", "humidity", "m1", string(js)).
		AddRow("2", "2025-01-01T11:00:00Z", "FETCH_FAILED", "", "m2", nil).
		AddRow("3", "2025-01-01 12:00:00", "FETCH_FAILED", "", "m3", "{broken")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventsSQL + " ORDER BY occurred_at ASC, rowid ASC")).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	if want := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC); !got[0].OccurredAt.Equal(want) {
		t.Fatalf("occurred_at: got %v, want %v", got[0].OccurredAt, want)
	}
	if want := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC); !got[1].OccurredAt.Equal(want) {
		t.Fatalf("rfc3339 occurred_at: got %v, want %v", got[1].OccurredAt, want)
	}
	b1, _ := json.Marshal(got[0].Metadata)
	if string(b1) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", string(b1), string(js))
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "{broken" {
		t.Fatalf("malformed meta should be kept raw, got %#v", got[2].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := selectEventsSQL + ` WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC, rowid ASC`
	rows := sqlmock.NewRows(eventCols).
		AddRow("2", "2025-01-01 11:00:00", "FETCH_FAILED", "", "b", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", "FETCH_FAILED").
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), from, to, " fetch_failed ")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "2" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	// one column short forces a scan error
	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "sensor", "message"}).
		AddRow("x", "2025-01-01 10:00:00", "STATUS_CHANGE", "", "msg")

	mock.ExpectQuery("SELECT id, occurred_at").WillReturnRows(rows)

	if _, err := repo.List(ctx(t), time.Time{}, time.Time{}, ""); err == nil {
		t.Fatalf("expected scan error, got nil")
	}
}

func TestEventSQLite_RoundTripInMemory(t *testing.T) {
	conn, err := db.InitDB(db.MemoryPath)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	repo := NewRepository(conn).EventRepo

	base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	events := []models.AlertEvent{
		{OccurredAt: base, Type: "STATUS_CHANGE", Sensor: "temperature", Description: "Temperatura Alta",
			Metadata: map[string]any{"to": "HIGH"}},
		{OccurredAt: base.Add(time.Minute), Type: "FETCH_FAILED", Description: "timeout"},
		{OccurredAt: base.Add(2 * time.Minute), Type: "STATUS_CHANGE", Sensor: "humidity", Description: "Umidade OK"},
	}
	for _, e := range events {
		if err := repo.Append(ctx(t), e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := repo.List(ctx(t), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 events, got %d", len(all))
	}
	if !all[0].OccurredAt.Equal(base) || all[0].Sensor != "temperature" {
		t.Fatalf("first event: %+v", all[0])
	}

	changes, err := repo.List(ctx(t), base.Add(30*time.Second), time.Time{}, "status_change")
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(changes) != 1 || changes[0].Sensor != "humidity" {
		t.Fatalf("filtered events: %+v", changes)
	}
}

var _ EventRepo = (*EventSQLite)(nil)
