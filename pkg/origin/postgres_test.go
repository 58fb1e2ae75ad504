package origin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/blockcache/blockcache/pkg/types"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestPostgres_Aggregate(t *testing.T) {
	pg, mock := newMock(t)
	mock.ExpectQuery(aggregateQuery).
		WithArgs("X", 300.0).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3.0))

	got, err := pg.Aggregate(context.Background(), "X", 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got != 3.0 {
		t.Errorf("volume: got %v, want 3.0", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_Aggregate_NoRowsIsZero(t *testing.T) {
	pg, mock := newMock(t)
	mock.ExpectQuery(aggregateQuery).
		WithArgs("Y", 300.0).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0.0))

	got, err := pg.Aggregate(context.Background(), "Y", 5*time.Minute)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got != 0 {
		t.Errorf("volume: got %v, want 0", got)
	}
}

// The key must travel as a bind parameter, never inside the SQL text.
func TestPostgres_Aggregate_KeyIsParameterized(t *testing.T) {
	pg, mock := newMock(t)
	hostile := "x'; DROP TABLE transactions; --"
	mock.ExpectQuery(aggregateQuery).
		WithArgs(hostile, 60.0).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0.0))

	if _, err := pg.Aggregate(context.Background(), hostile, time.Minute); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_Aggregate_QueryError(t *testing.T) {
	pg, mock := newMock(t)
	mock.ExpectQuery(aggregateQuery).
		WithArgs("X", 300.0).
		WillReturnError(errors.New("connection refused"))

	_, err := pg.Aggregate(context.Background(), "X", 5*time.Minute)
	if !errors.Is(err, types.ErrStoreUnavailable) {
		t.Errorf("err: got %v, want ErrStoreUnavailable", err)
	}
}

func TestPostgres_Aggregate_RejectsNegative(t *testing.T) {
	pg, mock := newMock(t)
	mock.ExpectQuery(aggregateQuery).
		WithArgs("X", 300.0).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(-1.5))

	got, err := pg.Aggregate(context.Background(), "X", 5*time.Minute)
	if !errors.Is(err, types.ErrStoreUnavailable) {
		t.Errorf("err: got %v, want ErrStoreUnavailable", err)
	}
	if got != 0 {
		t.Errorf("volume on error: got %v, want 0", got)
	}
}

func TestPostgres_Insert(t *testing.T) {
	pg, mock := newMock(t)
	ev := types.Event{Signature: "a", Pool: "X", Amount: 3.0}
	mock.ExpectExec(insertQuery).
		WithArgs("a", "X", 3.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertQuery).
		WithArgs("a", "X", 3.0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := pg.Insert(context.Background(), ev)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !first {
		t.Error("first insert: got inserted=false, want true")
	}
	second, err := pg.Insert(context.Background(), ev)
	if err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}
	if second {
		t.Error("duplicate insert: got inserted=true, want false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_Insert_Error(t *testing.T) {
	pg, mock := newMock(t)
	mock.ExpectExec(insertQuery).
		WithArgs("a", "X", 1.0).
		WillReturnError(errors.New("broken pipe"))

	_, err := pg.Insert(context.Background(), types.Event{Signature: "a", Pool: "X", Amount: 1.0})
	if !errors.Is(err, types.ErrStoreUnavailable) {
		t.Errorf("err: got %v, want ErrStoreUnavailable", err)
	}
}

func TestPostgres_EnsureSchema(t *testing.T) {
	pg, mock := newMock(t)
	mock.ExpectExec(schemaQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(indexQuery).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := pg.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
