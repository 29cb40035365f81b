package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRateLimitRepository_ConsumeQuota_Granted(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRateLimitRepository(db)

	now := time.Now()
	mock.ExpectExec("UPDATE rate_limits").
		WithArgs("org-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	granted, err := repo.ConsumeQuota(context.Background(), "org-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !granted {
		t.Error("expected quota to be granted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRateLimitRepository_ConsumeQuota_Denied(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRateLimitRepository(db)

	now := time.Now()
	// The guarded UPDATE matches no rows when the counter is at the
	// limit or a throttle is active.
	mock.ExpectExec("UPDATE rate_limits").
		WithArgs("org-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	granted, err := repo.ConsumeQuota(context.Background(), "org-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted {
		t.Error("expected quota to be denied")
	}
}

func TestRateLimitRepository_Get_NoRow(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRateLimitRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM rate_limits").
		WithArgs("org-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "org-missing")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRateLimitRepository_EnsureExists(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewRateLimitRepository(db)

	reset := time.Now().Add(24 * time.Hour)
	mock.ExpectExec("INSERT INTO rate_limits").
		WithArgs("org-1", 1000, reset).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.EnsureExists(context.Background(), "org-1", 1000, reset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
