package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"leadcourier/internal/models"
)

func TestAttemptRepository_Create_ProviderResponseSentAsText(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewAttemptRepository(db)

	nextRetry := time.Now().Add(time.Minute)
	errorCode := "131026"
	errorMessage := "Message undeliverable"

	// The jsonb parameter must arrive as text, not as a raw byte slice
	// the driver would encode as bytea.
	mock.ExpectQuery("INSERT INTO outbound_attempts").
		WithArgs("org-1", 42, 1, "failed", &errorCode, &errorMessage, `{"error":{"code":131026}}`, &nextRetry).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))

	attempt := &models.OutboundAttempt{
		OrgID:            "org-1",
		MessageID:        42,
		AttemptNo:        1,
		Outcome:          models.AttemptOutcomeFailed,
		ErrorCode:        &errorCode,
		ErrorMessage:     &errorMessage,
		ProviderResponse: json.RawMessage(`{"error":{"code":131026}}`),
		NextRetryAt:      &nextRetry,
	}
	if err := repo.Create(context.Background(), attempt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt.ID != 7 {
		t.Errorf("expected id 7, got %d", attempt.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAttemptRepository_Create_EmptyResponseIsNull(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewAttemptRepository(db)

	mock.ExpectQuery("INSERT INTO outbound_attempts").
		WithArgs("org-1", 42, 1, "success", nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(8, time.Now()))

	attempt := &models.OutboundAttempt{
		OrgID:     "org-1",
		MessageID: 42,
		AttemptNo: 1,
		Outcome:   models.AttemptOutcomeSuccess,
	}
	if err := repo.Create(context.Background(), attempt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAttemptRepository_ListByMessage_NullResponse(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	repo := NewAttemptRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM outbound_attempts").
		WithArgs("org-1", 42).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "message_id", "attempt_no", "outcome", "error_code", "error_message",
			"provider_response", "next_retry_at", "created_at",
		}).AddRow(7, "org-1", 42, 1, "success", nil, nil, nil, nil, now))

	attempts, err := repo.ListByMessage(context.Background(), "org-1", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].ProviderResponse != nil {
		t.Errorf("expected nil provider response, got %s", attempts[0].ProviderResponse)
	}
}
