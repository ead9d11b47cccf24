package durable

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dialfleet/dispatch-core/retry"
)

func TestRetryRecorder_RecordRetryAttempt(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	when := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	expectedSQL := "INSERT INTO retry_attempts VALUES (?, ?, ?, ?, ?, ?, ?)"
	mock.ExpectExec(regexp.QuoteMeta(expectedSQL)).
		WithArgs(nil, "call-1", "c1", 1, when, "network_error", "scheduled").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := NewRetryRecorder(store)
	err := rec.RecordRetryAttempt(ctx, retry.Attempt{
		OriginalCallID: "call-1",
		ContactID:      "c1",
		AttemptNumber:  1,
		ScheduledFor:   when,
		FailureKind:    retry.NetworkError,
		Status:         "scheduled",
	})
	if err != nil {
		t.Fatalf("RecordRetryAttempt error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
