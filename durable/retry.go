package durable

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/mysql"
	"github.com/dialfleet/dispatch-core/retry"
)

// RetryRecorder satisfies retry.AttemptRecorder, persisting the
// retry-chain audit trail spec §4.4 requires ("a retry job records
// {originalCallId, contactId, attemptNumber, scheduledFor,
// failureKind, status} in the durable store").
type RetryRecorder struct {
	store *Store
}

// NewRetryRecorder builds a RetryRecorder over store.
func NewRetryRecorder(store *Store) *RetryRecorder {
	return &RetryRecorder{store: store}
}

func (r *RetryRecorder) RecordRetryAttempt(ctx context.Context, attempt retry.Attempt) error {
	_, err := mysql.InsertFrom(retryAttemptsTable).
		Values(&mysql.InsertCond{Arg: []any{
			nil, // id: auto-increment
			attempt.OriginalCallID,
			attempt.ContactID,
			attempt.AttemptNumber,
			attempt.ScheduledFor,
			string(attempt.FailureKind),
			attempt.Status,
		}}).
		Exec(ctx, r.store.db())
	if err != nil {
		return errors.Errorf("record retry attempt for contact %s: %w", attempt.ContactID, err)
	}
	return nil
}
