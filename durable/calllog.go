package durable

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/dispatcher"
	"github.com/dialfleet/dispatch-core/mysql"
)

// CallLogStore satisfies dispatcher.CallLogRecorder, persisting the
// terminal outcome of every dispatch attempt (spec §6 durable-store
// contract "update on terminal outcome").
type CallLogStore struct {
	store *Store
}

// NewCallLogStore builds a CallLogStore over store.
func NewCallLogStore(store *Store) *CallLogStore {
	return &CallLogStore{store: store}
}

func (c *CallLogStore) RecordCallLog(ctx context.Context, entry dispatcher.CallLogEntry) error {
	_, err := mysql.InsertFrom(callLogsTable).
		Values(&mysql.InsertCond{Arg: []any{
			nil, // id: auto-increment
			entry.CampaignID,
			entry.ContactID,
			entry.CallID,
			entry.CarrierID,
			string(entry.FinalStatus),
			string(entry.FailureKind),
			entry.StartedAt,
			entry.EndedAt,
		}}).
		Exec(ctx, c.store.db())
	if err != nil {
		return errors.Errorf("record call log for call %s: %w", entry.CallID, err)
	}
	return nil
}
