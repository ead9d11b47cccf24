package durable

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dialfleet/dispatch-core/campaign"
)

func TestCampaignRepository_FindCampaign(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	expectedSQL := "SELECT * FROM campaigns WHERE id = ?"
	rows := sqlmock.NewRows([]string{
		"id", "limit_count", "status", "priority_mode", "agent_ref",
		"phone_pool_ref", "scheduled_for", "exclude_voicemail",
	}).AddRow("camp-1", 5, "active", "fifo", "agent-1", "pool-1", nil, true)

	mock.ExpectQuery(regexp.QuoteMeta(expectedSQL)).
		WithArgs("camp-1").
		WillReturnRows(rows)

	repo := NewCampaignRepository(store)
	got, err := repo.FindCampaign(ctx, "camp-1")
	if err != nil {
		t.Fatalf("FindCampaign error: %v", err)
	}
	if got.ID != "camp-1" || got.Status != campaign.Active || got.Limit != 5 {
		t.Fatalf("got = %+v", got)
	}
	if got.ScheduledFor != nil {
		t.Fatalf("expected nil ScheduledFor, got %v", got.ScheduledFor)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestCampaignRepository_UpdateCampaignStatus(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	expectedSQL := "UPDATE campaigns SET status = ? WHERE id = ?"
	mock.ExpectExec(regexp.QuoteMeta(expectedSQL)).
		WithArgs("paused", "camp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCampaignRepository(store)
	if err := repo.UpdateCampaignStatus(ctx, "camp-1", campaign.Paused); err != nil {
		t.Fatalf("UpdateCampaignStatus error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestCampaignRepository_UpsertCampaign_Insert(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	selectSQL := "SELECT * FROM campaigns WHERE id = ?"
	mock.ExpectQuery(regexp.QuoteMeta(selectSQL)).
		WithArgs("camp-new").
		WillReturnError(sql.ErrNoRows)

	insertSQL := "INSERT INTO campaigns VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WithArgs("camp-new", 5, "draft", "fifo", "agent-1", "pool-1", nil, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewCampaignRepository(store)
	err := repo.UpsertCampaign(ctx, campaign.Campaign{
		ID:           "camp-new",
		Limit:        5,
		Status:       campaign.Draft,
		PriorityMode: "fifo",
		AgentRef:     "agent-1",
		PhonePoolRef: "pool-1",
	})
	if err != nil {
		t.Fatalf("UpsertCampaign error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
