package durable

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/campaign"
	"github.com/dialfleet/dispatch-core/mysql"
)

// CampaignRepository satisfies campaign.Repository, grounded on the
// mysql package's generics select/insert/update builders the same way
// its own tests drive a `users` table.
type CampaignRepository struct {
	store *Store
}

// NewCampaignRepository builds a CampaignRepository over store.
func NewCampaignRepository(store *Store) *CampaignRepository {
	return &CampaignRepository{store: store}
}

// UpsertCampaign inserts c, or updates every mutable column in place if
// a row with c.ID already exists (spec §6 "upsert-by-id").
func (r *CampaignRepository) UpsertCampaign(ctx context.Context, c campaign.Campaign) error {
	row := toCampaignRow(c)

	_, err := mysql.SelectFrom[campaignRow](campaignsTable).
		Where(mysql.Eq("id", c.ID)).
		Fetch(ctx, r.store.db())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = mysql.InsertFrom(campaignsTable).
			Values(&mysql.InsertCond{Arg: []any{
				row.ID, row.CampaignLimit, row.Status, row.PriorityMode,
				row.AgentRef, row.PhonePoolRef, row.ScheduledFor, row.ExcludeVoicemail,
			}}).
			Exec(ctx, r.store.db())
		if err != nil {
			return errors.Errorf("insert campaign: %w", err)
		}
		return nil
	case err != nil:
		return errors.Errorf("check existing campaign: %w", err)
	}

	_, err = mysql.UpdateFrom(campaignsTable).
		Set(
			mysql.UpdateCond{Set: "limit_count", Arg: row.CampaignLimit},
			mysql.UpdateCond{Set: "status", Arg: row.Status},
			mysql.UpdateCond{Set: "priority_mode", Arg: row.PriorityMode},
			mysql.UpdateCond{Set: "agent_ref", Arg: row.AgentRef},
			mysql.UpdateCond{Set: "phone_pool_ref", Arg: row.PhonePoolRef},
			mysql.UpdateCond{Set: "scheduled_for", Arg: row.ScheduledFor},
			mysql.UpdateCond{Set: "exclude_voicemail", Arg: row.ExcludeVoicemail},
		).
		Where(mysql.Eq("id", c.ID)).
		Exec(ctx, r.store.db())
	if err != nil {
		return errors.Errorf("update campaign: %w", err)
	}
	return nil
}

// FindCampaign looks up a campaign by id (spec §6 "find-by-id").
func (r *CampaignRepository) FindCampaign(ctx context.Context, campaignID string) (campaign.Campaign, error) {
	row, err := mysql.SelectFrom[campaignRow](campaignsTable).
		Where(mysql.Eq("id", campaignID)).
		Fetch(ctx, r.store.db())
	if err != nil {
		return campaign.Campaign{}, errors.Errorf("find campaign %s: %w", campaignID, err)
	}
	return fromCampaignRow(row), nil
}

// UpdateCampaignStatus is idempotent on state: setting the already-current
// status is a no-op success (spec §6 "update-status, idempotent on
// state + version").
func (r *CampaignRepository) UpdateCampaignStatus(ctx context.Context, campaignID string, next campaign.State) error {
	_, err := mysql.UpdateFrom(campaignsTable).
		Set(mysql.UpdateCond{Set: "status", Arg: string(next)}).
		Where(mysql.Eq("id", campaignID)).
		Exec(ctx, r.store.db())
	if err != nil {
		return errors.Errorf("update campaign status: %w", err)
	}
	return nil
}

// ListContactsByStatus returns every contact of campaignID whose
// status is one of statuses, decrypting phone numbers at the boundary.
func (r *CampaignRepository) ListContactsByStatus(ctx context.Context, campaignID string, statuses ...string) ([]campaign.ContactRecord, error) {
	rows, err := r.store.listContactRows(ctx, campaignID, statuses...)
	if err != nil {
		return nil, err
	}

	out := make([]campaign.ContactRecord, 0, len(rows))
	for _, row := range rows {
		phone, err := r.store.decryptPhone(row.PhoneNumber)
		if err != nil {
			return nil, err
		}
		out = append(out, campaign.ContactRecord{
			ID:          row.ID,
			CampaignID:  row.CampaignID,
			PhoneNumber: phone,
			Priority:    row.priority(),
			Status:      row.Status,
			RetryCount:  row.RetryCount,
		})
	}
	return out, nil
}

func toCampaignRow(c campaign.Campaign) campaignRow {
	row := campaignRow{
		ID:               c.ID,
		CampaignLimit:    c.Limit,
		Status:           string(c.Status),
		PriorityMode:     c.PriorityMode,
		AgentRef:         c.AgentRef,
		PhonePoolRef:     c.PhonePoolRef,
		ExcludeVoicemail: c.ExcludeVoicemail,
	}
	if c.ScheduledFor != nil {
		row.ScheduledFor = sql.NullTime{Time: *c.ScheduledFor, Valid: true}
	}
	return row
}

func fromCampaignRow(row campaignRow) campaign.Campaign {
	c := campaign.Campaign{
		ID:               row.ID,
		Limit:            row.CampaignLimit,
		Status:           campaign.State(row.Status),
		PriorityMode:     row.PriorityMode,
		AgentRef:         row.AgentRef,
		PhonePoolRef:     row.PhonePoolRef,
		ExcludeVoicemail: row.ExcludeVoicemail,
	}
	if row.ScheduledFor.Valid {
		t := row.ScheduledFor.Time
		c.ScheduledFor = &t
	}
	return c
}
