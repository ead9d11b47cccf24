package durable

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/campaign"
	"github.com/dialfleet/dispatch-core/mysql"
)

// CampaignLister satisfies both janitor.CampaignLister and
// invariant.CampaignLister, which share the identical
// ListActiveCampaignIDs(ctx) ([]string, error) signature and so can be
// served by a single facade (unlike ListContactsByStatus).
type CampaignLister struct {
	store *Store
}

// NewCampaignLister builds a CampaignLister over store.
func NewCampaignLister(store *Store) *CampaignLister {
	return &CampaignLister{store: store}
}

// ListActiveCampaignIDs returns every campaign currently in the
// `active` state, the set the background loops (janitor, compactor,
// reconciler, invariant monitor) each visit once per tick.
func (l *CampaignLister) ListActiveCampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := mysql.SelectFrom[campaignRow](campaignsTable).
		Columns("id").
		Where(mysql.Eq("status", string(campaign.Active))).
		FetchAll(ctx, l.store.db())
	if err != nil {
		return nil, errors.Errorf("list active campaigns: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
