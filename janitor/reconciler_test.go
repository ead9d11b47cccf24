package janitor

import (
	"context"
	"testing"

	"github.com/dialfleet/dispatch-core/campaign"
	"github.com/dialfleet/dispatch-core/leasestore"
)

type fakeDurableContacts struct {
	calling map[string][]ContactRef
	marked  map[string]string
}

func (f *fakeDurableContacts) ListContactsByStatus(_ context.Context, campaignID string, statuses ...string) ([]ContactRef, error) {
	for _, s := range statuses {
		if s == campaign.ContactCalling {
			return f.calling[campaignID], nil
		}
	}
	return nil, nil
}

func (f *fakeDurableContacts) MarkTerminal(_ context.Context, campaignID, contactID, status string) error {
	if f.marked == nil {
		f.marked = make(map[string]string)
	}
	f.marked[contactID] = status
	return nil
}

type fakeStatusReader struct{ status map[string]string }

func (f fakeStatusReader) DurableStatus(_ context.Context, campaignID string) (string, error) {
	return f.status[campaignID], nil
}

func TestReconciler_RequeuesOrphanedCallingContacts(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	store := leasestore.NewRedisStore(client)
	store.SetState(ctx, "camp-1", "active")

	contacts := &fakeDurableContacts{calling: map[string][]ContactRef{
		"camp-1": {{ID: "contact-9", Status: campaign.ContactCalling, Priority: leasestore.High}},
	}}
	status := fakeStatusReader{status: map[string]string{"camp-1": "active"}}

	r := NewReconciler(client, store, fakeLister{ids: []string{"camp-1"}}, contacts, status, nil, nil)
	r.RunOnce(ctx)

	if contacts.marked["contact-9"] != campaign.ContactPending {
		t.Fatalf("expected contact-9 marked pending, got %q", contacts.marked["contact-9"])
	}
	snapshot, err := store.WaitlistSnapshot(ctx, "camp-1", leasestore.High)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0] != "contact-9" {
		t.Fatalf("expected contact-9 re-enqueued to high waitlist, got %v", snapshot)
	}
}

func TestReconciler_SyncsRedisStateFromDurable(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	store := leasestore.NewRedisStore(client)
	store.SetState(ctx, "camp-1", "active")

	contacts := &fakeDurableContacts{}
	status := fakeStatusReader{status: map[string]string{"camp-1": "paused"}}

	r := NewReconciler(client, store, fakeLister{ids: []string{"camp-1"}}, contacts, status, nil, nil)
	r.RunOnce(ctx)

	got, err := store.State(ctx, "camp-1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if got != "paused" {
		t.Fatalf("expected redis state resynced to paused, got %q", got)
	}
}
