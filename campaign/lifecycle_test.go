package campaign

import (
	"context"
	"testing"

	"github.com/dialfleet/dispatch-core/leasestore"
)

type fakeRepo struct {
	campaigns map[string]Campaign
	contacts  map[string][]ContactRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{campaigns: make(map[string]Campaign), contacts: make(map[string][]ContactRecord)}
}

func (f *fakeRepo) UpsertCampaign(_ context.Context, c Campaign) error {
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeRepo) FindCampaign(_ context.Context, campaignID string) (Campaign, error) {
	return f.campaigns[campaignID], nil
}

func (f *fakeRepo) UpdateCampaignStatus(_ context.Context, campaignID string, next State) error {
	c := f.campaigns[campaignID]
	c.Status = next
	f.campaigns[campaignID] = c
	return nil
}

func (f *fakeRepo) ListContactsByStatus(_ context.Context, campaignID string, statuses ...string) ([]ContactRecord, error) {
	wanted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []ContactRecord
	for _, c := range f.contacts[campaignID] {
		if wanted[c.Status] {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestMachine_StartLoadsPendingContacts(t *testing.T) {
	repo := newFakeRepo()
	store := leasestore.NewMemoryStore()
	m := NewMachine(repo, store, nil)
	ctx := context.Background()

	c := Campaign{ID: "camp-1", Limit: 5}
	if err := m.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.contacts["camp-1"] = []ContactRecord{
		{ID: "contact-1", CampaignID: "camp-1", Priority: leasestore.High, Status: ContactPending},
		{ID: "contact-2", CampaignID: "camp-1", Priority: leasestore.Normal, Status: ContactPending},
	}

	if err := m.Start(ctx, "camp-1", 0, 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	progress, err := store.Progress(ctx, "camp-1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.QueuedHigh != 1 || progress.QueuedNormal != 1 {
		t.Fatalf("expected one high and one normal queued, got %+v", progress)
	}
	if got := repo.campaigns["camp-1"].Status; got != Active {
		t.Fatalf("expected durable status active, got %s", got)
	}
	if state, _ := store.State(ctx, "camp-1"); state != string(Active) {
		t.Fatalf("expected redis state active, got %s", state)
	}
}

func TestMachine_StartFromActiveRejected(t *testing.T) {
	repo := newFakeRepo()
	store := leasestore.NewMemoryStore()
	m := NewMachine(repo, store, nil)
	ctx := context.Background()

	repo.campaigns["camp-1"] = Campaign{ID: "camp-1", Status: Active}
	store.SetState(ctx, "camp-1", string(Active))

	if err := m.Start(ctx, "camp-1", 0, 0); err == nil {
		t.Fatalf("expected invalid transition error")
	}
}

func TestMachine_PauseResume(t *testing.T) {
	repo := newFakeRepo()
	store := leasestore.NewMemoryStore()
	m := NewMachine(repo, store, nil)
	ctx := context.Background()

	repo.campaigns["camp-1"] = Campaign{ID: "camp-1", Status: Active}
	store.SetState(ctx, "camp-1", string(Active))

	if err := m.Pause(ctx, "camp-1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, _ := store.Paused(ctx, "camp-1")
	if !paused {
		t.Fatalf("expected paused flag set")
	}
	if got := repo.campaigns["camp-1"].Status; got != Paused {
		t.Fatalf("expected durable status paused, got %s", got)
	}

	if err := m.Resume(ctx, "camp-1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	paused, _ = store.Paused(ctx, "camp-1")
	if paused {
		t.Fatalf("expected paused flag cleared")
	}
}

func TestMachine_CancelFromTerminalRejected(t *testing.T) {
	repo := newFakeRepo()
	store := leasestore.NewMemoryStore()
	m := NewMachine(repo, store, nil)
	ctx := context.Background()

	repo.campaigns["camp-1"] = Campaign{ID: "camp-1", Status: Completed}
	store.SetState(ctx, "camp-1", string(Completed))

	if err := m.Cancel(ctx, "camp-1"); err == nil {
		t.Fatalf("expected invalid transition error")
	}
}

func TestMachine_CheckCompletion(t *testing.T) {
	repo := newFakeRepo()
	store := leasestore.NewMemoryStore()
	m := NewMachine(repo, store, nil)
	ctx := context.Background()

	repo.campaigns["camp-1"] = Campaign{ID: "camp-1", Status: Active}
	store.SetState(ctx, "camp-1", string(Active))
	store.SetLimit(ctx, "camp-1", 10)

	done, err := m.CheckCompletion(ctx, "camp-1")
	if err != nil {
		t.Fatalf("check completion: %v", err)
	}
	if !done {
		t.Fatalf("expected campaign to complete when no outstanding contacts or queued work remain")
	}
	if got := repo.campaigns["camp-1"].Status; got != Completed {
		t.Fatalf("expected durable status completed, got %s", got)
	}

	repo.campaigns["camp-2"] = Campaign{ID: "camp-2", Status: Active}
	store.SetState(ctx, "camp-2", string(Active))
	repo.contacts["camp-2"] = []ContactRecord{{ID: "c1", CampaignID: "camp-2", Status: ContactPending}}
	done, err = m.CheckCompletion(ctx, "camp-2")
	if err != nil {
		t.Fatalf("check completion 2: %v", err)
	}
	if done {
		t.Fatalf("expected campaign with pending contacts to remain active")
	}
}
