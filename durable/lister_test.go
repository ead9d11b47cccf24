package durable

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCampaignLister_ListActiveCampaignIDs(t *testing.T) {
	ctx := context.Background()
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	expectedSQL := "SELECT id FROM campaigns WHERE status = ?"
	rows := sqlmock.NewRows([]string{"id"}).AddRow("camp-1").AddRow("camp-2")

	mock.ExpectQuery(regexp.QuoteMeta(expectedSQL)).
		WithArgs("active").
		WillReturnRows(rows)

	lister := NewCampaignLister(store)
	ids, err := lister.ListActiveCampaignIDs(ctx)
	if err != nil {
		t.Fatalf("ListActiveCampaignIDs error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "camp-1" || ids[1] != "camp-2" {
		t.Fatalf("ids = %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
