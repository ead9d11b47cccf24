package durable

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// newTestStore builds a Store against a sqlmock-backed *sqlx.DB, with
// phone encryption disabled so test SQL/args stay predictable (mirrors
// the mysql package's own newMockDB test helper).
func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()

	rawDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	db := sqlx.NewDb(rawDB, "mysql")

	store := newTestStoreFromDB(db, nil)

	cleanup := func() { _ = db.Close() }
	return store, mock, cleanup
}
