package durable

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/dialfleet/dispatch-core/mysql"
	"github.com/dialfleet/dispatch-core/xcrypt"
)

// Store is the shared MySQL handle every facade in this package wraps.
// It is never exposed directly to consuming packages; each consumer
// only sees the narrow facade that satisfies its own interface
// (CampaignRepository, ContactStore, RetryRecorder, CallLogStore,
// CampaignLister).
type Store struct {
	client *mysql.MysqlClient
	phone  crypter.Crypter
}

// NewStore builds a Store against client. phone encrypts/decrypts the
// contacts.phone_number column at the boundary so PII never reaches
// MySQL in plaintext; pass nil to store phone numbers unencrypted
// (e.g. in tests against sqlmock).
func NewStore(client *mysql.MysqlClient, phone crypter.Crypter) *Store {
	return &Store{client: client, phone: phone}
}

// newTestStoreFromDB builds a Store directly over an already-open
// *sqlx.DB, bypassing NewMysqlClient's dial step. Used by this
// package's own sqlmock-backed tests, which never touch a real DSN.
func newTestStoreFromDB(db *sqlx.DB, phone crypter.Crypter) *Store {
	return &Store{client: mysql.WrapDB(db), phone: phone}
}

func (s *Store) db() *sqlx.DB { return s.client.DB() }

func (s *Store) encryptPhone(plain string) ([]byte, error) {
	if s.phone == nil {
		return []byte(plain), nil
	}
	return s.phone.EnCrypt([]byte(plain))
}

func (s *Store) decryptPhone(cipher []byte) (string, error) {
	if s.phone == nil {
		return string(cipher), nil
	}
	plain, err := s.phone.DeCrypt(cipher)
	if err != nil {
		return "", errors.Errorf("decrypt phone number: %w", err)
	}
	return string(plain), nil
}

// listContactRows is the shared SELECT behind both
// CampaignRepository.ListContactsByStatus and
// ContactStore.ListContactsByStatus; each facade maps the returned
// rows into its own interface's element type.
func (s *Store) listContactRows(ctx context.Context, campaignID string, statuses ...string) ([]contactRow, error) {
	rows, err := mysql.SelectFrom[contactRow](contactsTable).
		Where(mysql.And(
			mysql.Eq("campaign_id", campaignID),
			mysql.In("status", toAnySlice(statuses)...),
		)).
		FetchAll(ctx, s.db())
	if err != nil {
		return nil, errors.Errorf("list contacts by status: %w", err)
	}
	return rows, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, v := range ss {
		out[i] = v
	}
	return out
}
