package mysql

import (
	"context"
	"errors"
	"fmt"
	"github.com/jmoiron/sqlx"
	"strings"
)

var ErrValuesRequired = errors.New("insert requires values")

type InsertBuilder struct {
	table  string
	values *InsertCond
}

// InsertFrom initializes an InsertBuilder for table.
func InsertFrom(table string) InsertBuilder {
	return InsertBuilder{table: table}
}

func (b InsertBuilder) Values(conds *InsertCond) InsertBuilder {
	b.values = conds
	return b
}

func (b InsertBuilder) Exec(ctx context.Context, db *sqlx.DB) (int64, error) {
	q, args, err := b.build()
	if err != nil {
		return 0, err
	}
	q = db.Rebind(q)

	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// build constructs the INSERT ... VALUES query, positionally matching
// Arg against the table's column order.
func (b InsertBuilder) build() (string, []any, error) {
	if b.values == nil {
		return "", nil, ErrValuesRequired
	}
	if !safeIdent(b.table) {
		return "", nil, fmt.Errorf("unsafe table: %s", b.table)
	}

	valStrs := make([]string, 0, len(b.values.Arg))
	for range b.values.Arg {
		valStrs = append(valStrs, "?")
	}

	sb := strings.Builder{}
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.table)
	sb.WriteString(" VALUES ")
	sb.WriteString("(" + strings.Join(valStrs, ", ") + ")")

	return sb.String(), b.values.Arg, nil
}
