package mysql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAndCondTooFew = errors.New("and() requires at least 2 conditions")
	ErrOrCondTooFew  = errors.New("or() requires at least 2 conditions")
)

type InsertCond struct {
	Arg []any
}

type UpdateCond struct {
	Set string
	Arg any
}

type OrderbyCond struct {
	Column    string
	Direction DirectionEnum
}

func (c OrderbyCond) GetSQL() string {
	if c.Direction == DirectionDefined {
		c.Direction = DESC
	}
	return fmt.Sprintf("%s %s", c.Column, c.Direction.String())
}

type WhereCond struct {
	sql  string
	args []any
}

func (c WhereCond) GetSQL() string { return c.sql }
func (c WhereCond) GwtArgs() []any { return c.args }
func (c WhereCond) isEmpty() bool  { return strings.TrimSpace(c.sql) == "" }

// Eq builds a col = ? condition. Callers should prefer constant column
// names; col is not itself identifier-checked here.
func Eq(col string, v any) *WhereCond {
	return &WhereCond{sql: fmt.Sprintf("%s = ?", col), args: []any{v}}
}

func NotEq(col string, v any) *WhereCond {
	return &WhereCond{sql: fmt.Sprintf("%s <> ?", col), args: []any{v}}
}

// In builds a col IN (?, ?, ...) condition over vs. An empty vs yields
// a condition that never matches, so callers do not need a special case
// for "no values to filter by".
func In(col string, vs ...any) *WhereCond {
	if len(vs) == 0 {
		return &WhereCond{sql: "1 = 0"}
	}
	placeholders := make([]string, len(vs))
	for i := range vs {
		placeholders[i] = "?"
	}
	return &WhereCond{sql: fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), args: vs}
}

func And(conds ...*WhereCond) *WhereCond {
	var parts []string
	var args []any
	for _, c := range conds {
		if c.isEmpty() {
			continue
		}
		parts = append(parts, "("+c.sql+")")
		args = append(args, c.args...)
	}
	return &WhereCond{sql: strings.Join(parts, " AND "), args: args}
}

func Or(conds ...*WhereCond) *WhereCond {
	var parts []string
	var args []any
	for _, c := range conds {
		if c.isEmpty() {
			continue
		}
		parts = append(parts, "("+c.sql+")")
		args = append(args, c.args...)
	}

	return &WhereCond{sql: strings.Join(parts, " OR "), args: args}
}
