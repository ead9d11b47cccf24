package mysql

// WithoutWhere and WithWhere are phantom type markers that make
// UpdateBuilder/DeleteBuilder's type record whether Where has been
// called yet. Exec is declared for every instantiation, so an
// update/delete without a WHERE clause still compiles; it is stopped at
// run time, where building the statement returns ErrWhereRequired
// instead of running unconditionally.
type WithoutWhere struct{}
type WithWhere struct{}

// WhereState constrains UpdateBuilder/DeleteBuilder's type parameter to
// one of the two marker types above.
type WhereState interface {
	WithoutWhere | WithWhere
}
