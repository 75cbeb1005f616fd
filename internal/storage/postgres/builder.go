package postgres

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/tienda/internal/domain/query"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereBuilder renders query conditions as a parameterized WHERE clause.
// Abstract field names are mapped to columns through a fixed table, so no
// caller-supplied text ever reaches the SQL itself.
type whereBuilder struct {
	columns map[string]string
	clauses []string
	args    []any
	err     error
}

func newWhereBuilder(columns map[string]string) *whereBuilder {
	return &whereBuilder{columns: columns}
}

func (b *whereBuilder) Where(c query.Cond) {
	if b.err != nil {
		return
	}
	col, ok := b.columns[c.Field]
	if !ok {
		b.err = errors.Errorf("unknown field %q", c.Field)
		return
	}

	value := c.Value
	if c.Op == query.OpContainsFold {
		s, ok := value.(string)
		if !ok {
			b.err = errors.Errorf("field %q: %T is not a string", c.Field, value)
			return
		}
		value = likeEscaper.Replace(s)
	}
	b.args = append(b.args, value)
	n := len(b.args)

	switch c.Op {
	case query.OpContainsFold:
		b.clauses = append(b.clauses, fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", col, n))
	case query.OpGTE:
		b.clauses = append(b.clauses, fmt.Sprintf("%s >= $%d", col, n))
	case query.OpLTE:
		b.clauses = append(b.clauses, fmt.Sprintf("%s <= $%d", col, n))
	default:
		b.err = errors.Errorf("unsupported operator %s", c.Op)
	}
}

// build returns the WHERE clause, with a leading space, and its arguments.
// The clause is empty when no conditions were added.
func (b *whereBuilder) build() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if len(b.clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(b.clauses, " AND "), b.args, nil
}

// where applies preds and builds the resulting clause.
func where(columns map[string]string, preds []query.Predicate) (string, []any, error) {
	b := newWhereBuilder(columns)
	query.Apply(b, preds...)
	return b.build()
}

// paged appends LIMIT and OFFSET placeholders for page after args.
func paged(sql string, args []any, page query.Page) (string, []any) {
	n := len(args)
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	return sql, append(args, page.Size, page.Offset())
}
