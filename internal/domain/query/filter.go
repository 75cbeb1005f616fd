package query

// Op is a comparison understood by every Builder.
type Op uint8

const (
	// OpContainsFold matches values containing the operand, ignoring case.
	OpContainsFold Op = iota + 1
	// OpGTE matches values greater than or equal to the operand.
	OpGTE
	// OpLTE matches values less than or equal to the operand.
	OpLTE
)

func (o Op) String() string {
	switch o {
	case OpContainsFold:
		return "contains_fold"
	case OpGTE:
		return "gte"
	case OpLTE:
		return "lte"
	default:
		return "unknown"
	}
}

// Cond is a single predicate on an abstract field. Builders translate Field
// into their own column names.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Builder accumulates conditions joined with AND.
type Builder interface {
	Where(c Cond)
}

// Predicate adds zero or more conditions to a Builder.
type Predicate func(b Builder)

// Apply runs every non-nil predicate against b.
func Apply(b Builder, preds ...Predicate) {
	for _, p := range preds {
		if p != nil {
			p(b)
		}
	}
}

// ContainsFold matches field values that contain s in any letter case. An
// empty s matches everything and adds no condition.
func ContainsFold(field, s string) Predicate {
	if s == "" {
		return nil
	}
	return func(b Builder) {
		b.Where(Cond{Field: field, Op: OpContainsFold, Value: s})
	}
}

// Range bounds field by the inclusive interval [lo, hi]. Either bound may be
// nil to leave that side open.
func Range[T any](field string, lo, hi *T) Predicate {
	if lo == nil && hi == nil {
		return nil
	}
	return func(b Builder) {
		if lo != nil {
			b.Where(Cond{Field: field, Op: OpGTE, Value: *lo})
		}
		if hi != nil {
			b.Where(Cond{Field: field, Op: OpLTE, Value: *hi})
		}
	}
}
