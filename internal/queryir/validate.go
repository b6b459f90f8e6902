package queryir

import (
	"fmt"
	"slices"
)

// Schema lists the columns of each queryable table.
type Schema map[string][]string

// Has reports whether table has column.
func (s Schema) Has(table, column string) bool {
	return slices.Contains(s[table], column)
}

// ValidationResult lists the problems of a query.
type ValidationResult struct {
	// Valid is true when the query only names known tables and columns,
	// selects something, is ordered and compares supported values.
	Valid bool

	// Problems lists every violation found. Empty when Valid.
	Problems []string
}

// Validate checks a query against a schema.
//
// Table and column names are compiled into the SQL text, so only names of
// the schema are accepted. Validate is a pure function with no side effects.
func Validate(query Query, schema Schema) ValidationResult {
	v := &validator{schema: schema, problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	schema   Schema
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
		if len(query.Columns) == 0 {
			v.addProblem("select from %s names no columns", query.From)
		}
		if len(query.OrderBy) == 0 {
			v.addProblem("select from %s has no order", query.From)
		}
	case Join:
		v.validateJoin(query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

// validateSelect checks the names and the filter of a select.
func (v *validator) validateSelect(sel Select) {
	if _, ok := v.schema[sel.From]; !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	for _, col := range sel.Columns {
		v.checkColumn(sel.From, col)
	}
	for _, col := range sel.OrderBy {
		v.checkColumn(sel.From, col)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter, sel.From, sel.From)
	}
}

func (v *validator) validateJoin(join Join) {
	v.validateSelect(join.Left)
	v.validateSelect(join.Right)

	if len(join.Left.Columns)+len(join.Right.Columns) == 0 {
		v.addProblem("join of %s and %s names no columns", join.Left.From, join.Right.From)
	}
	if len(join.Left.OrderBy)+len(join.Right.OrderBy) == 0 {
		v.addProblem("join of %s and %s has no order", join.Left.From, join.Right.From)
	}
	if join.On == nil {
		v.addProblem("join of %s and %s has no condition", join.Left.From, join.Right.From)
		return
	}
	v.validatePredicate(join.On, join.Left.From, join.Right.From)
}

// validatePredicate checks a predicate. Plain fields belong to left;
// FieldEquals.Other belongs to right.
func (v *validator) validatePredicate(p Predicate, left, right string) {
	switch pred := p.(type) {
	case Equals:
		v.checkColumn(left, pred.Field)
		switch pred.Value.(type) {
		case string, int, int64, bool:
		default:
			v.addProblem("field %q compared to unsupported value %T", pred.Field, pred.Value)
		}
	case FieldEquals:
		v.checkColumn(left, pred.Field)
		v.checkColumn(right, pred.Other)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, left, right)
		}
	case nil:
		v.addProblem("nil predicate")
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) checkColumn(table, column string) {
	if _, ok := v.schema[table]; !ok {
		return // reported once by validateSelect
	}
	if !v.schema.Has(table, column) {
		v.addProblem("unknown column %s.%s", table, column)
	}
}
