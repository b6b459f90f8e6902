// Package querysql compiles run log queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/mlcg/internal/queryir"
)

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// Values are never interpolated: every literal becomes a ? placeholder.
// Names are interpolated as given, so queries should pass queryir.Validate
// first. Every query is ordered; a query without sort keys is rejected.
func Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil query")
	case queryir.Select:
		return compileSelect(query)
	case queryir.Join:
		return compileJoin(query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func compileSelect(q queryir.Select) (string, []any, error) {
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("select from %s: no columns", q.From)
	}
	if len(q.OrderBy) == 0 {
		return "", nil, fmt.Errorf("select from %s: no order", q.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	var params []any
	if q.Filter != nil {
		where, whereParams, err := compilePredicate(q.Filter, "", "")
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + where)
		params = whereParams
	}

	b.WriteString(" ORDER BY " + orderKeys("", q.OrderBy))
	return b.String(), params, nil
}

// compileJoin compiles an inner join. Every name is qualified with its
// table.
func compileJoin(j queryir.Join) (string, []any, error) {
	l, r := j.Left.From, j.Right.From
	columns := append(qualify(l, j.Left.Columns), qualify(r, j.Right.Columns)...)
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("join of %s and %s: no columns", l, r)
	}
	if len(j.Left.OrderBy)+len(j.Right.OrderBy) == 0 {
		return "", nil, fmt.Errorf("join of %s and %s: no order", l, r)
	}
	if j.On == nil {
		return "", nil, fmt.Errorf("join of %s and %s: no condition", l, r)
	}

	on, params, err := compilePredicate(j.On, l, r)
	if err != nil {
		return "", nil, fmt.Errorf("compile join ON: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s INNER JOIN %s ON %s", strings.Join(columns, ", "), l, r, on)

	var where []string
	for _, side := range []queryir.Select{j.Left, j.Right} {
		if side.Filter == nil {
			continue
		}
		sql, sideParams, err := compilePredicate(side.Filter, side.From, side.From)
		if err != nil {
			return "", nil, fmt.Errorf("compile %s filter: %w", side.From, err)
		}
		where = append(where, sql)
		params = append(params, sideParams...)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	var keys []string
	if len(j.Left.OrderBy) > 0 {
		keys = append(keys, orderKeys(l, j.Left.OrderBy))
	}
	if len(j.Right.OrderBy) > 0 {
		keys = append(keys, orderKeys(r, j.Right.OrderBy))
	}
	b.WriteString(" ORDER BY " + strings.Join(keys, ", "))

	return b.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment. Plain fields
// are qualified with left, FieldEquals.Other with right; empty qualifiers
// leave names bare.
func compilePredicate(p queryir.Predicate, left, right string) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil // Always true
	case queryir.Equals:
		param, err := toParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", pred.Field, err)
		}
		return name(left, pred.Field) + " = ?", []any{param}, nil
	case queryir.FieldEquals:
		return name(left, pred.Field) + " = " + name(right, pred.Other), nil, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil // vacuous truth
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := compilePredicate(sub, left, right)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func toParam(v any) (any, error) {
	switch val := v.(type) {
	case string, bool, int64:
		return val, nil
	case int:
		return int64(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

func name(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}

func qualify(table string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = name(table, c)
	}
	return out
}

func orderKeys(table string, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = name(table, k) + " ASC"
	}
	return strings.Join(parts, ", ")
}
