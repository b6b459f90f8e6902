package queryir

// Query represents an abstract read query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
// Predicate types:
//   - Equals: column = literal value
//   - FieldEquals: column = column
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads columns of one table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order_by>
//
// Example:
//
//	Select{
//	  From:    "resolutions",
//	  Columns: []string{"seq", "opcode", "processor"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "run_id", Value: "run-1"},
//	    Equals{Field: "opcode", Value: "Addition"},
//	  }},
//	  OrderBy: []string{"seq"},
//	}
//
// Inside a Join, Columns may be empty: the table then only filters and
// orders the joined rows.
type Select struct {
	From    string    // Table name
	Columns []string  // Selected columns, in result order
	Filter  Predicate // WHERE conditions (nil = no filter)
	OrderBy []string  // Ascending sort keys
}

func (Select) queryNode() {}

// Join is the inner join of two selects.
//
// Semantics:
//
//	SELECT <left columns>, <right columns>
//	FROM <left> INNER JOIN <right> ON <on>
//	WHERE <left filter> AND <right filter>
//	ORDER BY <left order>, <right order>
//
// In On, FieldEquals.Field names a left column and FieldEquals.Other a
// right one. Filters and order keys refer to their own select's table.
type Join struct {
	Left  Select
	Right Select
	On    Predicate // Join condition (required)
}

func (Join) queryNode() {}

// Equals compares a column with a literal.
//
// Value must be a string, int, int64 or bool. NULL is not representable:
// run log columns are never NULL.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// FieldEquals compares two columns.
type FieldEquals struct {
	Field string
	Other string
}

func (FieldEquals) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// AllOf returns the conjunction of the non-nil predicates: nil when none
// remain and the predicate itself when one does.
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// EqualsIfSet returns Equals{field, value}, or nil for an empty value.
// Used to turn optional string filters into predicates.
func EqualsIfSet(field, value string) Predicate {
	if value == "" {
		return nil
	}
	return Equals{Field: field, Value: value}
}
