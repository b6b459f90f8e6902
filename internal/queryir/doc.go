// Package queryir describes read queries over the run log.
//
// A query selects explicit columns from one table, or from two tables
// joined on column equality, filtered by conjunctions of equality
// predicates. Every query carries an order, so its rows come back in the
// same sequence on every execution.
//
// Query and Predicate are sealed interfaces: only types of this package
// implement them, so backends can switch over them exhaustively.
//
//	switch q := query.(type) {
//	case Select:
//	    // one table
//	case Join:
//	    // two tables, inner join
//	}
//
// Queries are checked against a Schema with Validate and compiled to SQL
// by package querysql. Values are always passed as parameters.
package queryir
