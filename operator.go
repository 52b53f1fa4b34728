package queryengine

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// Operator is a keyset comparison operator applied to a sort column.
type Operator string

func (o Operator) Valid() bool {
	return o == OperatorLT || o == OperatorGT
}

func (o Operator) ForOrdering() Direction {
	switch o {
	case OperatorGT:
		return DirectionASC
	case OperatorLT:
		return DirectionDESC
	default:
		panic(fmt.Errorf("cannot map operator '%s' to ordering", o))
	}
}

func (o Operator) expression(column clause.Column, value any) clause.Expression {
	switch o {
	case OperatorGT:
		return clause.Gt{Column: column, Value: value}
	case OperatorLT:
		return clause.Lt{Column: column, Value: value}
	default:
		return clause.Eq{Column: column, Value: value}
	}
}

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"

	// operatorEq is only used for the equality prefix of keyset conditions.
	operatorEq Operator = "="
)

// FilterOperator is the trailing token of a filter key, e.g. "ilike" in
// "name__ilike".
type FilterOperator string

const (
	FilterEq        FilterOperator = "eq"
	FilterNe        FilterOperator = "ne"
	FilterLt        FilterOperator = "lt"
	FilterLe        FilterOperator = "le"
	FilterLte       FilterOperator = "lte"
	FilterGt        FilterOperator = "gt"
	FilterGe        FilterOperator = "ge"
	FilterGte       FilterOperator = "gte"
	FilterLike      FilterOperator = "like"
	FilterILike     FilterOperator = "ilike"
	FilterStartWith FilterOperator = "startswith"
	FilterEndWith   FilterOperator = "endswith"
	FilterContains  FilterOperator = "contains"
	FilterIn        FilterOperator = "in"
	FilterNotIn     FilterOperator = "not_in"
	FilterNotInAlt  FilterOperator = "notin"
	FilterIsNull    FilterOperator = "is_null"
	FilterIsNotNull FilterOperator = "is_not_null"
	FilterBetween   FilterOperator = "between"
	FilterSearch    FilterOperator = "search"
)

var _filterOperators = map[FilterOperator]struct{}{
	FilterEq: {}, FilterNe: {}, FilterLt: {}, FilterLe: {}, FilterLte: {}, FilterGt: {},
	FilterGe: {}, FilterGte: {}, FilterLike: {}, FilterILike: {}, FilterStartWith: {},
	FilterEndWith: {}, FilterContains: {}, FilterIn: {}, FilterNotIn: {}, FilterNotInAlt: {},
	FilterIsNull: {}, FilterIsNotNull: {}, FilterBetween: {}, FilterSearch: {},
}

func (o FilterOperator) Valid() bool {
	_, ok := _filterOperators[o]
	return ok
}

// LogicalOperator combines the fields of one filter key.
type LogicalOperator string

const (
	LogicalOr  LogicalOperator = "or"
	LogicalAnd LogicalOperator = "and"
	LogicalNot LogicalOperator = "not"
)

func (o LogicalOperator) Valid() bool {
	return o == LogicalOr || o == LogicalAnd || o == LogicalNot
}
