package queryengine

import (
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// tDNF is a keyset boundary in disjunctive normal form:
//
//	(c1 > v1) OR (c1 = v1 AND c2 > v2) OR (c1 = v1 AND c2 = v2 AND c3 > v3)
//
// Every tDisjunct is one parenthesised AND group, every tConjunct one
// comparison against a qualified column.
type (
	tConjunct struct {
		Column   clause.Column
		Value    any
		Operator Operator
	}

	tDisjunct []tConjunct

	tDNF []tDisjunct
)

func (c tConjunct) toGORMExpression() clause.Expression {
	return c.Operator.expression(c.Column, c.Value)
}

// toGORMExpression renders the conjuncts joined by AND. An empty disjunct
// renders to nil.
func (d tDisjunct) toGORMExpression() clause.Expression {
	return joinExpressions(
		lo.Map(d, func(c tConjunct, _ int) clause.Expression { return c.toGORMExpression() }),
		clause.And,
	)
}

// toGORMExpression renders the disjuncts joined by OR, skipping empty ones.
func (d tDNF) toGORMExpression() clause.Expression {
	return joinExpressions(
		lo.FilterMap(d, func(disjunct tDisjunct, _ int) (clause.Expression, bool) {
			expr := disjunct.toGORMExpression()
			return expr, expr != nil
		}),
		clause.Or,
	)
}

func joinExpressions(exprs []clause.Expression, join func(...clause.Expression) clause.Expression) clause.Expression {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return join(exprs...)
	}
}
