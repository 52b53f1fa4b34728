package queryengine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Apply adds the keyset condition for sort to the query. The cursor must
// have been validated against sort.
func (c *KeysetCursor) Apply(db *gorm.DB, sort Orderings) *gorm.DB {
	exp := c.toDNF(sort).toGORMExpression()
	if exp == nil {
		return db
	}

	return db.Clauses(exp)
}

// toDNF inflates the cursor into a full filter.
//
// IMPORTANT:
// The sort list MUST contain a unique column, otherwise rows sharing a value
// are skipped or repeated between pages.
//
// The cursor is a list of entries:
//
//	[(C1, D1, V1), (C2, D2, V2)... (Cn, Dn, Vn)]
//
// where Di is the direction recorded in the cursor. Inflating it gives:
//
//	(C1 op(D1) V1) or (C1 = V1 and C2 op(D2) V2) or ...
//
// with op(ASC) = ">" and op(DESC) = "<". A previous-page cursor records
// reversed directions, so the same expansion walks backwards.
func (c *KeysetCursor) toDNF(sort Orderings) tDNF {
	if c.IsEmpty() {
		return nil
	}

	conjuncts := make([]tConjunct, 0, len(c.Fields))
	for i, f := range c.Fields {
		conjuncts = append(conjuncts, tConjunct{
			Column:   sort[i].Column,
			Value:    f.Value,
			Operator: f.Direction.ForOperator(),
		})
	}

	dnf := make(tDNF, 0, len(conjuncts))
	for i := range conjuncts {
		previousWithEqualityCondition := lo.Map(conjuncts[:i], func(item tConjunct, _ int) tConjunct {
			item.Operator = operatorEq
			return item
		})

		disjunct := make(tDisjunct, 0, i+1)
		disjunct = append(disjunct, previousWithEqualityCondition...)
		disjunct = append(disjunct, conjuncts[i])

		dnf = append(dnf, disjunct)
	}

	return dnf
}

// navigation checks the cursor against the active sort and reports whether it
// points backwards. A forward cursor repeats the sort directions, a backward
// cursor reverses every one of them.
func (c *KeysetCursor) navigation(sort Orderings) (backward bool, err error) {
	if c.IsEmpty() {
		return false, nil
	}

	if len(c.Fields) != len(sort) {
		return false, &CursorError{Reason: "cursor column number mismatch"}
	}

	forward, reversed := 0, 0
	for i, f := range c.Fields {
		orderBy := sort[i]

		if f.Name != orderBy.Field {
			return false, &CursorError{Reason: fmt.Sprintf("unexpected cursor column '%s'", f.Name)}
		}

		switch f.Direction {
		case orderBy.Direction:
			forward++
		case orderBy.Direction.Reversed():
			reversed++
		}
	}

	switch {
	case forward == len(sort):
		return false, nil
	case reversed == len(sort):
		return true, nil
	default:
		return false, &CursorError{Reason: "cursor directions do not match the sort"}
	}
}

// Getters maps field names to value accessors. Keyset pagination reads the
// sort fields of the boundary rows through them.
//
//	queryengine.Getters[models.Product]{
//		"id":               func(p models.Product) any { return p.ID },
//		"created_datetime": func(p models.Product) any { return p.CreatedDatetime },
//	}
type Getters[T any] map[string]func(T) any

// ReflectGetters builds Getters for every column of the GORM model T.
func ReflectGetters[T any](db *gorm.DB) (Getters[T], error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("cannot parse model %T: %w", *new(T), err)
	}

	getters := make(Getters[T], len(stmt.Schema.DBNames))
	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" {
			continue
		}

		getters[field.DBName] = func(item T) any {
			value, _ := field.ValueOf(context.Background(), reflect.ValueOf(item))
			return value
		}
	}

	return getters, nil
}

// NextPageCursor builds the cursor continuing after row.
func NextPageCursor[T any](sort Orderings, row T, getters Getters[T]) (*KeysetCursor, error) {
	return cursorFromRow(sort, row, getters)
}

// PreviousPageCursor builds the cursor leading to the rows before row.
func PreviousPageCursor[T any](sort Orderings, row T, getters Getters[T]) (*KeysetCursor, error) {
	return cursorFromRow(sort.Reversed(), row, getters)
}

func cursorFromRow[T any](sort Orderings, row T, getters Getters[T]) (*KeysetCursor, error) {
	ret := &KeysetCursor{Fields: make([]CursorField, 0, len(sort))}

	for _, orderBy := range sort {
		getter, ok := getters[orderBy.Field]
		if !ok {
			return nil, fmt.Errorf("cannot find getter for field '%s' met in ordering", orderBy.Field)
		}

		value, valueType := encodeCursorValue(getter(row), orderBy.Type)
		ret.Fields = append(ret.Fields, CursorField{
			Direction: orderBy.Direction,
			Name:      orderBy.Field,
			Type:      valueType,
			Value:     value,
		})
	}

	return ret, nil
}
