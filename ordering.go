package queryengine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "ASC"
	DirectionDESC Direction = "DESC"
)

func (o Direction) Valid() bool {
	return o == DirectionASC || o == DirectionDESC
}

func (o Direction) ForOperator() Operator {
	switch o {
	case DirectionASC:
		return OperatorGT
	case DirectionDESC:
		return OperatorLT
	default:
		panic(fmt.Errorf("cannot map direction '%s' to operator", o))
	}
}

func (o Direction) Reversed() Direction {
	return lo.Ternary(o == DirectionDESC, DirectionASC, DirectionDESC)
}

// MarshalText encodes the direction in lower case, as it appears in cursors.
func (o Direction) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(string(o))), nil
}

func (o *Direction) UnmarshalText(text []byte) error {
	d := Direction(strings.ToUpper(string(text)))
	if !d.Valid() {
		return fmt.Errorf("invalid direction '%s'", text)
	}

	*o = d

	return nil
}

type (
	Orderings []OrderBy

	// OrderBy is a resolved sort field.
	OrderBy struct {
		Field     string
		Column    clause.Column
		Type      ValueType
		Unique    bool
		Nullable  bool
		Direction Direction
	}
)

var _availableColumnNameSymbols = append([]rune("_."), lo.AlphanumericCharset...)

func (o OrderBy) validate() error {
	if !o.Direction.Valid() {
		return fmt.Errorf("invalid ordering direction '%s'", o.Direction)
	}

	// Column names end up in ORDER BY, keep them to a safe charset.
	if !lo.Every(_availableColumnNameSymbols, []rune(o.Column.Table+o.Column.Name)) {
		return fmt.Errorf("ordering column name contains forbidden symbols '%s'", o.Column.Name)
	}

	return nil
}

// String renders the ordering as "-field" or "field".
func (o OrderBy) String() string {
	return lo.Ternary(o.Direction == DirectionDESC, "-"+o.Field, o.Field)
}

// Strings renders orderings back into the request syntax.
func (o Orderings) Strings() []string {
	return lo.Map(o, func(ordering OrderBy, _ int) string { return ordering.String() })
}

// Apply applies the ordering to a gorm query.
func (o Orderings) Apply(db *gorm.DB) *gorm.DB {
	if len(o) == 0 {
		return db
	}

	columns := make([]clause.OrderByColumn, 0, len(o))
	for _, ordering := range o {
		columns = append(columns, clause.OrderByColumn{
			Column: ordering.Column,
			Desc:   ordering.Direction == DirectionDESC,
		})
	}

	return db.Clauses(clause.OrderBy{Columns: columns})
}

// Reversed returns a copy with every direction flipped.
func (o Orderings) Reversed() Orderings {
	return lo.Map(o, func(ordering OrderBy, _ int) OrderBy {
		ordering.Direction = ordering.Direction.Reversed()
		return ordering
	})
}

// With appends orderings without duplicates. A field that is already present
// is moved to the end with the new direction, as if calling:
//
//	OrderBy(o1).ThenBy(o2).ThenBy(o3)...
func (o Orderings) With(orderBy ...OrderBy) Orderings {
	ret := slices.Clone(o)

	for _, ordering := range orderBy {
		idx := slices.IndexFunc(ret, func(processed OrderBy) bool {
			return processed.Field == ordering.Field
		})

		if idx != -1 {
			ret = slices.Delete(ret, idx, idx+1)
		}

		ret = append(ret, ordering)
	}

	return ret
}

// EnsureUnique appends the schema's unique field when no ordering is unique.
// The appended field follows the direction of the first ordering.
func (o Orderings) EnsureUnique(schema *Schema) Orderings {
	if lo.SomeBy(o, func(ordering OrderBy) bool { return ordering.Unique }) {
		return o
	}

	f, ok := schema.UniqueField()
	if !ok {
		return o
	}

	direction := DirectionASC
	if len(o) > 0 {
		direction = o[0].Direction
	}

	return o.With(orderByField(schema, f, direction))
}

func (o Orderings) validate() error {
	if len(o) == 0 {
		return fmt.Errorf("empty ordering list")
	}

	for _, ordering := range o {
		if err := ordering.validate(); err != nil {
			return err
		}
	}

	return nil
}

// ParseSort builds Orderings from request sort strings. Accepted forms are
// "field", "+field", "-field" and "field asc|desc". Fields must be direct
// selectable fields of the schema, cursors carry their values in clear.
func ParseSort(rawOrderings []string, schema *Schema) (Orderings, error) {
	ret := make(Orderings, 0, len(rawOrderings))

	for _, raw := range rawOrderings {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name, direction, err := parseSortEntry(raw)
		if err != nil {
			return nil, err
		}

		f, ok := schema.Field(name)
		if !ok || !schema.IsSelectable(name) {
			sortable := lo.Filter(schema.FieldNames(), func(n string, _ int) bool { return schema.IsSelectable(n) })
			return nil, &InvalidFieldError{
				Invalid: []string{name},
				Valid:   sortable,
				Hint:    closestName(name, sortable),
			}
		}

		ret = ret.With(orderByField(schema, f, direction))
	}

	return ret, nil
}

func parseSortEntry(raw string) (string, Direction, error) {
	if parts := strings.Fields(raw); len(parts) == 2 {
		direction := Direction(strings.ToUpper(parts[1]))
		if !direction.Valid() {
			return "", "", fmt.Errorf("%w: invalid sort direction in '%s'", ErrInvalidPagination, raw)
		}

		return parts[0], direction, nil
	} else if len(parts) > 2 {
		return "", "", fmt.Errorf("%w: invalid ordering string format '%s'", ErrInvalidPagination, raw)
	}

	switch raw[0] {
	case '-':
		return raw[1:], DirectionDESC, nil
	case '+':
		return raw[1:], DirectionASC, nil
	default:
		return raw, DirectionASC, nil
	}
}

func orderByField(schema *Schema, f Field, direction Direction) OrderBy {
	return OrderBy{
		Field:     f.Name,
		Column:    schema.Column(f),
		Type:      f.Type,
		Unique:    f.Unique,
		Nullable:  f.Nullable,
		Direction: direction,
	}
}
