package queryengine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

// FilterKey is a parsed filter key.
//
//	"status"                          -> Fields [status], Operator eq
//	"price__gte"                      -> Fields [price], Operator gte
//	"supplier.email__ilike"           -> Fields [supplier.email], Operator ilike
//	"name__or__description__ilike"    -> Fields [name description], Logical [or], Operator ilike
//	"status__not__in"                 -> Fields [status], Logical [not], Operator in
type FilterKey struct {
	Fields   []string
	Logical  []LogicalOperator
	Operator FilterOperator
}

func (k FilterKey) has(op LogicalOperator) bool {
	return slices.Contains(k.Logical, op)
}

// ParseFilterKey splits a filter key on "__". Logical tokens close the current
// field path, the first operator token ends the key and every other token is
// appended to the current field path with ".".
func ParseFilterKey(key string) (FilterKey, error) {
	if strings.TrimSpace(key) == "" {
		return FilterKey{}, &InvalidFilterError{Key: key, Reason: "empty filter key"}
	}

	if !strings.Contains(key, "__") {
		return FilterKey{Fields: []string{key}, Operator: FilterEq}, nil
	}

	var (
		ret     FilterKey
		current []string
	)

	flush := func() {
		if len(current) > 0 {
			ret.Fields = append(ret.Fields, strings.Join(current, "."))
			current = nil
		}
	}

	tokens := strings.Split(key, "__")
	for i, token := range tokens {
		switch {
		case token == "":
			return FilterKey{}, &InvalidFilterError{Key: key, Reason: "empty token"}
		case LogicalOperator(token).Valid():
			flush()
			ret.Logical = append(ret.Logical, LogicalOperator(token))
		case FilterOperator(token).Valid():
			if i != len(tokens)-1 {
				return FilterKey{}, &InvalidFilterError{Key: key, Reason: fmt.Sprintf("unexpected tokens after operator '%s'", token)}
			}
			flush()
			ret.Operator = FilterOperator(token)
		default:
			current = append(current, token)
		}
	}

	if ret.Operator == "" {
		return FilterKey{}, &InvalidFilterError{Key: key, Reason: fmt.Sprintf("unknown operator '%s'", tokens[len(tokens)-1])}
	}

	if len(ret.Fields) == 0 {
		return FilterKey{}, &InvalidFilterError{Key: key, Reason: "no field"}
	}

	return ret, nil
}

// FilterBuilder turns Filters into gorm conditions for one schema.
//
// In lenient mode (the default) a key that cannot be turned into a condition
// is dropped with a warning. In strict mode the first such key fails the
// build.
type FilterBuilder struct {
	Schema *Schema
	// Dialect is the gorm dialector name. It selects the ilike rendering and
	// the default search strategy.
	Dialect string
	Search  SearchStrategy
	Strict  bool
	Logger  *zap.Logger
}

// Build returns one condition per usable filter key, in key order. The
// conditions are meant to be joined by AND.
func (b FilterBuilder) Build(filters Filters) ([]clause.Expression, error) {
	keys := lo.Keys(filters)
	slices.Sort(keys)

	conditions := make([]clause.Expression, 0, len(keys))
	for _, key := range keys {
		condition, err := b.buildKey(key, filters[key])
		if err != nil {
			if b.Strict {
				return nil, err
			}

			b.logger().Warn("filter condition dropped",
				zap.String("table", b.Schema.Table),
				zap.String("key", key),
				zap.Error(err))

			continue
		}

		conditions = append(conditions, condition)
	}

	return conditions, nil
}

// RequiredJoins returns the sorted relation names referenced by the filter
// keys. Keys that do not parse or reference unknown relations are skipped.
func (b FilterBuilder) RequiredJoins(filters Filters) []string {
	joins := make([]string, 0)

	for key := range filters {
		fk, err := ParseFilterKey(key)
		if err != nil {
			continue
		}

		for _, path := range fk.Fields {
			ref, ok := b.Schema.resolvePath(path, true)
			if ok && ref.Relation != "" {
				joins = append(joins, ref.Relation)
			}
		}
	}

	joins = lo.Uniq(joins)
	slices.Sort(joins)

	return joins
}

func (b FilterBuilder) buildKey(key string, value any) (clause.Expression, error) {
	fk, err := ParseFilterKey(key)
	if err != nil {
		return nil, err
	}

	conditions := make([]clause.Expression, 0, len(fk.Fields))
	for _, path := range fk.Fields {
		ref, ok := b.Schema.resolvePath(path, true)
		if !ok {
			valid := b.Schema.SelectableFields()
			return nil, &InvalidFieldError{
				Invalid: []string{path},
				Valid:   valid,
				Hint:    closestName(path, valid),
			}
		}

		condition, err := b.condition(key, ref, fk.Operator, value)
		if err != nil {
			return nil, err
		}

		conditions = append(conditions, condition)
	}

	or := fk.has(LogicalOr)
	if fk.has(LogicalNot) {
		return negate(conditions, or), nil
	}

	return combine(conditions, or), nil
}

func combine(conditions []clause.Expression, or bool) clause.Expression {
	if len(conditions) == 1 {
		return conditions[0]
	}

	return lo.Ternary(or, clause.Or(conditions...), clause.And(conditions...))
}

// negate pushes NOT down to every condition:
// NOT (a OR b) = NOT a AND NOT b, NOT (a AND b) = NOT a OR NOT b.
func negate(conditions []clause.Expression, or bool) clause.Expression {
	negated := lo.Map(conditions, func(c clause.Expression, _ int) clause.Expression {
		return clause.Not(c)
	})

	return combine(negated, !or)
}

func (b FilterBuilder) condition(key string, ref fieldRef, op FilterOperator, value any) (clause.Expression, error) {
	column := ref.Column

	invalid := func(format string, args ...any) error {
		return &InvalidFilterError{Key: key, Reason: fmt.Sprintf(format, args...)}
	}

	scalar := func() (any, error) {
		v, err := coerceValue(ref.Field, value)
		if err != nil {
			return nil, invalid("%v", err)
		}
		return v, nil
	}

	pattern := func(format string) (string, error) {
		s, err := stringValue(value)
		if err != nil {
			return "", invalid("%v", err)
		}
		return fmt.Sprintf(format, s), nil
	}

	switch op {
	case FilterEq, FilterNe, FilterLt, FilterLe, FilterLte, FilterGt, FilterGe, FilterGte:
		v, err := scalar()
		if err != nil {
			return nil, err
		}
		return comparison(op, column, v), nil
	case FilterLike, FilterContains:
		p, err := pattern("%%%s%%")
		if err != nil {
			return nil, err
		}
		return clause.Like{Column: column, Value: p}, nil
	case FilterStartWith:
		p, err := pattern("%s%%")
		if err != nil {
			return nil, err
		}
		return clause.Like{Column: column, Value: p}, nil
	case FilterEndWith:
		p, err := pattern("%%%s")
		if err != nil {
			return nil, err
		}
		return clause.Like{Column: column, Value: p}, nil
	case FilterILike:
		p, err := pattern("%%%s%%")
		if err != nil {
			return nil, err
		}
		return b.ilike(column, p), nil
	case FilterIn, FilterNotIn, FilterNotInAlt:
		values, err := coerceList(ref.Field, value)
		if err != nil {
			return nil, invalid("%v", err)
		}
		in := clause.IN{Column: column, Values: values}
		if op == FilterIn {
			return in, nil
		}
		return clause.Not(in), nil
	case FilterIsNull, FilterIsNotNull:
		isNull, err := nullFlag(value)
		if err != nil {
			return nil, invalid("%v", err)
		}
		if op == FilterIsNotNull {
			isNull = !isNull
		}
		return lo.Ternary[clause.Expression](isNull, clause.Eq{Column: column, Value: nil}, clause.Neq{Column: column, Value: nil}), nil
	case FilterBetween:
		values, err := coerceList(ref.Field, value)
		if err != nil {
			return nil, invalid("%v", err)
		}
		if len(values) != 2 {
			return nil, invalid("between needs exactly 2 values, got %d", len(values))
		}
		return clause.Expr{SQL: "? BETWEEN ? AND ?", Vars: []any{column, values[0], values[1]}}, nil
	case FilterSearch:
		q, err := stringValue(value)
		if err != nil {
			return nil, invalid("%v", err)
		}
		return b.search().Condition(column, q), nil
	default:
		return nil, invalid("unsupported operator '%s'", op)
	}
}

func comparison(op FilterOperator, column clause.Column, v any) clause.Expression {
	switch op {
	case FilterNe:
		return clause.Neq{Column: column, Value: v}
	case FilterLt:
		return clause.Lt{Column: column, Value: v}
	case FilterLe, FilterLte:
		return clause.Lte{Column: column, Value: v}
	case FilterGt:
		return clause.Gt{Column: column, Value: v}
	case FilterGe, FilterGte:
		return clause.Gte{Column: column, Value: v}
	default:
		return clause.Eq{Column: column, Value: v}
	}
}

func (b FilterBuilder) ilike(column clause.Column, pattern string) clause.Expression {
	if b.Dialect == "postgres" {
		return clause.Expr{SQL: "? ILIKE ?", Vars: []any{column, pattern}}
	}

	return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?)", Vars: []any{column, pattern}}
}

func (b FilterBuilder) search() SearchStrategy {
	if b.Search != nil {
		return b.Search
	}

	return SearchStrategyFor(b.Dialect)
}

func (b FilterBuilder) logger() *zap.Logger {
	if b.Logger != nil {
		return b.Logger
	}

	return zap.NewNop()
}

// coerceValue converts a scalar filter value to the Go type matching the
// field. Strings coming from query strings are parsed, JSON numbers are
// narrowed, anything else passes through.
func coerceValue(f Field, v any) (any, error) {
	switch vt := v.(type) {
	case nil:
		return nil, nil
	case []string:
		if len(vt) != 1 {
			return nil, fmt.Errorf("expected a single value, got %d", len(vt))
		}
		return coerceValue(f, vt[0])
	case []any:
		if len(vt) != 1 {
			return nil, fmt.Errorf("expected a single value, got %d", len(vt))
		}
		return coerceValue(f, vt[0])
	case string:
		return parseString(f, vt)
	case json.Number:
		if f.Type == ValueTypeInt {
			return vt.Int64()
		} else if f.Type == ValueTypeFloat {
			return vt.Float64()
		}
		return parseString(f, vt.String())
	case float64:
		if f.Type == ValueTypeInt {
			if vt != math.Trunc(vt) {
				return nil, fmt.Errorf("value %v is not an integer", vt)
			}
			return int64(vt), nil
		}
		return vt, nil
	default:
		return v, nil
	}
}

func parseString(f Field, s string) (any, error) {
	switch f.Type {
	case ValueTypeInt:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case ValueTypeFloat:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	case ValueTypeBool:
		return strconv.ParseBool(strings.TrimSpace(s))
	case ValueTypeTime:
		return parseTime(strings.TrimSpace(s))
	case ValueTypeUUID:
		return uuid.Parse(strings.TrimSpace(s))
	default:
		return s, nil
	}
}

// coerceList accepts a slice or a single value and coerces every element.
func coerceList(f Field, v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		single, err := coerceValue(f, v)
		if err != nil {
			return nil, err
		}
		return []any{single}, nil
	}

	ret := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := coerceValue(f, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}

	return ret, nil
}

func stringValue(v any) (string, error) {
	switch vt := v.(type) {
	case string:
		return vt, nil
	case []string:
		if len(vt) == 1 {
			return vt[0], nil
		}
	case []any:
		if len(vt) == 1 {
			return stringValue(vt[0])
		}
	case nil:
	default:
		return fmt.Sprint(vt), nil
	}

	return "", fmt.Errorf("expected a single text value, got %T", v)
}

// nullFlag reads the optional boolean of is_null / is_not_null. Absent or
// empty values mean true.
func nullFlag(v any) (bool, error) {
	switch vt := v.(type) {
	case nil:
		return true, nil
	case bool:
		return vt, nil
	case []string:
		if len(vt) == 0 {
			return true, nil
		}
		return nullFlag(vt[0])
	case string:
		if vt == "" {
			return true, nil
		}
		return strconv.ParseBool(vt)
	default:
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
}
