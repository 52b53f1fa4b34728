package queryengine

import (
	"slices"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// Selection is a resolved projection.
type Selection struct {
	// All means the full entity is loaded and Columns is empty.
	All     bool
	Columns []clause.Column
	// Fields are the resolved field paths in request order.
	Fields []string
	// Joins are the relations the projection reads from, sorted.
	Joins []string
}

// ResolveSelection parses a comma-separated projection such as
//
//	"id, name, category.name as category"
//
// against the schema allow-list. "*", empty or blank input selects the full
// entity. Relation fields are aliased "<relation>_<column>" unless an alias is
// given. Every entry that does not resolve is reported in one
// InvalidFieldError.
func ResolveSelection(schema *Schema, raw string) (Selection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return Selection{All: true}, nil
	}

	var (
		sel     Selection
		invalid []string
	)

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		path, alias, ok := splitAlias(entry)
		if !ok {
			invalid = append(invalid, entry)
			continue
		}

		ref, ok := schema.resolvePath(path, true)
		if !ok {
			invalid = append(invalid, path)
			continue
		}

		if ref.Relation != "" && alias == "" {
			alias = ref.Relation + "_" + ref.Field.Column
		}

		sel.add(ref, alias)
	}

	if len(invalid) > 0 {
		valid := schema.SelectableFields()
		return Selection{}, &InvalidFieldError{
			Invalid: invalid,
			Valid:   valid,
			Hint:    closestName(invalid[0], valid),
		}
	}

	if len(sel.Columns) == 0 {
		return Selection{All: true}, nil
	}

	return sel, nil
}

func (s *Selection) add(ref fieldRef, alias string) {
	if slices.Contains(s.Fields, ref.Path) {
		return
	}

	column := ref.Column
	column.Alias = alias

	s.Columns = append(s.Columns, column)
	s.Fields = append(s.Fields, ref.Path)

	if ref.Relation != "" && !slices.Contains(s.Joins, ref.Relation) {
		s.Joins = append(s.Joins, ref.Relation)
		slices.Sort(s.Joins)
	}
}

// ensureColumns adds unaliased columns of the root table that are missing
// from a partial projection. Rows need them to build cursors and to preload
// relations.
func (s *Selection) ensureColumns(columns ...clause.Column) {
	if s.All {
		return
	}

	for _, column := range columns {
		exists := lo.ContainsBy(s.Columns, func(c clause.Column) bool {
			return c.Table == column.Table && c.Name == column.Name && (c.Alias == "" || c.Alias == c.Name)
		})
		if !exists {
			s.Columns = append(s.Columns, column)
		}
	}
}

// splitAlias splits "path" or "path as alias". The keyword is case
// insensitive.
func splitAlias(entry string) (path, alias string, ok bool) {
	parts := strings.Fields(entry)

	switch {
	case len(parts) == 1:
		return parts[0], "", true
	case len(parts) == 3 && strings.EqualFold(parts[1], "as") && isIdentifier(parts[2]):
		return parts[0], parts[2], true
	default:
		return "", "", false
	}
}

func isIdentifier(s string) bool {
	if s == "" || unicode.IsDigit(rune(s[0])) {
		return false
	}

	return lo.EveryBy([]rune(s), func(r rune) bool {
		return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
}
