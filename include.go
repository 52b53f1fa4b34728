package queryengine

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Include is a resolved eager-load path.
type Include struct {
	// Path is the requested path, e.g. "category.parent".
	Path string
	// Preload is the GORM association chain, e.g. "Category.Parent".
	Preload string
	// LocalKey is the root table column the first hop is loaded by.
	LocalKey string
}

// ResolveIncludes resolves dotted relation paths hop by hop. Duplicates are
// collapsed, request order is kept.
func ResolveIncludes(schema *Schema, includes []string) ([]Include, error) {
	ret := make([]Include, 0, len(includes))

	for _, raw := range includes {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}

		include, err := resolveInclude(schema, path)
		if err != nil {
			return nil, err
		}

		if !lo.ContainsBy(ret, func(i Include) bool { return i.Path == include.Path }) {
			ret = append(ret, include)
		}
	}

	return ret, nil
}

func resolveInclude(schema *Schema, path string) (Include, error) {
	var (
		current  = schema
		preload  = make([]string, 0, 2)
		localKey string
		hops     = strings.Split(path, ".")
	)

	for i, hop := range hops {
		rel, ok := current.Relation(hop)
		if !ok || rel.Target == nil {
			if hint := closestName(hop, current.RelationNames()); hint != "" {
				return Include{}, fmt.Errorf("%w: unknown relation '%s' in '%s', closest: '%s'", ErrInvalidInclude, hop, path, hint)
			}
			return Include{}, fmt.Errorf("%w: unknown relation '%s' in '%s'", ErrInvalidInclude, hop, path)
		}

		if rel.Association == "" {
			return Include{}, fmt.Errorf("%w: relation '%s' in '%s' cannot be eager loaded", ErrInvalidInclude, hop, path)
		}

		if i == 0 {
			localKey = rel.LocalKey
		}

		preload = append(preload, rel.Association)
		current = rel.Target
	}

	return Include{
		Path:     path,
		Preload:  strings.Join(preload, "."),
		LocalKey: localKey,
	}, nil
}
