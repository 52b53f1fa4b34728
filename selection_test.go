package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func Test_ResolveSelection(t *testing.T) {
	schema := newCatalogSchema()

	products := func(name string) clause.Column {
		return clause.Column{Table: "products", Name: name}
	}

	tests := []struct {
		name string
		raw  string
		want Selection
	}{
		{
			name: "empty selects all",
			raw:  "",
			want: Selection{All: true},
		},
		{
			name: "star selects all",
			raw:  " * ",
			want: Selection{All: true},
		},
		{
			name: "only separators selects all",
			raw:  " , ,",
			want: Selection{All: true},
		},
		{
			name: "direct fields",
			raw:  "id, name",
			want: Selection{
				Columns: []clause.Column{products("id"), products("name")},
				Fields:  []string{"id", "name"},
			},
		},
		{
			name: "duplicates collapse",
			raw:  "name,name,id",
			want: Selection{
				Columns: []clause.Column{products("name"), products("id")},
				Fields:  []string{"name", "id"},
			},
		},
		{
			name: "relation fields get a default alias",
			raw:  "id,supplier.email,category.name",
			want: Selection{
				Columns: []clause.Column{
					products("id"),
					{Table: "supplier", Name: "email", Alias: "supplier_email"},
					{Table: "category", Name: "name", Alias: "category_name"},
				},
				Fields: []string{"id", "supplier.email", "category.name"},
				Joins:  []string{"category", "supplier"},
			},
		},
		{
			name: "explicit alias",
			raw:  "name AS title, category.name as category",
			want: Selection{
				Columns: []clause.Column{
					{Table: "products", Name: "name", Alias: "title"},
					{Table: "category", Name: "name", Alias: "category"},
				},
				Fields: []string{"name", "category.name"},
				Joins:  []string{"category"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSelection(schema, tt.raw)
			require.NoError(t, err)

			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_ResolveSelection_Invalid(t *testing.T) {
	schema := newCatalogSchema()

	tests := []struct {
		name        string
		raw         string
		wantInvalid []string
		wantHint    string
	}{
		{"typo", "id,nmae", []string{"nmae"}, "name"},
		{"every invalid entry is reported", "nmae,foo,id", []string{"nmae", "foo"}, "name"},
		{"not selectable relation field", "supplier.password_hash", []string{"supplier.password_hash"}, ""},
		{"unknown relation", "vendor.email", []string{"vendor.email"}, ""},
		{"too deep", "category.parent.name", []string{"category.parent.name"}, ""},
		{"bad alias", "name as 1x", []string{"name as 1x"}, ""},
		{"alias without keyword", "name title", []string{"name title"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveSelection(schema, tt.raw)
			require.ErrorIs(t, err, ErrInvalidField)

			var fieldErr *InvalidFieldError
			require.ErrorAs(t, err, &fieldErr)

			assert.Equal(t, tt.wantInvalid, fieldErr.Invalid)
			assert.Equal(t, schema.SelectableFields(), fieldErr.Valid)
			assert.NotContains(t, fieldErr.Valid, "supplier.password_hash")
			if tt.wantHint != "" {
				assert.Equal(t, tt.wantHint, fieldErr.Hint)
			}
			assert.Contains(t, fieldErr.Error(), "Invalid fields specified")
		})
	}
}

func Test_Selection_ensureColumns(t *testing.T) {
	schema := newCatalogSchema()

	t.Run("all is untouched", func(t *testing.T) {
		sel := Selection{All: true}
		sel.ensureColumns(clause.Column{Table: "products", Name: "id"})

		assert.Empty(t, sel.Columns)
	})

	t.Run("missing columns are appended once", func(t *testing.T) {
		sel, err := ResolveSelection(schema, "name as title,id")
		require.NoError(t, err)

		sel.ensureColumns(
			clause.Column{Table: "products", Name: "id"},
			clause.Column{Table: "products", Name: "name"},
			clause.Column{Table: "products", Name: "created_datetime"},
		)

		assert.Equal(t, []clause.Column{
			{Table: "products", Name: "name", Alias: "title"},
			{Table: "products", Name: "id"},
			{Table: "products", Name: "name"},
			{Table: "products", Name: "created_datetime"},
		}, sel.Columns)
	})
}

func Test_Selection_SQL(t *testing.T) {
	sel, err := ResolveSelection(newCatalogSchema(), "id,category.name")
	require.NoError(t, err)

	_, db, _, err := newGORMPostgresMock()
	require.NoError(t, err)

	sql, _ := dryRun(db, func(tx *gorm.DB) *gorm.DB {
		return tx.Table("products").Clauses(clause.Select{Columns: sel.Columns})
	})

	assert.Equal(t, `SELECT "products"."id","category"."name" AS "category_name" FROM "products"`, sql)
}

func Test_splitAlias(t *testing.T) {
	tests := []struct {
		entry     string
		wantPath  string
		wantAlias string
		wantOK    bool
	}{
		{"name", "name", "", true},
		{"name as title", "name", "title", true},
		{"name  AS  title_2", "name", "title_2", true},
		{"name as", "", "", false},
		{"name as ti-tle", "", "", false},
		{"name is title", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			path, alias, ok := splitAlias(tt.entry)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantAlias, alias)
		})
	}
}
