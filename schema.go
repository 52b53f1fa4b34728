package queryengine

import (
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"
)

// ValueType is the semantic type of a field value. It drives filter value
// coercion and is written into keyset cursors so that decoding never has to
// guess.
type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeInt    ValueType = "int"
	ValueTypeFloat  ValueType = "float"
	ValueTypeBool   ValueType = "bool"
	ValueTypeTime   ValueType = "datetime"
	ValueTypeUUID   ValueType = "uuid"
)

type (
	// Field describes one column of a model.
	Field struct {
		// Name is the external name used in filters, sorting and field selection.
		Name string
		// Column is the database column name.
		Column string
		Type   ValueType
		// Unique marks a field whose values identify a row. Keyset pagination
		// needs at least one of these in the sort list.
		Unique bool
		// Nullable marks a column that may hold NULL. Keyset pagination
		// rejects nullable sort fields.
		Nullable bool
	}

	// Relation describes a single-hop relationship from the owning schema to
	// Target. The joined table is aliased by Name, so relation fields are
	// addressed as "<Name>.<column>" in SQL.
	Relation struct {
		Name string
		// Association is the GORM association (struct field) name used to
		// eager load the relation. Empty means the relation can be joined and
		// filtered on but not included.
		Association string
		Target      *Schema
		// LocalKey is the column on the owning table.
		LocalKey string
		// ForeignKey is the column on the Target table.
		ForeignKey string
	}

	// Schema is an explicit per-model descriptor. All name resolution done by
	// the engine is a lookup in a Schema.
	//
	// Schemas are built once at startup and must not be modified after they are
	// handed to an Engine.
	Schema struct {
		Table string

		fields      []Field
		fieldIndex  map[string]int
		relations   map[string]Relation
		relOrder    []string
		selectable  []string
		defaultSort []string
	}
)

// SelectableFieldsProvider may be implemented by GORM models to declare their
// selectable field allow-list. SchemaFromModel picks it up automatically.
type SelectableFieldsProvider interface {
	SelectableFields() []string
}

func NewSchema(table string) *Schema {
	return &Schema{
		Table:      table,
		fieldIndex: make(map[string]int),
		relations:  make(map[string]Relation),
	}
}

// WithField registers fields. A field registered twice replaces the previous one.
func (s *Schema) WithField(fields ...Field) *Schema {
	if s == nil {
		s = NewSchema("")
	}

	for _, f := range fields {
		if f.Column == "" {
			f.Column = f.Name
		}
		if f.Type == "" {
			f.Type = ValueTypeString
		}

		if idx, ok := s.fieldIndex[f.Name]; ok {
			s.fields[idx] = f
			continue
		}

		s.fieldIndex[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	return s
}

// WithRelation registers relations. A relation registered twice replaces the
// previous one.
func (s *Schema) WithRelation(relations ...Relation) *Schema {
	if s == nil {
		s = NewSchema("")
	}

	for _, r := range relations {
		if _, ok := s.relations[r.Name]; !ok {
			s.relOrder = append(s.relOrder, r.Name)
		}
		s.relations[r.Name] = r
	}

	return s
}

// WithSelectable restricts the projection allow-list. Without it every field
// is selectable.
func (s *Schema) WithSelectable(names ...string) *Schema {
	if s == nil {
		s = NewSchema("")
	}

	s.selectable = slices.Clone(names)

	return s
}

// WithDefaultSort sets the sort applied when a request has none. Entries use
// the same "-field" syntax as requests.
func (s *Schema) WithDefaultSort(sort ...string) *Schema {
	if s == nil {
		s = NewSchema("")
	}

	s.defaultSort = slices.Clone(sort)

	return s
}

func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}

	idx, ok := s.fieldIndex[name]
	if !ok {
		return Field{}, false
	}

	return s.fields[idx], true
}

// Fields returns all fields in registration order.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}

	return slices.Clone(s.fields)
}

func (s *Schema) FieldNames() []string {
	return lo.Map(s.Fields(), func(f Field, _ int) string { return f.Name })
}

func (s *Schema) Relation(name string) (Relation, bool) {
	if s == nil {
		return Relation{}, false
	}

	r, ok := s.relations[name]

	return r, ok
}

// RelationNames returns relation names in registration order.
func (s *Schema) RelationNames() []string {
	if s == nil {
		return nil
	}

	return slices.Clone(s.relOrder)
}

// IsSelectable reports whether a direct field may appear in a projection.
func (s *Schema) IsSelectable(name string) bool {
	if _, ok := s.Field(name); !ok {
		return false
	}

	return s.selectable == nil || slices.Contains(s.selectable, name)
}

// SelectableFields returns the allow-list for projections and filters: direct
// fields first, then "relation.field" paths of every related schema.
func (s *Schema) SelectableFields() []string {
	if s == nil {
		return nil
	}

	ret := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		if s.IsSelectable(f.Name) {
			ret = append(ret, f.Name)
		}
	}

	for _, name := range s.relOrder {
		target := s.relations[name].Target
		for _, f := range target.Fields() {
			if target.IsSelectable(f.Name) {
				ret = append(ret, name+"."+f.Name)
			}
		}
	}

	return ret
}

// UniqueField returns the first field flagged as unique.
func (s *Schema) UniqueField() (Field, bool) {
	if s == nil {
		return Field{}, false
	}

	return lo.Find(s.fields, func(f Field) bool { return f.Unique })
}

// DefaultSort returns the configured default sort, or the unique field when
// none was configured.
func (s *Schema) DefaultSort() []string {
	if s == nil {
		return nil
	}

	if len(s.defaultSort) > 0 {
		return slices.Clone(s.defaultSort)
	}

	if f, ok := s.UniqueField(); ok {
		return []string{f.Name}
	}

	return nil
}

// Column returns the fully qualified column of a direct field.
func (s *Schema) Column(f Field) clause.Column {
	return clause.Column{Table: s.Table, Name: f.Column}
}

// fieldRef is a resolved field path.
type fieldRef struct {
	Path     string
	Field    Field
	Column   clause.Column
	Relation string
}

// resolvePath resolves "field" or "relation.field". Deeper paths are not
// supported.
func (s *Schema) resolvePath(path string, selectableOnly bool) (fieldRef, bool) {
	parts := strings.Split(path, ".")

	switch len(parts) {
	case 1:
		f, ok := s.Field(parts[0])
		if !ok || (selectableOnly && !s.IsSelectable(f.Name)) {
			return fieldRef{}, false
		}

		return fieldRef{Path: path, Field: f, Column: s.Column(f)}, true
	case 2:
		rel, ok := s.Relation(parts[0])
		if !ok || rel.Target == nil {
			return fieldRef{}, false
		}

		f, ok := rel.Target.Field(parts[1])
		if !ok || (selectableOnly && !rel.Target.IsSelectable(f.Name)) {
			return fieldRef{}, false
		}

		return fieldRef{
			Path:     path,
			Field:    f,
			Column:   clause.Column{Table: rel.Name, Name: f.Column},
			Relation: rel.Name,
		}, true
	default:
		return fieldRef{}, false
	}
}

// SchemaFromModel derives a Schema from a GORM model. Column names become
// field names, the single primary key and unique columns are flagged unique,
// belongs-to, has-one and has-many relationships are registered under the
// snake-cased association name. Many-to-many and polymorphic relationships are
// skipped.
func SchemaFromModel(db *gorm.DB, model any) (*Schema, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("cannot parse model %T: %w", model, err)
	}

	return fromGORMSchema(db.NamingStrategy, stmt.Schema, make(map[*gormschema.Schema]*Schema)), nil
}

func fromGORMSchema(namer gormschema.Namer, gs *gormschema.Schema, seen map[*gormschema.Schema]*Schema) *Schema {
	if s, ok := seen[gs]; ok {
		return s
	}

	s := NewSchema(gs.Table)
	seen[gs] = s

	for _, f := range gs.Fields {
		if f.DBName == "" {
			continue
		}

		s.WithField(Field{
			Name:     f.DBName,
			Column:   f.DBName,
			Type:     valueTypeOf(f.FieldType),
			Unique:   f.Unique || (f.PrimaryKey && len(gs.PrimaryFields) == 1),
			Nullable: isNullable(f),
		})
	}

	if provider, ok := reflect.New(gs.ModelType).Interface().(SelectableFieldsProvider); ok {
		s.WithSelectable(provider.SelectableFields()...)
	}

	relNames := lo.Keys(gs.Relationships.Relations)
	slices.Sort(relNames)

	for _, relName := range relNames {
		rel := gs.Relationships.Relations[relName]
		if rel.Type == gormschema.Many2Many || rel.Polymorphic != nil || len(rel.References) != 1 {
			continue
		}

		ref := rel.References[0]
		if ref.PrimaryKey == nil || ref.ForeignKey == nil {
			continue
		}

		localKey, foreignKey := ref.ForeignKey.DBName, ref.PrimaryKey.DBName
		if ref.OwnPrimaryKey {
			localKey, foreignKey = ref.PrimaryKey.DBName, ref.ForeignKey.DBName
		}

		s.WithRelation(Relation{
			Name:        namer.ColumnName("", rel.Name),
			Association: rel.Name,
			Target:      fromGORMSchema(namer, rel.FieldSchema, seen),
			LocalKey:    localKey,
			ForeignKey:  foreignKey,
		})
	}

	return s
}

var (
	_timeType     = reflect.TypeOf(time.Time{})
	_nullTimeType = reflect.TypeOf(sql.NullTime{})
	_deletedAt    = reflect.TypeOf(gorm.DeletedAt{})
	_uuidType     = reflect.TypeOf(uuid.UUID{})
)

// isNullable reports whether the Go type of f can carry NULL: pointers,
// sql.Null* wrappers and gorm.DeletedAt, unless the column is NOT NULL.
func isNullable(f *gormschema.Field) bool {
	if f.PrimaryKey || f.NotNull {
		return false
	}

	t := f.FieldType
	if t.Kind() == reflect.Ptr || t == _deletedAt {
		return true
	}

	return t.PkgPath() == "database/sql" && strings.HasPrefix(t.Name(), "Null")
}

func valueTypeOf(t reflect.Type) ValueType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t {
	case _uuidType:
		return ValueTypeUUID
	case _timeType, _nullTimeType, _deletedAt:
		return ValueTypeTime
	}

	switch t.Kind() {
	case reflect.Bool:
		return ValueTypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ValueTypeInt
	case reflect.Float32, reflect.Float64:
		return ValueTypeFloat
	default:
		return ValueTypeString
	}
}
