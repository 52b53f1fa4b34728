package queryengine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine runs filtered, projected and paginated queries for the model T.
// It is immutable after New and safe for concurrent use.
type Engine[T any] struct {
	db      *gorm.DB
	schema  *Schema
	getters Getters[T]
	filters FilterBuilder
	opts    options
}

// New creates an engine for T. A nil schema is derived from the GORM model
// of T, nil getters are built by reflection.
func New[T any](db *gorm.DB, schema *Schema, getters Getters[T], opts ...Option) (*Engine[T], error) {
	if db == nil {
		return nil, errors.New("queryengine: nil db")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	if schema == nil {
		if schema, err = SchemaFromModel(db, new(T)); err != nil {
			return nil, err
		}
	}

	if getters == nil {
		if getters, err = ReflectGetters[T](db); err != nil {
			return nil, err
		}

		// Reflected getters are keyed by column, sorting uses field names.
		for _, f := range schema.Fields() {
			if _, ok := getters[f.Name]; !ok {
				if getter, ok := getters[f.Column]; ok {
					getters[f.Name] = getter
				}
			}
		}
	}

	return &Engine[T]{
		db:      db,
		schema:  schema,
		getters: getters,
		filters: FilterBuilder{
			Schema:  schema,
			Dialect: db.Dialector.Name(),
			Search:  o.search,
			Strict:  o.strictFilters,
			Logger:  o.logger,
		},
		opts: o,
	}, nil
}

// WithDB returns a copy of the engine bound to db, e.g. a transaction owned
// by the caller. The copy never uses the count cache: counts seen by db may
// include uncommitted writes other sessions must not observe.
func (e *Engine[T]) WithDB(db *gorm.DB) *Engine[T] {
	clone := *e
	clone.db = db
	clone.opts.countCache = nil

	return &clone
}

func (e *Engine[T]) Schema() *Schema {
	return e.schema
}

// Query returns the single entity matching params. It fails with
// ErrEntityNotFound for no match and ErrMultipleEntitiesFound for more than
// one.
func (e *Engine[T]) Query(ctx context.Context, params QueryParams) (T, error) {
	var zero T

	sort, err := ParseSort(params.OrderBy, e.schema)
	if err != nil {
		return zero, err
	}

	plan, err := e.plan(params, sort, false)
	if err != nil {
		return zero, err
	}

	var rows []T
	if err = sort.Apply(e.build(ctx, plan)).Limit(2).Find(&rows).Error; err != nil {
		return zero, fmt.Errorf("cannot query %s: %w", e.schema.Table, err)
	}

	switch len(rows) {
	case 0:
		return zero, fmt.Errorf("%w: %s", ErrEntityNotFound, e.schema.Table)
	case 1:
		return rows[0], nil
	default:
		return zero, fmt.Errorf("%w: %s", ErrMultipleEntitiesFound, e.schema.Table)
	}
}

// QueryAll returns every entity matching params.
func (e *Engine[T]) QueryAll(ctx context.Context, params QueryParams) ([]T, error) {
	sort, err := ParseSort(params.OrderBy, e.schema)
	if err != nil {
		return nil, err
	}

	plan, err := e.plan(params, sort, false)
	if err != nil {
		return nil, err
	}

	rows := make([]T, 0)
	if err = sort.Apply(e.build(ctx, plan)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cannot query %s: %w", e.schema.Table, err)
	}

	return rows, nil
}

// Paginate returns one page of entities. A nil Strategy is a keyset request
// for the first page.
func (e *Engine[T]) Paginate(ctx context.Context, req PaginationRequest) (*PaginationResponse[T], error) {
	strategy := req.Strategy
	if strategy == nil {
		strategy = KeysetStrategy{}
	}

	limit := NormalizeLimitMax(req.Limit, e.opts.defaultLimit, e.opts.maxLimit)

	var (
		resp *PaginationResponse[T]
		err  error
	)

	switch s := strategy.(type) {
	case KeysetStrategy:
		resp, err = e.paginateKeyset(ctx, req, s, limit)
	case OffsetStrategy:
		resp, err = e.paginateOffset(ctx, req, s, limit)
	default:
		err = fmt.Errorf("%w: unsupported strategy %T", ErrInvalidPagination, strategy)
	}

	if err != nil {
		return nil, err
	}

	e.opts.logger.Debug("page served",
		zap.String("table", e.schema.Table),
		zap.String("pagination_type", string(strategy.PaginationType())),
		zap.Int("limit", limit),
		zap.Int("items", len(resp.Items)),
		zap.Bool("has_next", resp.HasNext),
		zap.Bool("has_previous", resp.HasPrevious))

	return resp, nil
}

func (e *Engine[T]) paginateKeyset(
	ctx context.Context,
	req PaginationRequest,
	strategy KeysetStrategy,
	limit int,
) (*PaginationResponse[T], error) {
	sort, err := e.paginationSort(req.OrderBy)
	if err != nil {
		return nil, err
	}

	if len(sort) == 0 {
		return nil, fmt.Errorf("%w: %s has no sort and no unique field", ErrInvalidPagination, e.schema.Table)
	}

	if err = e.rejectNullableSort(sort); err != nil {
		return nil, err
	}

	cursor, err := DecodeCursor(strategy.Cursor)
	if err != nil {
		if !e.resetCursor(err) {
			return nil, err
		}
		cursor = nil
	}

	pager := NewKeysetPager().WithLimit(limit).WithSort(sort...).WithCursor(cursor)
	if err = pager.validate(); err != nil {
		if !e.resetCursor(err) {
			return nil, err
		}
		pager.WithCursor(nil)
	}

	plan, err := e.plan(req.QueryParams, sort, true)
	if err != nil {
		return nil, err
	}

	tx, err := pager.Paginate(e.build(ctx, plan))
	if err != nil {
		return nil, err
	}

	rows := make([]T, 0, pager.GetDatasetLimit())
	if err = tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cannot query %s: %w", e.schema.Table, err)
	}

	page, err := BuildKeysetPage(pager, rows, e.getters)
	if err != nil {
		return nil, err
	}

	window := KeysetWindow{Limit: limit}
	if page.NextCursor != nil {
		window.NextCursor = page.NextCursor.String()
	}
	if page.PreviousCursor != nil {
		window.PreviousCursor = page.PreviousCursor.String()
	}

	if req.IncludeTotalCount {
		total, err := e.count(ctx, req.Filters, plan.conditions)
		if err != nil {
			return nil, err
		}
		window.TotalCount = &total
	}

	return &PaginationResponse[T]{
		Items:       page.Items,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
		Window:      window,
	}, nil
}

func (e *Engine[T]) paginateOffset(
	ctx context.Context,
	req PaginationRequest,
	strategy OffsetStrategy,
	limit int,
) (*PaginationResponse[T], error) {
	sort, err := e.paginationSort(req.OrderBy)
	if err != nil {
		return nil, err
	}

	pager := NewOffsetPager().WithLimit(limit).WithOffset(strategy.Offset).WithPage(strategy.Page)

	plan, err := e.plan(req.QueryParams, sort, false)
	if err != nil {
		return nil, err
	}

	tx, err := pager.Paginate(sort.Apply(e.build(ctx, plan)))
	if err != nil {
		return nil, err
	}

	rows := make([]T, 0, limit)
	if err = tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cannot query %s: %w", e.schema.Table, err)
	}

	var total *int64
	if req.IncludeTotalCount {
		count, err := e.count(ctx, req.Filters, plan.conditions)
		if err != nil {
			return nil, err
		}
		total = &count
	}

	window, hasNext, hasPrevious := pager.Window(total)

	return &PaginationResponse[T]{
		Items:       rows,
		HasNext:     hasNext,
		HasPrevious: hasPrevious,
		Window:      window,
	}, nil
}

// paginationSort resolves the requested sort, falling back to the schema
// default, and makes it unique.
func (e *Engine[T]) paginationSort(raw []string) (Orderings, error) {
	if len(raw) == 0 {
		raw = e.schema.DefaultSort()
	}

	sort, err := ParseSort(raw, e.schema)
	if err != nil {
		return nil, err
	}

	return sort.EnsureUnique(e.schema), nil
}

// rejectNullableSort fails for sort fields that may hold NULL. A NULL
// boundary value cannot be compared with > or <, rows past it would be lost.
func (e *Engine[T]) rejectNullableSort(sort Orderings) error {
	nullable := lo.FilterMap(sort, func(o OrderBy, _ int) (string, bool) { return o.Field, o.Nullable })
	if len(nullable) == 0 {
		return nil
	}

	valid := lo.FilterMap(e.schema.Fields(), func(f Field, _ int) (string, bool) {
		return f.Name, !f.Nullable && e.schema.IsSelectable(f.Name)
	})

	return &InvalidFieldError{
		Invalid: nullable,
		Valid:   valid,
	}
}

// resetCursor reports whether a cursor failure should fall back to the first
// page.
func (e *Engine[T]) resetCursor(err error) bool {
	if !e.opts.cursorReset || !errors.Is(err, ErrInvalidCursor) {
		return false
	}

	e.opts.logger.Warn("invalid cursor reset to first page",
		zap.String("table", e.schema.Table),
		zap.Error(err))

	return true
}

type queryPlan struct {
	selection  Selection
	includes   []Include
	joins      []string
	conditions []clause.Expression
}

func (e *Engine[T]) plan(params QueryParams, sort Orderings, keyset bool) (queryPlan, error) {
	selection, err := ResolveSelection(e.schema, params.Fields)
	if err != nil {
		return queryPlan{}, err
	}

	includes, err := ResolveIncludes(e.schema, params.Include)
	if err != nil {
		return queryPlan{}, err
	}

	conditions, err := e.filters.Build(params.Filters)
	if err != nil {
		return queryPlan{}, err
	}

	if keyset {
		selection.ensureColumns(lo.Map(sort, func(o OrderBy, _ int) clause.Column { return o.Column })...)
	}

	for _, include := range includes {
		selection.ensureColumns(clause.Column{Table: e.schema.Table, Name: include.LocalKey})
	}

	joins := append(slices.Clone(selection.Joins), e.filters.RequiredJoins(params.Filters)...)
	joins = lo.Uniq(joins)
	slices.Sort(joins)

	return queryPlan{
		selection:  selection,
		includes:   includes,
		joins:      joins,
		conditions: conditions,
	}, nil
}

// build applies projection, joins, preloads and filters, in that order.
// Ordering and windowing are left to the caller.
func (e *Engine[T]) build(ctx context.Context, plan queryPlan) *gorm.DB {
	tx := e.db.WithContext(ctx).Model(new(T))

	if !plan.selection.All {
		tx = tx.Clauses(clause.Select{Columns: plan.selection.Columns})
	}

	tx = e.joinRelations(tx, plan.joins)

	for _, include := range plan.includes {
		tx = tx.Preload(include.Preload)
	}

	if len(plan.conditions) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: plan.conditions})
	}

	return tx
}

// joinRelations LEFT JOINs each relation table aliased by the relation name.
func (e *Engine[T]) joinRelations(tx *gorm.DB, names []string) *gorm.DB {
	for _, name := range names {
		rel, ok := e.schema.Relation(name)
		if !ok || rel.Target == nil {
			continue
		}

		tx = tx.Joins("LEFT JOIN ? ON ? = ?",
			clause.Table{Name: rel.Target.Table, Alias: rel.Name},
			clause.Column{Table: rel.Name, Name: rel.ForeignKey},
			clause.Column{Table: e.schema.Table, Name: rel.LocalKey},
		)
	}

	return tx
}
