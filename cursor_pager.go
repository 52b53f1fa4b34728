package queryengine

import (
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// KeysetPager applies keyset pagination to a query and turns the fetched rows
// into a page. It always fetches one row past the limit to learn whether
// another page exists.
type KeysetPager struct {
	limit    int
	cursor   *KeysetCursor
	sort     Orderings
	backward bool
}

func NewKeysetPager() *KeysetPager {
	return new(KeysetPager)
}

// WithLimit sets the page size. Non-positive values fall back to
// DefaultLimit. Callers clamp the upper bound.
func (c *KeysetPager) WithLimit(limit int) *KeysetPager {
	if c == nil {
		c = new(KeysetPager)
	}

	c.limit = lo.Ternary(limit > 0, limit, DefaultLimit)

	return c
}

// WithCursor sets the cursor explicitly.
func (c *KeysetPager) WithCursor(cursor *KeysetCursor) *KeysetPager {
	if c == nil {
		c = new(KeysetPager)
	}

	c.cursor = cursor

	return c
}

// WithSubstitutedSort resets previous orderings and applies the provided ones.
func (c *KeysetPager) WithSubstitutedSort(orderBy ...OrderBy) *KeysetPager {
	if c == nil {
		c = new(KeysetPager)
	}

	c.sort = nil

	return c.WithSort(orderBy...)
}

// WithSort appends sort orderings without overwriting existing ones.
func (c *KeysetPager) WithSort(orderBy ...OrderBy) *KeysetPager {
	if c == nil {
		c = new(KeysetPager)
	}

	c.sort = c.sort.With(orderBy...)

	return c
}

// Paginate applies ordering, the cursor condition and LIMIT limit+1 to the
// dataset. A backward cursor orders by the reversed sort; BuildKeysetPage
// restores the natural order.
func (c *KeysetPager) Paginate(db *gorm.DB) (*gorm.DB, error) {
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	db = c.datasetSort().Apply(db)
	db = c.cursor.Apply(db, c.sort)

	return db.Limit(c.GetDatasetLimit()), nil
}

// GetSort returns the sort of the page as seen by the client.
func (c *KeysetPager) GetSort() Orderings {
	if c == nil {
		return nil
	}

	return c.sort
}

func (c *KeysetPager) GetLimit() int {
	if c == nil {
		return 0
	}

	return c.limit
}

func (c *KeysetPager) GetCursor() *KeysetCursor {
	if c == nil {
		return nil
	}

	return c.cursor
}

// GetDatasetLimit returns the number of rows to fetch: GetLimit() + 1.
func (c *KeysetPager) GetDatasetLimit() int {
	return c.GetLimit() + 1
}

// IsBackward reports whether the cursor leads to the previous page. Only
// meaningful after Paginate.
func (c *KeysetPager) IsBackward() bool {
	return c != nil && c.backward
}

func (c *KeysetPager) datasetSort() Orderings {
	return lo.Ternary(c.backward, c.sort.Reversed(), c.sort)
}

func (c *KeysetPager) validate() error {
	if c == nil {
		return fmt.Errorf("keyset pager is nil")
	}

	if c.limit <= 0 {
		return fmt.Errorf("keyset pager limit must be positive")
	}

	if err := c.sort.validate(); err != nil {
		return err
	}

	backward, err := c.cursor.navigation(c.sort)
	if err != nil {
		return err
	}
	c.backward = backward

	return nil
}

// KeysetPage is the result of one keyset round trip.
type KeysetPage[T any] struct {
	Items          []T
	HasNext        bool
	HasPrevious    bool
	NextCursor     *KeysetCursor
	PreviousCursor *KeysetCursor
}

// IsLastPage returns true if no rows exist past the fetched page in the
// direction of travel.
func IsLastPage[T any](pager *KeysetPager, resultSet []T) bool {
	return len(resultSet) <= pager.GetLimit()
}

// TrimResultSet drops the lookahead row. Suppose limit = 2 and
// resultSet = [a, b, c]; the result is [a, b].
func TrimResultSet[T any](pager *KeysetPager, resultSet []T) []T {
	if len(resultSet) > pager.GetLimit() {
		resultSet = resultSet[:pager.GetLimit()]
	}

	return resultSet
}

// BuildKeysetPage trims the lookahead row, restores natural order for
// backward pages and builds the surrounding cursors.
//
//   - forward: HasNext = more rows exist, HasPrevious = a cursor was supplied.
//   - backward: HasNext = true, HasPrevious = more rows exist.
//
// NextCursor is set only when HasNext and PreviousCursor only when HasPrevious.
func BuildKeysetPage[T any](pager *KeysetPager, resultSet []T, getters Getters[T]) (KeysetPage[T], error) {
	if err := pager.validate(); err != nil {
		return KeysetPage[T]{}, fmt.Errorf("cannot build keyset page: %w", err)
	}

	hasMore := !IsLastPage(pager, resultSet)
	items := TrimResultSet(pager, resultSet)

	page := KeysetPage[T]{}
	if pager.IsBackward() {
		items = lo.Reverse(items)
		page.HasNext = true
		page.HasPrevious = hasMore
	} else {
		page.HasNext = hasMore
		page.HasPrevious = !pager.GetCursor().IsEmpty()
	}
	page.Items = items

	if len(items) == 0 {
		return page, nil
	}

	var err error
	if page.HasNext {
		page.NextCursor, err = NextPageCursor(pager.GetSort(), items[len(items)-1], getters)
		if err != nil {
			return KeysetPage[T]{}, err
		}
	}

	if page.HasPrevious {
		page.PreviousCursor, err = PreviousPageCursor(pager.GetSort(), items[0], getters)
		if err != nil {
			return KeysetPage[T]{}, err
		}
	}

	return page, nil
}
