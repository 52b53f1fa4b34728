package queryengine

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// OffsetPager applies classic LIMIT/OFFSET windowing. A page number, when
// set, takes precedence over a raw offset.
type OffsetPager struct {
	limit  int
	offset int
	page   *int
}

func NewOffsetPager() *OffsetPager {
	return new(OffsetPager)
}

// WithLimit sets the page size. Non-positive values fall back to
// DefaultLimit. Callers clamp the upper bound.
func (p *OffsetPager) WithLimit(limit int) *OffsetPager {
	if p == nil {
		p = new(OffsetPager)
	}

	p.limit = lo.Ternary(limit > 0, limit, DefaultLimit)

	return p
}

// WithOffset sets the raw number of rows to skip.
func (p *OffsetPager) WithOffset(offset int) *OffsetPager {
	if p == nil {
		p = new(OffsetPager)
	}

	p.offset = offset

	return p
}

// WithPage sets the 1-based page number. A nil page clears it.
func (p *OffsetPager) WithPage(page *int) *OffsetPager {
	if p == nil {
		p = new(OffsetPager)
	}

	p.page = page

	return p
}

func (p *OffsetPager) GetLimit() int {
	if p == nil {
		return 0
	}

	return p.limit
}

// GetOffset returns (page-1)*limit when a page is set, else the raw offset.
func (p *OffsetPager) GetOffset() int {
	if p == nil {
		return 0
	}

	if p.page != nil {
		return (*p.page - 1) * p.limit
	}

	return p.offset
}

// GetPage returns the 1-based page the window starts on.
func (p *OffsetPager) GetPage() int {
	if p == nil || p.limit <= 0 {
		return 1
	}

	if p.page != nil {
		return *p.page
	}

	return p.offset/p.limit + 1
}

// Paginate applies OFFSET and LIMIT to the dataset. Ordering is the caller's
// responsibility and must be applied before.
func (p *OffsetPager) Paginate(db *gorm.DB) (*gorm.DB, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	return db.Offset(p.GetOffset()).Limit(p.limit), nil
}

// Window computes page metadata. totalCount is nil when the count was not
// requested; in that case TotalPages stays nil and HasNext is false.
func (p *OffsetPager) Window(totalCount *int64) (window OffsetWindow, hasNext, hasPrevious bool) {
	page := p.GetPage()

	window = OffsetWindow{
		Page:       page,
		PerPage:    p.GetLimit(),
		TotalCount: totalCount,
	}

	if totalCount != nil {
		totalPages := TotalPages(*totalCount, p.GetLimit())
		window.TotalPages = &totalPages
		hasNext = page < totalPages
	}

	return window, hasNext, page > 1
}

func (p *OffsetPager) validate() error {
	if p == nil {
		return fmt.Errorf("offset pager is nil")
	}

	if p.limit <= 0 {
		return fmt.Errorf("offset pager limit must be positive")
	}

	if p.page != nil && *p.page < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidPagination, *p.page)
	}

	if p.page != nil && *p.page-1 > math.MaxInt/p.limit {
		return fmt.Errorf("%w: page %d is out of range", ErrInvalidPagination, *p.page)
	}

	if p.offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0, got %d", ErrInvalidPagination, p.offset)
	}

	return nil
}

// TotalPages returns ceil(totalCount / limit).
func TotalPages(totalCount int64, limit int) int {
	if limit <= 0 || totalCount <= 0 {
		return 0
	}

	return int((totalCount + int64(limit) - 1) / int64(limit))
}
