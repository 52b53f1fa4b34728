package queryengine

import (
	"fmt"
)

// PaginationType discriminates the two pagination strategies on the wire.
type PaginationType string

const (
	PaginationKeyset PaginationType = "keyset"
	PaginationOffset PaginationType = "offset"
)

// Filters maps filter keys to values. See FilterBuilder for the key grammar.
type Filters map[string]any

// QueryParams carries the parameters shared by every query operation.
type QueryParams struct {
	Filters Filters
	// Fields is a comma-separated projection, "*" or empty for the full entity.
	Fields string
	// Include lists relations to eager load, dotted for nested hops.
	Include []string
	// OrderBy entries are "field" (ASC) or "-field" (DESC).
	OrderBy []string
}

// PaginationRequest is a paginated query. Strategy selects keyset or offset
// windowing; a nil Strategy means keyset from the first page.
type PaginationRequest struct {
	QueryParams

	Limit             int
	IncludeTotalCount bool
	Strategy          Strategy
}

// Strategy is implemented by KeysetStrategy and OffsetStrategy only.
type Strategy interface {
	PaginationType() PaginationType
	isStrategy()
}

// KeysetStrategy continues from Cursor, or starts at the beginning when it is
// empty.
type KeysetStrategy struct {
	Cursor string
}

func (KeysetStrategy) PaginationType() PaginationType { return PaginationKeyset }
func (KeysetStrategy) isStrategy()                    {}

// OffsetStrategy skips Offset rows, or (Page-1)*Limit rows when Page is set.
type OffsetStrategy struct {
	Offset int
	Page   *int
}

func (OffsetStrategy) PaginationType() PaginationType { return PaginationOffset }
func (OffsetStrategy) isStrategy()                    {}

var (
	_ Strategy = KeysetStrategy{}
	_ Strategy = OffsetStrategy{}
)

// RawPaginationRequest is the flat wire form of PaginationRequest, suitable
// for JSON bodies and query string binding. For proper code generation, inline
// it:
//
//	type ListProductsRequest struct {
//	    queryengine.RawPaginationRequest `json:",inline"`
//	}
type RawPaginationRequest struct {
	// PaginationType is "keyset" (default) or "offset".
	PaginationType    PaginationType `json:"pagination_type" form:"pagination_type"`
	Limit             int            `json:"limit" form:"limit"`
	OrderBy           []string       `json:"order_by" form:"order_by"`
	Fields            string         `json:"fields" form:"fields"`
	Include           []string       `json:"include" form:"include"`
	IncludeTotalCount bool           `json:"include_total_count" form:"include_total_count"`
	Filters           Filters        `json:"filters" form:"-"`

	// Cursor is read for keyset pagination only.
	Cursor string `json:"cursor" form:"cursor"`
	// Offset and Page are read for offset pagination only. Page wins.
	Offset int  `json:"offset" form:"offset"`
	Page   *int `json:"page" form:"page"`
}

// Decode converts the flat request into the tagged form, keeping only the
// fields of the selected strategy.
func (r RawPaginationRequest) Decode() (PaginationRequest, error) {
	req := PaginationRequest{
		QueryParams: QueryParams{
			Filters: r.Filters,
			Fields:  r.Fields,
			Include: r.Include,
			OrderBy: r.OrderBy,
		},
		Limit:             r.Limit,
		IncludeTotalCount: r.IncludeTotalCount,
	}

	switch r.PaginationType {
	case "", PaginationKeyset:
		req.Strategy = KeysetStrategy{Cursor: r.Cursor}
	case PaginationOffset:
		if r.Page != nil && *r.Page < 1 {
			return PaginationRequest{}, fmt.Errorf("%w: page must be >= 1", ErrInvalidPagination)
		}
		if r.Offset < 0 {
			return PaginationRequest{}, fmt.Errorf("%w: offset must be >= 0", ErrInvalidPagination)
		}
		req.Strategy = OffsetStrategy{Offset: r.Offset, Page: r.Page}
	default:
		return PaginationRequest{}, fmt.Errorf("%w: unknown pagination type '%s'", ErrInvalidPagination, r.PaginationType)
	}

	if r.Limit < 0 {
		return PaginationRequest{}, fmt.Errorf("%w: limit must be >= 0", ErrInvalidPagination)
	}

	return req, nil
}
