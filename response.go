package queryengine

import (
	"encoding/json"
)

// PaginationResponse is the unified result of Engine.Paginate. Window holds
// the strategy specific metadata and is either KeysetWindow or OffsetWindow.
type PaginationResponse[T any] struct {
	Items       []T
	HasNext     bool
	HasPrevious bool
	Window      Window
}

// Window is implemented by KeysetWindow and OffsetWindow only.
type Window interface {
	PaginationType() PaginationType
	isWindow()
}

// KeysetWindow carries the cursors around a keyset page. Empty cursors mean
// there is nothing in that direction.
type KeysetWindow struct {
	NextCursor     string
	PreviousCursor string
	Limit          int
	// TotalCount is set when the request asked for it.
	TotalCount *int64
}

func (KeysetWindow) PaginationType() PaginationType { return PaginationKeyset }
func (KeysetWindow) isWindow()                      {}

// OffsetWindow carries page metadata. TotalPages and TotalCount are set when
// the request asked for the total count.
type OffsetWindow struct {
	Page       int
	PerPage    int
	TotalPages *int
	TotalCount *int64
}

func (OffsetWindow) PaginationType() PaginationType { return PaginationOffset }
func (OffsetWindow) isWindow()                      {}

var (
	_ Window = KeysetWindow{}
	_ Window = OffsetWindow{}
)

// Keyset returns the keyset window, if that is the strategy used.
func (r PaginationResponse[T]) Keyset() (KeysetWindow, bool) {
	w, ok := r.Window.(KeysetWindow)
	return w, ok
}

// Offset returns the offset window, if that is the strategy used.
func (r PaginationResponse[T]) Offset() (OffsetWindow, bool) {
	w, ok := r.Window.(OffsetWindow)
	return w, ok
}

type (
	keysetResponseJSON[T any] struct {
		Items          []T    `json:"items"`
		HasNext        bool   `json:"has_next"`
		HasPrevious    bool   `json:"has_previous"`
		NextCursor     string `json:"next_cursor,omitempty"`
		PreviousCursor string `json:"previous_cursor,omitempty"`
		Limit          int    `json:"limit"`
		TotalCount     *int64 `json:"total_count,omitempty"`
	}

	offsetResponseJSON[T any] struct {
		Items       []T    `json:"items"`
		HasNext     bool   `json:"has_next"`
		HasPrevious bool   `json:"has_previous"`
		Page        int    `json:"page"`
		PerPage     int    `json:"per_page"`
		TotalPages  *int   `json:"total_pages,omitempty"`
		TotalCount  *int64 `json:"total_count,omitempty"`
	}

	plainResponseJSON[T any] struct {
		Items       []T  `json:"items"`
		HasNext     bool `json:"has_next"`
		HasPrevious bool `json:"has_previous"`
	}
)

// MarshalJSON flattens the window into the top level object. Fields of the
// other strategy are never emitted.
func (r PaginationResponse[T]) MarshalJSON() ([]byte, error) {
	items := r.Items
	if items == nil {
		items = []T{}
	}

	switch w := r.Window.(type) {
	case KeysetWindow:
		return json.Marshal(keysetResponseJSON[T]{
			Items:          items,
			HasNext:        r.HasNext,
			HasPrevious:    r.HasPrevious,
			NextCursor:     w.NextCursor,
			PreviousCursor: w.PreviousCursor,
			Limit:          w.Limit,
			TotalCount:     w.TotalCount,
		})
	case OffsetWindow:
		return json.Marshal(offsetResponseJSON[T]{
			Items:       items,
			HasNext:     r.HasNext,
			HasPrevious: r.HasPrevious,
			Page:        w.Page,
			PerPage:     w.PerPage,
			TotalPages:  w.TotalPages,
			TotalCount:  w.TotalCount,
		})
	default:
		return json.Marshal(plainResponseJSON[T]{
			Items:       items,
			HasNext:     r.HasNext,
			HasPrevious: r.HasPrevious,
		})
	}
}
