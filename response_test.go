package queryengine

import (
	"encoding/json"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tItem struct {
	ID int `json:"id"`
}

func Test_PaginationResponse_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		resp PaginationResponse[tItem]
		want string
	}{
		{
			name: "keyset",
			resp: PaginationResponse[tItem]{
				Items:   []tItem{{ID: 1}},
				HasNext: true,
				Window:  KeysetWindow{NextCursor: "next", Limit: 1},
			},
			want: `{"items":[{"id":1}],"has_next":true,"has_previous":false,"next_cursor":"next","limit":1}`,
		},
		{
			name: "keyset with count",
			resp: PaginationResponse[tItem]{
				HasPrevious: true,
				Window:      KeysetWindow{PreviousCursor: "prev", Limit: 10, TotalCount: lo.ToPtr(int64(3))},
			},
			want: `{"items":[],"has_next":false,"has_previous":true,"previous_cursor":"prev","limit":10,"total_count":3}`,
		},
		{
			name: "offset",
			resp: PaginationResponse[tItem]{
				Items:       []tItem{{ID: 11}},
				HasNext:     true,
				HasPrevious: true,
				Window: OffsetWindow{
					Page:       2,
					PerPage:    10,
					TotalPages: lo.ToPtr(3),
					TotalCount: lo.ToPtr(int64(30)),
				},
			},
			want: `{"items":[{"id":11}],"has_next":true,"has_previous":true,"page":2,"per_page":10,"total_pages":3,"total_count":30}`,
		},
		{
			name: "offset without count",
			resp: PaginationResponse[tItem]{
				Window: OffsetWindow{Page: 1, PerPage: 20},
			},
			want: `{"items":[],"has_next":false,"has_previous":false,"page":1,"per_page":20}`,
		},
		{
			name: "no window",
			resp: PaginationResponse[tItem]{},
			want: `{"items":[],"has_next":false,"has_previous":false}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			require.NoError(t, err)

			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func Test_PaginationResponse_Windows(t *testing.T) {
	keyset := PaginationResponse[tItem]{Window: KeysetWindow{Limit: 5}}

	w, ok := keyset.Keyset()
	assert.True(t, ok)
	assert.Equal(t, 5, w.Limit)

	_, ok = keyset.Offset()
	assert.False(t, ok)
	assert.Equal(t, PaginationKeyset, keyset.Window.PaginationType())

	offset := PaginationResponse[tItem]{Window: OffsetWindow{Page: 2}}

	_, ok = offset.Keyset()
	assert.False(t, ok)

	ow, ok := offset.Offset()
	assert.True(t, ok)
	assert.Equal(t, 2, ow.Page)
	assert.Equal(t, PaginationOffset, offset.Window.PaginationType())
}
