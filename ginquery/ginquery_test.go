package ginquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alp4ka/queryengine"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req

	return c, rec
}

func Test_ParseFilters(t *testing.T) {
	values := url.Values{
		"filters[status__in]":       {"active,draft"},
		"filters[price__between]":   {"10", "20"},
		"filters[name__ilike]":      {"widget"},
		"filters[tag]":              {"a", "b"},
		"filters[deleted__is_null]": {""},
		"limit":                     {"10"},
		"filters[broken":            {"x"},
	}

	filters := ParseFilters(values)

	assert.Equal(t, queryengine.Filters{
		"status__in":       []string{"active", "draft"},
		"price__between":   []string{"10", "20"},
		"name__ilike":      "widget",
		"tag":              []string{"a", "b"},
		"deleted__is_null": "",
	}, filters)
}

func Test_splitList(t *testing.T) {
	assert.Equal(t, []string{"-price", "id", "name"}, splitList([]string{"-price, id", "", "name"}))
	assert.Empty(t, splitList(nil))
}

func Test_BindPaginationRequest_Query(t *testing.T) {
	c, _ := newContext(http.MethodGet,
		"/products?pagination_type=offset&page=2&limit=10&order_by=-price,id&fields=id,name"+
			"&include=category&filters[status__in]=active,draft", "")

	req, err := BindPaginationRequest(c)
	require.NoError(t, err)

	assert.Equal(t, 10, req.Limit)
	assert.Equal(t, []string{"-price", "id"}, req.OrderBy)
	assert.Equal(t, "id,name", req.Fields)
	assert.Equal(t, []string{"category"}, req.Include)
	assert.Equal(t, queryengine.Filters{"status__in": []string{"active", "draft"}}, req.Filters)

	strategy, ok := req.Strategy.(queryengine.OffsetStrategy)
	require.True(t, ok)
	require.NotNil(t, strategy.Page)
	assert.Equal(t, 2, *strategy.Page)
}

func Test_BindPaginationRequest_JSON(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/products/search",
		`{"limit": 5, "cursor": "abc", "order_by": ["-created_datetime"], "filters": {"price__gte": 10}}`)

	req, err := BindPaginationRequest(c)
	require.NoError(t, err)

	assert.Equal(t, 5, req.Limit)
	assert.Equal(t, queryengine.KeysetStrategy{Cursor: "abc"}, req.Strategy)
	assert.Equal(t, []string{"-created_datetime"}, req.OrderBy)
	assert.Contains(t, req.Filters, "price__gte")
}

func Test_BindPaginationRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "unknown type", target: "/products?pagination_type=page"},
		{name: "zero page", target: "/products?pagination_type=offset&page=0"},
		{name: "negative offset", target: "/products?pagination_type=offset&offset=-1"},
		{name: "non numeric limit", target: "/products?limit=ten"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(http.MethodGet, tt.target, "")

			_, err := BindPaginationRequest(c)
			assert.ErrorIs(t, err, queryengine.ErrInvalidPagination)
		})
	}
}

func Test_BindQueryParams(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/products/1?fields=id&include=category,supplier&filters[id]=1", "")

	params := BindQueryParams(c)

	assert.Equal(t, "id", params.Fields)
	assert.Equal(t, []string{"category", "supplier"}, params.Include)
	assert.Empty(t, params.OrderBy)
	assert.Equal(t, queryengine.Filters{"id": "1"}, params.Filters)
}

func Test_RespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "invalid field",
			err:    &queryengine.InvalidFieldError{Invalid: []string{"nmae"}, Valid: []string{"id", "name"}, Hint: "name"},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid filter",
			err:    &queryengine.InvalidFilterError{Key: "price__gt", Reason: "bad value"},
			status: http.StatusBadRequest,
		},
		{name: "invalid include", err: fmt.Errorf("%w: x", queryengine.ErrInvalidInclude), status: http.StatusBadRequest},
		{name: "invalid cursor", err: &queryengine.CursorError{Reason: "bad"}, status: http.StatusBadRequest},
		{name: "invalid pagination", err: queryengine.ErrInvalidPagination, status: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("%w: products", queryengine.ErrEntityNotFound), status: http.StatusNotFound},
		{name: "multiple", err: queryengine.ErrMultipleEntitiesFound, status: http.StatusConflict},
		{name: "other", err: errors.New("connection refused"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/", "")

			RespondError(c, tt.err)

			assert.Equal(t, tt.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func Test_RespondError_InvalidFieldDetail(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")

	RespondError(c, fmt.Errorf("wrapped: %w", &queryengine.InvalidFieldError{
		Invalid: []string{"nmae"},
		Valid:   []string{"id", "name"},
		Hint:    "name",
	}))

	var body struct {
		Error         string   `json:"error"`
		InvalidFields []string `json:"invalid_fields"`
		ValidFields   []string `json:"valid_fields"`
		Hint          string   `json:"hint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, []string{"nmae"}, body.InvalidFields)
	assert.Equal(t, []string{"id", "name"}, body.ValidFields)
	assert.Equal(t, "name", body.Hint)
	assert.Contains(t, body.Error, "Invalid fields specified: nmae")
}
