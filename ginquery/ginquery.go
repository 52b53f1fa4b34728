// Package ginquery binds queryengine requests from gin contexts and maps
// engine errors to HTTP responses.
package ginquery

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/Alp4ka/queryengine"
)

var _filterParam = regexp.MustCompile(`^filters\[([^\[\]]+)\]$`)

// BindPaginationRequest reads a pagination request from the query string on
// GET and from the JSON body otherwise.
//
//	GET /products?pagination_type=offset&page=2&limit=10&order_by=-price,id
//	    &fields=id,name&include=category&filters[status__in]=active,draft
func BindPaginationRequest(c *gin.Context) (queryengine.PaginationRequest, error) {
	var raw queryengine.RawPaginationRequest

	if c.Request.Method == http.MethodGet {
		if err := c.ShouldBindQuery(&raw); err != nil {
			return queryengine.PaginationRequest{}, fmt.Errorf("%w: %v", queryengine.ErrInvalidPagination, err)
		}
		raw.Filters = ParseFilters(c.Request.URL.Query())
	} else {
		if err := c.ShouldBindJSON(&raw); err != nil {
			return queryengine.PaginationRequest{}, fmt.Errorf("%w: %v", queryengine.ErrInvalidPagination, err)
		}
	}

	raw.OrderBy = splitList(raw.OrderBy)
	raw.Include = splitList(raw.Include)

	return raw.Decode()
}

// BindQueryParams reads fields, include, order_by and filters from the query
// string.
func BindQueryParams(c *gin.Context) queryengine.QueryParams {
	query := c.Request.URL.Query()

	return queryengine.QueryParams{
		Filters: ParseFilters(query),
		Fields:  query.Get("fields"),
		Include: splitList(query["include"]),
		OrderBy: splitList(query["order_by"]),
	}
}

// ParseFilters collects "filters[<key>]" parameters. Values of in, not_in and
// between keys are split on commas and always become lists. Other keys keep a
// single value as a string and repeated values as a list.
func ParseFilters(values url.Values) queryengine.Filters {
	filters := make(queryengine.Filters)

	for param, vals := range values {
		m := _filterParam.FindStringSubmatch(param)
		if m == nil || len(vals) == 0 {
			continue
		}

		key := m[1]
		switch {
		case isListKey(key):
			filters[key] = splitList(vals)
		case len(vals) == 1:
			filters[key] = vals[0]
		default:
			filters[key] = vals
		}
	}

	return filters
}

func isListKey(key string) bool {
	fk, err := queryengine.ParseFilterKey(key)
	if err != nil {
		return false
	}

	switch fk.Operator {
	case queryengine.FilterIn, queryengine.FilterNotIn, queryengine.FilterNotInAlt, queryengine.FilterBetween:
		return true
	default:
		return false
	}
}

// splitList flattens repeated and comma-separated values, dropping blanks.
func splitList(vals []string) []string {
	ret := lo.FlatMap(vals, func(v string, _ int) []string {
		return strings.Split(v, ",")
	})

	ret = lo.Map(ret, func(v string, _ int) string { return strings.TrimSpace(v) })

	return lo.Compact(ret)
}

// RespondError writes the JSON error response matching err.
func RespondError(c *gin.Context, err error) {
	var fieldErr *queryengine.InvalidFieldError

	switch {
	case errors.As(err, &fieldErr):
		body := gin.H{
			"error":          fieldErr.Error(),
			"invalid_fields": fieldErr.Invalid,
			"valid_fields":   fieldErr.Valid,
		}
		if fieldErr.Hint != "" {
			body["hint"] = fieldErr.Hint
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, queryengine.ErrInvalidFilter),
		errors.Is(err, queryengine.ErrInvalidInclude),
		errors.Is(err, queryengine.ErrInvalidCursor),
		errors.Is(err, queryengine.ErrInvalidPagination):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, queryengine.ErrEntityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, queryengine.ErrMultipleEntitiesFound):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
