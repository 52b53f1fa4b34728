package queryengine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEntityNotFound        = errors.New("entity not found")
	ErrMultipleEntitiesFound = errors.New("multiple entities found")
	ErrInvalidField          = errors.New("invalid field")
	ErrInvalidFilter         = errors.New("invalid filter")
	ErrInvalidInclude        = errors.New("invalid include")
	ErrInvalidCursor         = errors.New("invalid cursor")
	ErrInvalidPagination     = errors.New("invalid pagination request")
)

// InvalidFieldError reports requested fields that are not part of a schema.
// Valid carries the full list of accepted names for developer feedback.
type InvalidFieldError struct {
	Invalid []string
	Valid   []string
	// Hint is the closest valid name, when one could be computed.
	Hint string
}

func (e *InvalidFieldError) Error() string {
	msg := fmt.Sprintf(
		"Invalid fields specified: %s. Valid selectable fields are: %s",
		strings.Join(e.Invalid, ", "),
		strings.Join(e.Valid, ", "),
	)
	if e.Hint != "" {
		msg += fmt.Sprintf(". Closest: '%s'", e.Hint)
	}

	return msg
}

func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// InvalidFilterError reports a filter key that cannot be turned into a
// condition.
type InvalidFilterError struct {
	Key    string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter '%s': %s", e.Key, e.Reason)
}

func (e *InvalidFilterError) Is(target error) bool {
	return target == ErrInvalidFilter
}

// CursorError reports a cursor that cannot be decoded or does not match the
// requested sort. Callers may catch it to restart from the first page.
type CursorError struct {
	Reason string
	Err    error
}

func (e *CursorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid cursor: %s: %v", e.Reason, e.Err)
	}

	return "invalid cursor: " + e.Reason
}

func (e *CursorError) Unwrap() error {
	return e.Err
}

func (e *CursorError) Is(target error) bool {
	return target == ErrInvalidCursor
}
