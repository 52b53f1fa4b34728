// Package queryengine runs filtered, projected and paginated queries over
// GORM models.
//
// Overview
//
// An Engine is built from a *gorm.DB, a Schema describing the model's fields
// and relations, and Getters that read sort values back from fetched rows.
// Requests carry:
//   - Filters: "field__operator" keys combined with AND, with "__or__" and
//     "__not__" markers inside a key and relation fields as "relation.field".
//   - Fields: a comma separated projection, "path as alias" is accepted.
//   - Include: relation paths to eager load, e.g. "category.parent".
//   - OrderBy: "field", "-field" or "field desc".
//
// Pagination strategies:
//   - KeysetStrategy: opaque cursors built from the last (or first) row of a
//     page. Stable under inserts and requires a unique sort; the schema's
//     unique field is appended when the sort is not unique.
//   - OffsetStrategy: LIMIT/OFFSET with optional 1-based page numbers.
//
// Total counts are computed by a separate statement and may be served from a
// CountCache, so they are only weakly consistent with the page items.
package queryengine
