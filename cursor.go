package queryengine

import (
	"bytes"
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

var _encoder = base64.StdEncoding

// KeysetCursor is an opaque pagination token pointing at a row boundary. It
// holds one entry per sort field, in sort order. An empty cursor means the
// start of the dataset.
//
// Wire format: base64 of
//
//	{"fields":[{"direction":"asc","name":"created_datetime","type":"datetime","value":"..."}]}
//
// Keys are emitted in sorted order so equal cursors encode to equal strings.
type KeysetCursor struct {
	Fields []CursorField `json:"fields"`
}

// CursorField is a single (name, value, direction) entry of a cursor. Type
// tells the decoder how to restore Value.
type CursorField struct {
	Direction Direction `json:"direction"`
	Name      string    `json:"name"`
	Type      ValueType `json:"type,omitempty"`
	Value     any       `json:"value"`
}

func NewKeysetCursor(fields ...CursorField) *KeysetCursor {
	return &KeysetCursor{
		Fields: fields,
	}
}

// DecodeCursor parses a token produced by KeysetCursor.String. An empty token
// decodes to a nil cursor. Any failure is a *CursorError.
func DecodeCursor(token string) (*KeysetCursor, error) {
	if len(token) == 0 {
		return nil, nil
	}

	jsonData, err := _encoder.DecodeString(token)
	if err != nil {
		// Tolerate clients that re-encoded the token URL-safe.
		var urlErr error
		jsonData, urlErr = base64.URLEncoding.DecodeString(token)
		if urlErr != nil {
			return nil, &CursorError{Reason: "failed to decode base64 encoded cursor", Err: err}
		}
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()

	var c KeysetCursor
	if err = dec.Decode(&c); err != nil {
		return nil, &CursorError{Reason: "failed to unmarshal json encoded cursor", Err: err}
	}

	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Name == "" {
			return nil, &CursorError{Reason: fmt.Sprintf("cursor field %d has no name", i)}
		}
		if !f.Direction.Valid() {
			return nil, &CursorError{Reason: fmt.Sprintf("cursor field '%s' has no direction", f.Name)}
		}

		f.Value, f.Type, err = decodeCursorValue(f.Value, f.Type)
		if err != nil {
			return nil, &CursorError{Reason: fmt.Sprintf("cursor field '%s'", f.Name), Err: err}
		}
	}

	return &c, nil
}

// String implements fmt.Stringer.
func (c *KeysetCursor) String() string {
	if c.IsEmpty() {
		return ""
	}

	jTok, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Errorf("cannot marshal cursor value: %w", err))
	}

	return _encoder.EncodeToString(jTok)
}

func (c *KeysetCursor) IsEmpty() bool {
	return c == nil || len(c.Fields) == 0
}

var _ fmt.Stringer = (*KeysetCursor)(nil)

// encodeCursorValue normalizes a row value into a JSON friendly form. UUIDs
// and times are stringified. When t is empty the type is derived from the
// value.
func encodeCursorValue(v any, t ValueType) (any, ValueType) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, t
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, t
	}
	v = rv.Interface()

	switch vt := v.(type) {
	case time.Time:
		return vt.UTC().Format(time.RFC3339Nano), ValueTypeTime
	case uuid.UUID:
		return vt.String(), ValueTypeUUID
	case []byte:
		return string(vt), typeOr(t, ValueTypeString)
	case driver.Valuer:
		dv, err := vt.Value()
		if err != nil || dv == nil {
			return nil, t
		}
		if _, nested := dv.(driver.Valuer); nested {
			return dv, t
		}
		return encodeCursorValue(dv, t)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), typeOr(t, ValueTypeBool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), typeOr(t, ValueTypeInt)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), typeOr(t, ValueTypeInt)
	case reflect.Float32, reflect.Float64:
		return rv.Float(), typeOr(t, ValueTypeFloat)
	case reflect.String:
		return rv.String(), typeOr(t, ValueTypeString)
	default:
		return v, t
	}
}

func typeOr(t, fallback ValueType) ValueType {
	if t == "" {
		return fallback
	}

	return t
}

// decodeCursorValue restores a JSON decoded value. Typed values are parsed
// strictly. Untyped values are sniffed: UUID, then datetime, else the raw
// string.
func decodeCursorValue(raw any, t ValueType) (any, ValueType, error) {
	if raw == nil {
		return nil, t, nil
	}

	switch t {
	case "":
		return sniffCursorValue(raw)
	case ValueTypeUUID:
		s, ok := raw.(string)
		if !ok {
			return nil, t, fmt.Errorf("uuid value must be a string, got %T", raw)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, t, err
		}
		return id, t, nil
	case ValueTypeTime:
		s, ok := raw.(string)
		if !ok {
			return nil, t, fmt.Errorf("datetime value must be a string, got %T", raw)
		}
		ts, err := parseTime(s)
		if err != nil {
			return nil, t, err
		}
		return ts, t, nil
	case ValueTypeInt:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, t, fmt.Errorf("int value must be a number, got %T", raw)
		}
		i, err := n.Int64()
		return i, t, err
	case ValueTypeFloat:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, t, fmt.Errorf("float value must be a number, got %T", raw)
		}
		f, err := n.Float64()
		return f, t, err
	case ValueTypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, t, fmt.Errorf("bool value must be a boolean, got %T", raw)
		}
		return b, t, nil
	case ValueTypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, t, fmt.Errorf("string value must be a string, got %T", raw)
		}
		return s, t, nil
	default:
		return nil, t, fmt.Errorf("unknown value type '%s'", t)
	}
}

func sniffCursorValue(raw any) (any, ValueType, error) {
	switch vt := raw.(type) {
	case string:
		if len(vt) == 36 {
			if id, err := uuid.Parse(vt); err == nil {
				return id, ValueTypeUUID, nil
			}
		}
		if ts, err := parseTime(vt); err == nil {
			return ts, ValueTypeTime, nil
		}
		return vt, ValueTypeString, nil
	case json.Number:
		if i, err := vt.Int64(); err == nil {
			return i, ValueTypeInt, nil
		}
		f, err := vt.Float64()
		return f, ValueTypeFloat, err
	case bool:
		return vt, ValueTypeBool, nil
	default:
		return nil, "", fmt.Errorf("unsupported cursor value %T", raw)
	}
}

var _timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range _timeLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return time.Time{}, firstErr
}
