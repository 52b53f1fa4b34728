package queryengine

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_KeysetCursor_RoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 30, 15, 123456789, time.UTC)
	id := uuid.MustParse("5b6f2a63-6c1e-4e2e-9d0b-0f4e4a1c2b3d")

	cursor := NewKeysetCursor(
		CursorField{Name: "created_datetime", Value: created, Type: ValueTypeTime, Direction: DirectionASC},
		CursorField{Name: "price", Value: 12.5, Type: ValueTypeFloat, Direction: DirectionDESC},
		CursorField{Name: "stock", Value: int64(42), Type: ValueTypeInt, Direction: DirectionASC},
		CursorField{Name: "active", Value: true, Type: ValueTypeBool, Direction: DirectionASC},
		CursorField{Name: "name", Value: "Widget 01", Type: ValueTypeString, Direction: DirectionASC},
		CursorField{Name: "id", Value: id, Type: ValueTypeUUID, Direction: DirectionASC},
	)

	token := cursor.String()
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Len(t, decoded.Fields, 6)

	assert.True(t, created.Equal(decoded.Fields[0].Value.(time.Time)))
	assert.Equal(t, 12.5, decoded.Fields[1].Value)
	assert.Equal(t, DirectionDESC, decoded.Fields[1].Direction)
	assert.Equal(t, int64(42), decoded.Fields[2].Value)
	assert.Equal(t, true, decoded.Fields[3].Value)
	assert.Equal(t, "Widget 01", decoded.Fields[4].Value)
	assert.Equal(t, id, decoded.Fields[5].Value)

	assert.Equal(t, token, decoded.String(), "encoding must be stable")
}

func Test_KeysetCursor_WireFormat(t *testing.T) {
	cursor := NewKeysetCursor(CursorField{Name: "id", Value: int64(7), Type: ValueTypeInt, Direction: DirectionDESC})

	raw, err := base64.StdEncoding.DecodeString(cursor.String())
	require.NoError(t, err)

	assert.JSONEq(t, `{"fields":[{"direction":"desc","name":"id","type":"int","value":7}]}`, string(raw))
}

func Test_KeysetCursor_Empty(t *testing.T) {
	assert.True(t, (*KeysetCursor)(nil).IsEmpty())
	assert.True(t, NewKeysetCursor().IsEmpty())
	assert.Equal(t, "", NewKeysetCursor().String())

	c, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func Test_DecodeCursor_UntypedValues(t *testing.T) {
	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name     string
		json     string
		want     any
		wantType ValueType
	}{
		{
			name:     "uuid string",
			json:     `{"fields":[{"direction":"asc","name":"id","value":"5b6f2a63-6c1e-4e2e-9d0b-0f4e4a1c2b3d"}]}`,
			want:     uuid.MustParse("5b6f2a63-6c1e-4e2e-9d0b-0f4e4a1c2b3d"),
			wantType: ValueTypeUUID,
		},
		{
			name:     "datetime string",
			json:     `{"fields":[{"direction":"asc","name":"created","value":"2024-01-02T03:04:05Z"}]}`,
			want:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			wantType: ValueTypeTime,
		},
		{
			name:     "plain string",
			json:     `{"fields":[{"direction":"asc","name":"name","value":"bob"}]}`,
			want:     "bob",
			wantType: ValueTypeString,
		},
		{
			name:     "integer number",
			json:     `{"fields":[{"direction":"asc","name":"id","value":12}]}`,
			want:     int64(12),
			wantType: ValueTypeInt,
		},
		{
			name:     "float number",
			json:     `{"fields":[{"direction":"asc","name":"price","value":1.25}]}`,
			want:     1.25,
			wantType: ValueTypeFloat,
		},
		{
			name: "null value",
			json: `{"fields":[{"direction":"asc","name":"deleted_at","value":null}]}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeCursor(encode(tt.json))
			require.NoError(t, err)
			require.Len(t, c.Fields, 1)

			if ts, ok := tt.want.(time.Time); ok {
				assert.True(t, ts.Equal(c.Fields[0].Value.(time.Time)))
			} else {
				assert.Equal(t, tt.want, c.Fields[0].Value)
			}
			assert.Equal(t, tt.wantType, c.Fields[0].Type)
		})
	}
}

func Test_DecodeCursor_URLSafe(t *testing.T) {
	token := base64.URLEncoding.EncodeToString([]byte(`{"fields":[{"direction":"asc","name":"name","value":"??>"}]}`))

	c, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "??>", c.Fields[0].Value)
}

func Test_DecodeCursor_Errors(t *testing.T) {
	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "%%%"},
		{"not json", encode("fields")},
		{"field without name", encode(`{"fields":[{"direction":"asc","value":1}]}`)},
		{"field without direction", encode(`{"fields":[{"name":"id","value":1}]}`)},
		{"invalid direction", encode(`{"fields":[{"direction":"up","name":"id","value":1}]}`)},
		{"typed int is a string", encode(`{"fields":[{"direction":"asc","name":"id","type":"int","value":"1"}]}`)},
		{"typed uuid is malformed", encode(`{"fields":[{"direction":"asc","name":"id","type":"uuid","value":"nope"}]}`)},
		{"typed datetime is malformed", encode(`{"fields":[{"direction":"asc","name":"c","type":"datetime","value":"yesterday"}]}`)},
		{"unknown type", encode(`{"fields":[{"direction":"asc","name":"id","type":"blob","value":"x"}]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeCursor(tt.token)

			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidCursor)

			var cursorErr *CursorError
			assert.ErrorAs(t, err, &cursorErr)
		})
	}
}

func Test_encodeCursorValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	id := uuid.New()
	n := 5

	tests := []struct {
		name     string
		in       any
		hint     ValueType
		want     any
		wantType ValueType
	}{
		{"time is normalized to UTC", ts, "", "2024-01-02T02:04:05Z", ValueTypeTime},
		{"uuid", id, "", id.String(), ValueTypeUUID},
		{"pointer is dereferenced", &n, "", int64(5), ValueTypeInt},
		{"nil pointer", (*int)(nil), ValueTypeInt, nil, ValueTypeInt},
		{"unsigned", uint(9), "", uint64(9), ValueTypeInt},
		{"bytes become a string", []byte("abc"), "", "abc", ValueTypeString},
		{"hint wins for strings", "x", ValueTypeString, "x", ValueTypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotType := encodeCursorValue(tt.in, tt.hint)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantType, gotType)
		})
	}
}
