package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCatalog(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantItems int
		wantTotal int
	}{
		{name: "bare array", raw: `[{"id":1},{"id":2},{"id":3}]`, wantItems: 3, wantTotal: 3},
		{name: "data with total", raw: `{"data":[{"id":1},{"id":2}],"total":50}`, wantItems: 2, wantTotal: 50},
		{name: "items with count", raw: `{"items":[{"id":1}],"count":7}`, wantItems: 1, wantTotal: 7},
		{name: "results with totalCount", raw: `{"results":[{"id":1}],"totalCount":"12"}`, wantItems: 1, wantTotal: 12},
		{name: "envelope without total", raw: `{"data":[{"id":1},{"id":2}]}`, wantItems: 2, wantTotal: 2},
		{name: "empty array", raw: `[]`, wantItems: 0, wantTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCatalog([]byte(tt.raw))
			require.NoError(t, err)
			assert.Len(t, got.Items, tt.wantItems)
			assert.Equal(t, tt.wantTotal, got.Total)
		})
	}
}

func TestNormalizeCatalog_Unrecognized(t *testing.T) {
	for _, raw := range []string{`{"rows":[]}`, `"text"`, `42`} {
		_, err := NormalizeCatalog([]byte(raw))
		assert.True(t, errors.Is(err, ErrUnrecognizedEnvelope), raw)
	}
	_, err := NormalizeCatalog([]byte(`{broken`))
	assert.Error(t, err)
}

func TestParseTotal(t *testing.T) {
	cases := map[string]int{
		`17`:                       17,
		`{"count":5}`:              5,
		`{"data":{"total":9}}`:     9,
		`[{"id":1},{"id":2}]`:      2,
		`{"items":[],"total":300}`: 300,
	}
	for raw, want := range cases {
		got, err := ParseTotal([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestUnwrapValue(t *testing.T) {
	obj, err := UnwrapValue(map[string]any{"data": map[string]any{"_id": "x", "name": "A"}})
	require.NoError(t, err)
	assert.Equal(t, "x", obj["_id"])

	obj, err = UnwrapValue(map[string]any{"id": "y", "data": map[string]any{"nested": true}})
	require.NoError(t, err)
	assert.Equal(t, "y", obj["id"])

	obj, err = UnwrapValue([]any{map[string]any{"id": "z"}})
	require.NoError(t, err)
	assert.Equal(t, "z", obj["id"])

	_, err = UnwrapValue([]any{1.0, 2.0})
	assert.True(t, errors.Is(err, ErrUnrecognizedEnvelope))
}

func TestDictionaryAdapter_Formats(t *testing.T) {
	a := NewDictionaryAdapter()

	tests := []struct {
		name     string
		raw      string
		format   Format
		hint     string
		key      string
		wantIDs  []string
		wantName string
	}{
		{
			name:     "nested map of arrays",
			raw:      `{"data":{"class":[{"id":1,"name":"комфорт"},{"id":2,"title":"бизнес"}]}}`,
			format:   FormatNested,
			key:      "class",
			wantIDs:  []string{"1", "2"},
			wantName: "Комфорт",
		},
		{
			name:     "flat array under data",
			raw:      `{"data":["  стандарт ", "премиум"]}`,
			format:   FormatFlat,
			hint:     "finishing",
			key:      "finishing",
			wantIDs:  []string{"  стандарт ", "премиум"},
			wantName: "Стандарт",
		},
		{
			name:     "single object with options",
			raw:      `{"name":"land_status","options":[{"value":"izhs","label":"ИЖС"}]}`,
			format:   FormatSingle,
			key:      "land_status",
			wantIDs:  []string{"izhs"},
			wantName: "ИЖС",
		},
		{
			name:     "filters map",
			raw:      `{"filters":{"district":{"values":[{"code":"c","label":"центральный"}]}}}`,
			format:   FormatFilters,
			key:      "district",
			wantIDs:  []string{"c"},
			wantName: "Центральный",
		},
	}

	for _, tt := range tests {
		for _, format := range []Format{tt.format, FormatAuto} {
			t.Run(tt.name+"/"+string(format), func(t *testing.T) {
				got, err := a.Normalize([]byte(tt.raw), format, tt.hint)
				require.NoError(t, err)
				dict, ok := got[tt.key]
				require.True(t, ok, "missing key %q in %v", tt.key, Keys(got))
				assert.Equal(t, tt.key, dict.Key)

				ids := make([]string, len(dict.Items))
				for i, it := range dict.Items {
					ids[i] = it.ID
				}
				assert.Equal(t, tt.wantIDs, ids)
				assert.Equal(t, tt.wantName, dict.Items[0].Name)
			})
		}
	}
}

func TestDictionaryAdapter_FlatGrouping(t *testing.T) {
	raw := `[{"id":1,"name":"наземная","type":"parking_type"},{"id":2,"name":"подземная","type":"parking_type"},{"id":3,"name":"-1"}]`
	got, err := NewDictionaryAdapter().Normalize([]byte(raw), FormatFlat, "level")
	require.NoError(t, err)
	assert.Equal(t, []string{"level", "parking_type"}, Keys(got))
	assert.Len(t, got["parking_type"].Items, 2)
	assert.Equal(t, "Подземная", got["parking_type"].Items[1].Name)
}

func TestDictionaryAdapter_SkipsEmptyItems(t *testing.T) {
	got, err := NewDictionaryAdapter().Normalize([]byte(`{"rooms":["", {"foo":1}, 2]}`), FormatNested, "")
	require.NoError(t, err)
	require.Len(t, got["rooms"].Items, 1)
	assert.Equal(t, Item{ID: "2", Name: "2"}, got["rooms"].Items[0])
}

func TestDictionaryAdapter_Errors(t *testing.T) {
	a := NewDictionaryAdapter()
	_, err := a.Normalize([]byte(`"nope"`), FormatAuto, "")
	assert.True(t, errors.Is(err, ErrUnrecognizedEnvelope))

	_, err = a.Normalize([]byte(`{"name":"x"}`), FormatSingle, "")
	assert.True(t, errors.Is(err, ErrUnrecognizedEnvelope))
}
