package grid_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/folio/internal/grid"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"plain", "plain"},
		{true, "true"},
		{42, "42"},
		{int64(-7), "-7"},
		{1.5, "1.5"},
		{120000.0, "120000"},
		{json.Number("3.25"), "3.25"},
		{[]string{"a", "b"}, "a, b"},
		{[]any{"go", 1}, "go, 1"},
		{map[string]any{"name": "Acme"}, `{"name":"Acme"}`},
		{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02T03:04:05Z"},
		{time.Time{}, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, grid.Stringify(tt.in), "Stringify(%#v)", tt.in)
	}
}

func TestStrings(t *testing.T) {
	assert.Nil(t, grid.Strings(nil))
	assert.Nil(t, grid.Strings(""))
	assert.Equal(t, []string{"x"}, grid.Strings("x"))
	assert.Equal(t, []string{"a", "b"}, grid.Strings([]any{"a", "b"}))
	assert.Equal(t, []string{"false"}, grid.Strings(false))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{12, 12, true},
		{2.5, 2.5, true},
		{json.Number("10"), 10, true},
		{"1,234.50", 1234.5, true},
		{"$95,000", 95000, true},
		{"(250)", -250, true},
		{"-3", -3, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}

	for _, tt := range tests {
		got, ok := grid.ParseNumber(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseNumber(%#v) ok", tt.in)
		assert.Equal(t, tt.want, got, "ParseNumber(%#v)", tt.in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []any{"2024-03-01", "2024/03/01", "3/1/2024", "Mar 1, 2024", want} {
		got, ok := grid.ParseDate(in)
		assert.True(t, ok, "ParseDate(%#v)", in)
		assert.True(t, want.Equal(got), "ParseDate(%#v) = %v", in, got)
	}

	for _, in := range []any{"", "not a date", time.Time{}, 20240301, nil} {
		_, ok := grid.ParseDate(in)
		assert.False(t, ok, "ParseDate(%#v)", in)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in     any
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{"Yes", true, true},
		{"n", false, true},
		{"0", false, true},
		{1, true, true},
		{0.0, false, true},
		{"maybe", false, false},
		{nil, false, false},
	}

	for _, tt := range tests {
		got, ok := grid.ParseBool(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseBool(%#v) ok", tt.in)
		assert.Equal(t, tt.want, got, "ParseBool(%#v)", tt.in)
	}
}
