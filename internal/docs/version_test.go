package docs

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion_RoundTrip(t *testing.T) {
	for a := 0; a <= 12; a += 3 {
		for b := 0; b <= 12; b += 4 {
			for c := 0; c <= 12; c += 5 {
				s := fmt.Sprintf("%d.%d.%d", a, b, c)
				v, err := ParseVersion(s)
				require.NoError(t, err, s)
				assert.Equal(t, Version{a, b, c}, v)
				assert.Equal(t, s, v.String())
			}
		}
	}
}

func TestParseVersion_BackFills(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"2", Version{2, 0, 0}},
		{"2.1", Version{2, 1, 0}},
		{" 3.4.5 ", Version{3, 4, 5}},
		{"10.0.12", Version{10, 0, 12}},
	}
	for _, tc := range tests {
		v, err := ParseVersion(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, v, tc.in)
	}
}

func TestParseVersion_Rejects(t *testing.T) {
	for _, in := range []string{"", "a.b.c", "1.2.3.4", "-1.0.0", "1..2", "1.x"} {
		_, err := ParseVersion(in)
		assert.Error(t, err, in)
	}
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"1.10.0", "1.9.9", 1},
		{"1.2.3", "1.2.4", -1},
		{"3.0.0", "2.99.99", 1},
	}
	for _, tc := range tests {
		got := MustParseVersion(tc.a).Compare(MustParseVersion(tc.b))
		assert.Equal(t, tc.want, got, "%s vs %s", tc.a, tc.b)
	}
}

func TestVersion_JSON(t *testing.T) {
	data, err := json.Marshal(Version{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, `"1.2.3"`, string(data))

	var v Version
	require.NoError(t, json.Unmarshal([]byte(`"4.5"`), &v))
	assert.Equal(t, Version{4, 5, 0}, v)

	assert.Error(t, json.Unmarshal([]byte(`7`), &v))
}
