package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"ten digit national gets country prefix", "8111223344", "528111223344"},
		{"already has country code", "528111223344", "528111223344"},
		{"plus and separators stripped", "+52 (811) 122-3344", "528111223344"},
		{"foreign country code kept", "14155552671", "14155552671"},
		{"short number kept as-is", "12345", "12345"},
		{"empty invalid", "", ""},
		{"non digits invalid", "abc-def", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw, "52"))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, raw := range []string{"8111223344", "528111223344", "+52 811 122 3344", "14155552671"} {
		once := Normalize(raw, "52")
		assert.Equal(t, once, Normalize(once, "52"), "raw=%q", raw)
	}
}

func TestLast10(t *testing.T) {
	assert.Equal(t, "8111223344", Last10("528111223344"))
	assert.Equal(t, "8111223344", Last10("8111223344"))
	assert.Equal(t, "12345", Last10("123-45"))
	assert.Equal(t, "", Last10(""))
}
