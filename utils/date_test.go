package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateOnly(t *testing.T) {
	in := time.Date(2026, 3, 10, 23, 59, 59, 123, time.FixedZone("MMT", 6*3600+1800))
	got := DateOnly(in)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got, "normalized to the UTC day")
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)
	b := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	c := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}

func TestProfitRecognitionTime(t *testing.T) {
	cases := []struct {
		name       string
		activation time.Time
		want       time.Time
	}{
		{
			"plain day",
			time.Date(2026, 3, 10, 14, 22, 7, 0, time.UTC),
			time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC),
		},
		{
			"month boundary",
			time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC),
		},
		{
			"year boundary",
			time.Date(2026, 12, 31, 5, 0, 0, 0, time.UTC),
			time.Date(2027, 1, 1, 1, 0, 0, 0, time.UTC),
		},
		{
			"leap day",
			time.Date(2028, 2, 28, 10, 0, 0, 0, time.UTC),
			time.Date(2028, 2, 29, 1, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ProfitRecognitionTime(tc.activation))
		})
	}
}
