package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PickHeight(t *testing.T) {
	t.Parallel()
	available := []int{1080, 720, 480, 360}

	tests := []struct {
		name      string
		available []int
		quality   string
		expected  int
		ok        bool
	}{
		{"ExactMatch", available, "480", 480, true},
		{"BetweenHeights", available, "600", 480, true},
		{"AboveAll", available, "2160", 1080, true},
		{"BelowAllFallsBackToTallest", available, "144", 1080, true},
		{"BestPicksTallest", available, "best", 1080, true},
		{"NothingAvailable", nil, "480", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			height, ok := pickHeight(tt.available, tt.quality)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, height)
		})
	}
}
