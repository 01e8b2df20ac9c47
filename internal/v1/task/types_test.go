package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero defaults to minimum", 0, 1},
		{"below range clamps up", -3, 1},
		{"lower bound unchanged", 1, 1},
		{"mid range unchanged", 5, 5},
		{"upper bound unchanged", 10, 10},
		{"above range clamps down", 11, 10},
		{"far above range clamps down", 100, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Data: "x", Complexity: tt.in}
			req.Normalize()
			assert.Equal(t, tt.want, req.Complexity)
		})
	}
}

func TestProcessingDuration(t *testing.T) {
	tests := []struct {
		complexity int
		want       time.Duration
	}{
		{1, 6000 * time.Millisecond},
		{2, 12000 * time.Millisecond},
		{5, 30000 * time.Millisecond},
		{10, 60000 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ProcessingDuration(tt.complexity), "complexity %d", tt.complexity)
	}
}
