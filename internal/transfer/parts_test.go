package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanParts(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		partSize int64
		want     int
		last     int64
	}{
		{"exact multiple", 64, 16, 4, 16},
		{"remainder", 100, 16, 7, 4},
		{"smaller than part", 5, 16, 1, 5},
		{"empty", 0, 16, 0, 0},
		{"bad part size", 10, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := planParts(tt.size, tt.partSize)
			require.Len(t, parts, tt.want)
			if tt.want == 0 {
				return
			}

			var next int64
			for i, p := range parts {
				assert.Equal(t, int32(i+1), p.Number)
				assert.Equal(t, next, p.Start, "parts must be contiguous")
				assert.Greater(t, p.End, p.Start)
				next = p.End
			}
			assert.Equal(t, tt.size, next)
			assert.Equal(t, tt.last, parts[len(parts)-1].Size())
		})
	}
}
