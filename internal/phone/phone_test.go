package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"+972 50-123-4567": "972501234567",
		"050-123-4567":     "972501234567",
		"9720501234567":    "972501234567",
		"(212) 555-0100":   "2125550100",
		"  ":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}
