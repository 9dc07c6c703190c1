package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestCosineSimilarity_Errors(t *testing.T) {
	_, err := CosineSimilarity(nil, []float32{1})
	assert.Error(t, err)

	_, err = CosineSimilarity([]float32{1, 2}, []float32{1})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.25, -1.5, 3.75}
	got, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
