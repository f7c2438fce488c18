package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear(t *testing.T) {
	tests := []struct {
		name     string
		lo, hi   float64
		v        float64
		expected float64
	}{
		{"at min", 0, 100, 0, 1},
		{"at max", 0, 100, 100, 10},
		{"midpoint", 0, 100, 50, 5.5},
		{"below range clamps", 0, 100, -20, 1},
		{"above range clamps", 0, 100, 500, 10},
		{"rounded", 0, 3, 1, 4},
		{"two decimals", 0, 7, 1, 2.29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Linear(tt.lo, tt.hi, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInverse(t *testing.T) {
	got, err := Inverse(1, 25, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = Inverse(1, 25, 25)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = InverseZeroBased(500, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = InverseZeroBased(500, 10000)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestZeroBased(t *testing.T) {
	got, err := ZeroBased(8000, 5000)
	require.NoError(t, err)
	assert.Equal(t, 6.63, got)

	got, err = ZeroBased(8000, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestEmptyRange(t *testing.T) {
	_, err := Linear(5, 5, 1)
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = Inverse(10, 1, 1)
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = ZeroBased(0, 1)
	assert.ErrorIs(t, err, ErrEmptyRange)

	assert.Panics(t, func() { MustScale(3, 2) })
}

func TestLinearAndInverseAreMirrored(t *testing.T) {
	s := MustScale(1, 25)
	for v := 1.0; v <= 25; v++ {
		assert.InDelta(t, 11, s.Linear(v)+s.Inverse(v), 0.011, "v=%v", v)
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		weights  []float64
		values   []float64
		expected float64
	}{
		{"all floor", []float64{4, 3, 5, 2, 1}, []float64{1, 1, 1, 1, 1}, 1},
		{"all ceiling", []float64{4, 3, 5, 2, 1}, []float64{10, 10, 10, 10, 10}, 10},
		{"single weight", []float64{1}, []float64{7}, 7},
		{"mixed", []float64{10, 1}, []float64{10, 1}, 9.18},
		{"extra values ignored", []float64{1, 1}, []float64{10, 10, 1}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tt.weights, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAggregateScaleInvariance(t *testing.T) {
	values := []float64{3.2, 8.1, 5.5}
	a, err := Aggregate([]float64{4, 3, 3}, values)
	require.NoError(t, err)
	b, err := Aggregate([]float64{40, 30, 30}, values)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAggregateInvalidWeights(t *testing.T) {
	_, err := Aggregate(nil, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = Aggregate([]float64{0, 0}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = Aggregate([]float64{-1, 3}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(-3))
	assert.Equal(t, 10.0, Clamp(12))
	assert.Equal(t, 4.5, Clamp(4.5))
}
