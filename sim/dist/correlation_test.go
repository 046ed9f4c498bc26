package dist

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/tam-sim/sim"
)

func TestNewCorrelationMatrix_SymmetricFromOneSidedPairs(t *testing.T) {
	// GIVEN a block listing each pair once
	c, err := NewCorrelationMatrix([]string{"a", "b", "c"}, Coefficients{
		"a": {"b": 0.3},
		"c": {"a": -0.2},
	})
	require.NoError(t, err)

	// THEN both orientations and the unit diagonal are populated
	for _, tc := range []struct {
		x, y string
		want float64
	}{
		{"a", "b", 0.3}, {"b", "a", 0.3},
		{"a", "c", -0.2}, {"c", "a", -0.2},
		{"b", "c", 0}, {"a", "a", 1},
	} {
		got, ok := c.At(tc.x, tc.y)
		require.True(t, ok)
		assert.Equal(t, tc.want, got, "%s/%s", tc.x, tc.y)
	}
	_, ok := c.At("a", "zzz")
	assert.False(t, ok)
	assert.Equal(t, 3, c.Dim())
	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
}

func TestNewCorrelationMatrix_Identity_CorrelateIsNoop(t *testing.T) {
	c, err := NewCorrelationMatrix([]string{"x", "y"}, nil)
	require.NoError(t, err)
	z := []float64{0.7, -1.3}
	y := c.Correlate(z)
	assert.InDeltaSlice(t, z, y, 1e-12)
}

func TestNewCorrelationMatrix_CholeskyReproducesMatrix(t *testing.T) {
	// GIVEN a 2x2 matrix with rho = 0.6, L = [[1, 0], [0.6, 0.8]]
	c, err := NewCorrelationMatrix([]string{"x", "y"}, Coefficients{"x": {"y": 0.6}})
	require.NoError(t, err)

	// WHEN unit vectors are pushed through L
	col0 := c.Correlate([]float64{1, 0})
	col1 := c.Correlate([]float64{0, 1})

	// THEN the columns of L are recovered
	assert.InDeltaSlice(t, []float64{1, 0.6}, col0, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0.8}, col1, 1e-12)
}

func TestNewCorrelationMatrix_SingularPSD_Accepted(t *testing.T) {
	// Perfect correlation is semi-definite but not definite.
	c, err := NewCorrelationMatrix([]string{"x", "y"}, Coefficients{"x": {"y": 1}})
	require.NoError(t, err)
	y := c.Correlate([]float64{1.5, -0.4})
	if math.Abs(y[0]-y[1]) > 1e-4 {
		t.Errorf("perfectly correlated outputs differ: %v", y)
	}
}

func TestNewCorrelationMatrix_Invalid(t *testing.T) {
	names := []string{"a", "b", "c"}
	tests := []struct {
		name   string
		names  []string
		coeffs Coefficients
	}{
		{"no parameters", nil, nil},
		{"duplicate names", []string{"a", "a"}, nil},
		{"unknown row", names, Coefficients{"zzz": {"a": 0.1}}},
		{"unknown column", names, Coefficients{"a": {"zzz": 0.1}}},
		{"above one", names, Coefficients{"a": {"b": 1.2}}},
		{"below minus one", names, Coefficients{"a": {"b": -1.01}}},
		{"NaN", names, Coefficients{"a": {"b": math.NaN()}}},
		{"diagonal not one", names, Coefficients{"a": {"a": 0.5}}},
		{"conflicting pair", names, Coefficients{"a": {"b": 0.2}, "b": {"a": 0.4}}},
		{"indefinite", names, Coefficients{"a": {"b": 0.9, "c": 0.9}, "b": {"c": -0.9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCorrelationMatrix(tt.names, tt.coeffs)
			if !errors.Is(err, sim.ErrInvalidCorrelationMatrix) {
				t.Errorf("expected ErrInvalidCorrelationMatrix, got %v", err)
			}
		})
	}
}

func TestNewCorrelationMatrix_ConsistentPairListedTwice_Accepted(t *testing.T) {
	_, err := NewCorrelationMatrix([]string{"a", "b"}, Coefficients{"a": {"b": 0.4}, "b": {"a": 0.4, "b": 1}})
	assert.NoError(t, err)
}
