package dist

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/inference-sim/tam-sim/sim"
)

const (
	// psdTolerance is the most negative eigenvalue still treated as zero.
	psdTolerance = 1e-8
)

// diagonal jitter tried, in order, when a PSD matrix is singular and plain
// Cholesky factorization fails.
var choleskyJitter = []float64{1e-10, 1e-8, 1e-6}

// Coefficients is the configuration form of a correlation block: a nested
// mapping from parameter name to parameter name to coefficient. Each pair
// needs to appear only once; pairs not listed are uncorrelated.
type Coefficients map[string]map[string]float64

// CorrelationMatrix is a validated correlation matrix over named parameters
// together with its lower-triangular Cholesky factor L (corr = L*Lᵀ).
// Immutable after construction.
type CorrelationMatrix struct {
	names []string
	index map[string]int
	sym   *mat.SymDense
	lower *mat.TriDense
}

// NewCorrelationMatrix builds the matrix over names from coeffs and factorizes it.
// Every failure (unknown name, coefficient outside [-1, 1], diagonal other than 1,
// conflicting a/b and b/a entries, matrix not positive semi-definite) wraps
// sim.ErrInvalidCorrelationMatrix.
func NewCorrelationMatrix(names []string, coeffs Coefficients) (*CorrelationMatrix, error) {
	k := len(names)
	if k == 0 {
		return nil, fmt.Errorf("correlation matrix needs at least one parameter: %w", sim.ErrInvalidCorrelationMatrix)
	}
	index := make(map[string]int, k)
	for i, n := range names {
		if _, dup := index[n]; dup {
			return nil, fmt.Errorf("duplicate parameter %q: %w", n, sim.ErrInvalidCorrelationMatrix)
		}
		index[n] = i
	}

	data := make([]float64, k*k)
	set := make([]bool, k*k)
	for i := 0; i < k; i++ {
		data[i*k+i] = 1
	}

	// Walk in sorted order so error messages are reproducible.
	rows := make([]string, 0, len(coeffs))
	for a := range coeffs {
		rows = append(rows, a)
	}
	sort.Strings(rows)
	for _, a := range rows {
		ia, ok := index[a]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q (known: %v): %w", a, names, sim.ErrInvalidCorrelationMatrix)
		}
		cols := make([]string, 0, len(coeffs[a]))
		for b := range coeffs[a] {
			cols = append(cols, b)
		}
		sort.Strings(cols)
		for _, b := range cols {
			rho := coeffs[a][b]
			ib, ok := index[b]
			if !ok {
				return nil, fmt.Errorf("unknown parameter %q (known: %v): %w", b, names, sim.ErrInvalidCorrelationMatrix)
			}
			if math.IsNaN(rho) || rho < -1 || rho > 1 {
				return nil, fmt.Errorf("correlation %s/%s = %g outside [-1, 1]: %w", a, b, rho, sim.ErrInvalidCorrelationMatrix)
			}
			if ia == ib {
				if rho != 1 {
					return nil, fmt.Errorf("diagonal entry %s/%s must be 1, got %g: %w", a, b, rho, sim.ErrInvalidCorrelationMatrix)
				}
				continue
			}
			if set[ia*k+ib] && data[ia*k+ib] != rho {
				return nil, fmt.Errorf("conflicting correlation for %s/%s: %g vs %g: %w",
					a, b, data[ia*k+ib], rho, sim.ErrInvalidCorrelationMatrix)
			}
			data[ia*k+ib], data[ib*k+ia] = rho, rho
			set[ia*k+ib], set[ib*k+ia] = true, true
		}
	}

	sym := mat.NewSymDense(k, data)
	lower, err := choleskyLower(sym)
	if err != nil {
		return nil, err
	}
	return &CorrelationMatrix{
		names: append([]string(nil), names...),
		index: index,
		sym:   sym,
		lower: lower,
	}, nil
}

// choleskyLower returns L with sym = L*Lᵀ. Singular positive semi-definite
// matrices (e.g. a coefficient of exactly 1) are factorized after a tiny
// diagonal jitter; indefinite matrices are rejected.
func choleskyLower(sym *mat.SymDense) (*mat.TriDense, error) {
	k := sym.SymmetricDim()
	var chol mat.Cholesky
	if chol.Factorize(sym) {
		lower := mat.NewTriDense(k, mat.Lower, nil)
		chol.LTo(lower)
		return lower, nil
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return nil, fmt.Errorf("eigen decomposition failed: %w", sim.ErrInvalidCorrelationMatrix)
	}
	values := eig.Values(nil)
	minEig := values[0]
	for _, v := range values[1:] {
		minEig = math.Min(minEig, v)
	}
	if minEig < -psdTolerance {
		return nil, fmt.Errorf("matrix is not positive semi-definite (smallest eigenvalue %g): %w",
			minEig, sim.ErrInvalidCorrelationMatrix)
	}

	for _, eps := range choleskyJitter {
		jittered := mat.NewSymDense(k, nil)
		jittered.CopySym(sym)
		for i := 0; i < k; i++ {
			jittered.SetSym(i, i, jittered.At(i, i)+eps)
		}
		if chol.Factorize(jittered) {
			lower := mat.NewTriDense(k, mat.Lower, nil)
			chol.LTo(lower)
			return lower, nil
		}
	}
	return nil, fmt.Errorf("cholesky factorization failed for a semi-definite matrix: %w", sim.ErrInvalidCorrelationMatrix)
}

// Names returns the parameter order of the matrix.
func (c *CorrelationMatrix) Names() []string {
	return append([]string(nil), c.names...)
}

// Dim returns the number of parameters.
func (c *CorrelationMatrix) Dim() int {
	return len(c.names)
}

// At returns the coefficient between two parameters, and false if either is unknown.
func (c *CorrelationMatrix) At(a, b string) (float64, bool) {
	ia, okA := c.index[a]
	ib, okB := c.index[b]
	if !okA || !okB {
		return 0, false
	}
	return c.sym.At(ia, ib), true
}

// Correlate maps independent standard normals z (len Dim) to correlated
// standard normals L*z.
func (c *CorrelationMatrix) Correlate(z []float64) []float64 {
	var y mat.VecDense
	y.MulVec(c.lower, mat.NewVecDense(len(z), z))
	out := make([]float64, len(z))
	for i := range out {
		out[i] = y.AtVec(i)
	}
	return out
}
