package sim

import "errors"

// Error taxonomy shared by every sub-package. Callers match with errors.Is;
// producers wrap with fmt.Errorf("...: %w", ErrX) to add context.
var (
	// ErrInvalidParameter reports bad distribution parameters (min >= max, std <= 0, ...).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnsupportedDistribution reports an unknown distribution kind.
	ErrUnsupportedDistribution = errors.New("unsupported distribution")

	// ErrInvalidCorrelationMatrix reports a correlation block that is not a valid
	// correlation matrix: wrong shape, coefficient outside [-1, 1], asymmetric,
	// or not positive semi-definite.
	ErrInvalidCorrelationMatrix = errors.New("invalid correlation matrix")

	// ErrInvalidConfiguration reports run-level configuration problems such as a
	// trial count below 1 or a missing required parameter.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidInput reports evaluation input that would produce a meaningless
	// number: division by zero, negative bandwidth or population.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyResults reports aggregation over zero trials.
	ErrEmptyResults = errors.New("empty results")
)
