package sampler

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/bayesmc/prior"
)

// Errors a run can fail with. Use errors.Is to test for them: they are
// wrapped with context on the way out.
var (
	// ErrConfiguration is returned before sampling starts for a bad RunConfig
	// or prior setup.
	ErrConfiguration = prior.ErrConfiguration

	// ErrNumerical is a covariance that is not positive definite or a density
	// that evaluated to NaN.
	ErrNumerical = errors.New("numerical failure")

	// ErrModelEvaluation means the model rejected a parameter vector.
	ErrModelEvaluation = errors.New("model evaluation failed")
)

// modelError keeps the model's own error while matching ErrModelEvaluation
type modelError struct {
	cause error
}

func (e *modelError) Error() string {
	return ErrModelEvaluation.Error() + ": " + e.cause.Error()
}

func (e *modelError) Is(target error) bool {
	return target == ErrModelEvaluation
}

func (e *modelError) Unwrap() error {
	return e.cause
}
