package sampler

import (
	"github.com/pkg/errors"
)

// AdaptInterval is the number of steps between two proposal adjustments
const AdaptInterval = 1000

// RunConfig holds the settings of a run. It is passed by value: a running
// sampler keeps its own copy.
type RunConfig struct {
	BurnIn                    int     `yaml:"burn_in"`                  // chain entries discarded, and length of the balancing scan
	TotalRealizations         int     `yaml:"total_realizations"`       // length of the main chain
	MaxInnerIterationsPerStep int     `yaml:"max_inner_iterations"`     // proposals tried before a step gives up
	ThinningStride            int     `yaml:"thinning_stride"`          // keep one sample in this many after burn-in
	InitialGridSize           int     `yaml:"initial_grid_size"`        // feasible prior draws searched for a start
	CoefficientOfVariation    float64 `yaml:"coefficient_of_variation"` // passed to Model.InitialProposal
}

// DefaultRunConfig returns the settings we use for production fits
func DefaultRunConfig() RunConfig {
	return RunConfig{
		BurnIn:                    10000,
		TotalRealizations:         510000,
		MaxInnerIterationsPerStep: 100000,
		ThinningStride:            50,
		InitialGridSize:           10000,
		CoefficientOfVariation:    0.1,
	}
}

// Validate returns an error wrapping ErrConfiguration for invalid settings
func (c RunConfig) Validate() error {
	if c.BurnIn < 0 {
		return errors.Wrapf(ErrConfiguration, "BurnIn must be >= 0, got %d", c.BurnIn)
	}
	if c.TotalRealizations <= c.BurnIn {
		return errors.Wrapf(ErrConfiguration, "TotalRealizations %d must exceed BurnIn %d", c.TotalRealizations, c.BurnIn)
	}
	if c.MaxInnerIterationsPerStep < 1 {
		return errors.Wrapf(ErrConfiguration, "MaxInnerIterationsPerStep must be > 0, got %d", c.MaxInnerIterationsPerStep)
	}
	if c.ThinningStride < 1 {
		return errors.Wrapf(ErrConfiguration, "ThinningStride must be >= 1, got %d", c.ThinningStride)
	}
	if c.TotalRealizations-c.BurnIn < c.ThinningStride {
		return errors.Wrapf(ErrConfiguration, "Stride %d leaves no retained samples", c.ThinningStride)
	}
	if c.InitialGridSize < 1 {
		return errors.Wrapf(ErrConfiguration, "InitialGridSize must be > 0, got %d", c.InitialGridSize)
	}
	if !(c.CoefficientOfVariation > 0) {
		return errors.Wrapf(ErrConfiguration, "CoefficientOfVariation must be > 0, got %v", c.CoefficientOfVariation)
	}
	return nil
}

// RetainedLength is the number of samples a converged run keeps
func (c RunConfig) RetainedLength() int {
	return (c.TotalRealizations - c.BurnIn) / c.ThinningStride
}
