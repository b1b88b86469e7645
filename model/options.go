package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/bayesmc/prior"
	"github.com/CraigKelly/bayesmc/rand"
	"github.com/CraigKelly/bayesmc/sampler"
)

// PriorOptions are the hyper-parameters of the priors our models register:
// normal priors on coefficients and inverse gamma priors on variances.
type PriorOptions struct {
	CoefficientMean     float64 `yaml:"coefficient_mean"`
	CoefficientVariance float64 `yaml:"coefficient_variance"`
	VarianceShape       float64 `yaml:"variance_shape"`
	VarianceScale       float64 `yaml:"variance_scale"`
}

// DefaultPriorOptions are weakly informative for data on a unit scale
func DefaultPriorOptions() PriorOptions {
	return PriorOptions{
		CoefficientMean:     0,
		CoefficientVariance: 100,
		VarianceShape:       2,
		VarianceScale:       1,
	}
}

// Fitted is a sampler.Model that can also build its own priors
type Fitted interface {
	sampler.Model
	Priors(gen *rand.Generator, opts PriorOptions) (*prior.Registry, error)
	Dim() int
	Names() []string
}

// New returns the named model for the dataset: "normal" (the response
// only, with sigma taken from the data), "linear" or "mixed".
func New(name string, ds *Dataset) (Fitted, error) {
	switch name {
	case "normal":
		_, variance := stat.MeanVariance(ds.Y, nil)
		return NewNormalModel(ds.Y, math.Sqrt(variance))
	case "linear":
		return NewLinearModel(ds)
	case "mixed":
		return NewRandomInterceptModel(ds)
	}
	return nil, errors.Errorf("Unknown model %s", name)
}
