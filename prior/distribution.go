package prior

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/bayesmc/rand"
)

// Distribution is the contract a prior must satisfy to be registered. A
// distribution of dimension n covers exactly n indices of the parameter
// vector, in the order the indices were given at registration. The registry
// tells distributions apart by identity, so implementations should be
// pointers.
type Distribution interface {
	Dim() int
	LogProb(x []float64) float64 // -Inf where the density is zero
	Rand(dst []float64) []float64
}

// VarianceSetter is a Distribution whose variance can be replaced by a
// realized value of another prior: the distribution of random effects.
type VarianceSetter interface {
	Distribution
	SetVariance(v float64) error
}

// univariate is the subset of a gonum distuv distribution we need
type univariate interface {
	LogProb(x float64) float64
	Rand() float64
}

// iid is n independent draws of one univariate distribution
type iid struct {
	n    int
	dist univariate
}

func newIID(n int, dist univariate) (*iid, error) {
	if n < 1 {
		return nil, errors.Wrapf(ErrConfiguration, "Invalid dimension %d", n)
	}
	return &iid{n: n, dist: dist}, nil
}

func (d *iid) Dim() int {
	return d.n
}

func (d *iid) LogProb(x []float64) float64 {
	lp := 0.0
	for _, v := range x {
		lp += d.dist.LogProb(v)
		if math.IsInf(lp, -1) {
			return lp
		}
	}
	return lp
}

func (d *iid) Rand(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, d.n)
	}
	for i := range dst {
		dst[i] = d.dist.Rand()
	}
	return dst
}

// Normal is n independent normal variables sharing a mean and variance. It is
// the usual distribution of random effects, so its variance can be replaced.
type Normal struct {
	*iid
	norm *distuv.Normal
}

// NewNormal creates a Normal prior of dimension n. Note that variance, not
// standard deviation, is specified.
func NewNormal(gen *rand.Generator, n int, mean float64, variance float64) (*Normal, error) {
	if variance <= 0 || math.IsNaN(variance) {
		return nil, errors.Wrapf(ErrConfiguration, "Normal prior needs variance > 0, got %v", variance)
	}
	norm := &distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance), Src: gen}
	base, err := newIID(n, norm)
	if err != nil {
		return nil, err
	}
	return &Normal{iid: base, norm: norm}, nil
}

// SetVariance implements VarianceSetter
func (d *Normal) SetVariance(v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Errorf("Invalid variance %v for normal prior", v)
	}
	d.norm.Sigma = math.Sqrt(v)
	return nil
}

// Variance currently in use
func (d *Normal) Variance() float64 {
	return d.norm.Sigma * d.norm.Sigma
}

// NewUniform creates n independent uniform priors on [min, max]
func NewUniform(gen *rand.Generator, n int, min float64, max float64) (Distribution, error) {
	if max <= min {
		return nil, errors.Wrapf(ErrConfiguration, "Uniform prior needs min < max, got [%v, %v]", min, max)
	}
	return newIID(n, distuv.Uniform{Min: min, Max: max, Src: gen})
}

// NewGamma creates n independent gamma priors with shape alpha and rate beta
func NewGamma(gen *rand.Generator, n int, alpha float64, beta float64) (Distribution, error) {
	if alpha <= 0 || beta <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "Gamma prior needs alpha, beta > 0, got %v, %v", alpha, beta)
	}
	return newIID(n, distuv.Gamma{Alpha: alpha, Beta: beta, Src: gen})
}

// NewInverseGamma creates n independent inverse gamma priors, the
// conjugate choice for a variance
func NewInverseGamma(gen *rand.Generator, n int, alpha float64, beta float64) (Distribution, error) {
	if alpha <= 0 || beta <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "InverseGamma prior needs alpha, beta > 0, got %v, %v", alpha, beta)
	}
	return newIID(n, distuv.InverseGamma{Alpha: alpha, Beta: beta, Src: gen})
}

// NewLogNormal creates n independent log-normal priors
func NewLogNormal(gen *rand.Generator, n int, mu float64, sigma float64) (Distribution, error) {
	if sigma <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "LogNormal prior needs sigma > 0, got %v", sigma)
	}
	return newIID(n, distuv.LogNormal{Mu: mu, Sigma: sigma, Src: gen})
}

// MultivariateNormal is a correlated normal prior over a block of parameters
type MultivariateNormal struct {
	*distmv.Normal
}

// NewMultivariateNormal fails if sigma is not positive definite
func NewMultivariateNormal(gen *rand.Generator, mean []float64, sigma mat.Symmetric) (*MultivariateNormal, error) {
	if len(mean) != sigma.SymmetricDim() {
		return nil, errors.Wrapf(ErrConfiguration, "Mean has %d entries but sigma is %dx%d", len(mean), sigma.SymmetricDim(), sigma.SymmetricDim())
	}
	norm, ok := distmv.NewNormal(mean, sigma, gen)
	if !ok {
		return nil, errors.Wrap(ErrConfiguration, "Multivariate normal prior covariance is not positive definite")
	}
	return &MultivariateNormal{Normal: norm}, nil
}
