package model

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/bayesmc/prior"
	"github.com/CraigKelly/bayesmc/rand"
	"github.com/CraigKelly/bayesmc/sampler"
)

// LinearModel is Gaussian linear regression: theta = [beta_0 .. beta_k,
// sigma2] where beta_0 is the intercept and sigma2 the residual variance.
type LinearModel struct {
	Data *Dataset
	fit  *olsFit
}

// NewLinearModel fits OLS to the dataset for the initial proposal
func NewLinearModel(ds *Dataset) (*LinearModel, error) {
	if ds == nil {
		return nil, errors.New("Linear model needs a dataset")
	}
	fit, err := ols(ds.X, ds.Y)
	if err != nil {
		return nil, errors.Wrapf(err, "Linear model for %s", ds.Name)
	}
	return &LinearModel{Data: ds, fit: fit}, nil
}

// Dim is the number of parameters
func (m *LinearModel) Dim() int {
	return m.Data.Coefficients() + 1
}

// Names of the parameters
func (m *LinearModel) Names() []string {
	return append(coefficientNames(m.Data.Coefficients()), "sigma2")
}

func coefficientNames(p int) []string {
	names := make([]string, p)
	for i := range names {
		names[i] = fmt.Sprintf("beta%d", i)
	}
	return names
}

// LogLikelihood implements sampler.Model
func (m *LinearModel) LogLikelihood(theta []float64) (float64, error) {
	if len(theta) != m.Dim() {
		return 0, errors.Errorf("Linear model has %d parameters, got %d", m.Dim(), len(theta))
	}
	p := m.Data.Coefficients()
	sigma2 := theta[p]
	if sigma2 <= 0 {
		return math.Inf(-1), nil
	}

	var fitted mat.VecDense
	fitted.MulVec(m.Data.X, mat.NewVecDense(p, theta[:p]))

	llk := 0.0
	for i, y := range m.Data.Y {
		llk += logNormal(y, fitted.AtVec(i), sigma2)
	}
	return llk, nil
}

// InitialProposal is centered on the OLS fit with the OLS coefficient
// covariance. The residual variance gets a standard deviation of cv times
// its estimate.
func (m *LinearModel) InitialProposal(gen *rand.Generator, cv float64) (*sampler.Proposal, error) {
	p := m.Data.Coefficients()
	mean := append(append([]float64(nil), m.fit.beta...), m.fit.sigma2)

	cov := mat.NewSymDense(p+1, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			cov.SetSym(i, j, m.fit.cov.At(i, j))
		}
	}
	sd := cv * m.fit.sigma2
	cov.SetSym(p, p, sd*sd)

	return sampler.NewProposal(gen, mean, cov)
}

// Priors registers normal priors on the coefficients and an inverse gamma
// prior on the residual variance
func (m *LinearModel) Priors(gen *rand.Generator, opts PriorOptions) (*prior.Registry, error) {
	p := m.Data.Coefficients()
	reg := prior.NewRegistry()

	beta, err := prior.NewNormal(gen, p, opts.CoefficientMean, opts.CoefficientVariance)
	if err != nil {
		return nil, err
	}
	if err := reg.AddFixedEffectPrior(beta, indexRange(0, p)...); err != nil {
		return nil, err
	}

	sigma2, err := prior.NewInverseGamma(gen, 1, opts.VarianceShape, opts.VarianceScale)
	if err != nil {
		return nil, err
	}
	return reg, reg.AddFixedEffectPrior(sigma2, p)
}

// indexRange returns from, from+1, ..., to-1
func indexRange(from int, to int) []int {
	idx := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		idx = append(idx, i)
	}
	return idx
}
