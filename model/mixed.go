package model

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/bayesmc/prior"
	"github.com/CraigKelly/bayesmc/rand"
	"github.com/CraigKelly/bayesmc/sampler"
)

// RandomInterceptModel is linear regression with a random intercept per
// group: y = X beta + u[group] + e, e ~ N(0, sigma2e), u ~ N(0, sigma2u).
// theta = [beta_0 .. beta_k, sigma2e, sigma2u, u_0 .. u_G-1].
//
// The log-likelihood includes the density of the random effects given
// sigma2u, taken from the registry built by Priors: the registry leaves
// random effects out of its prior density.
type RandomInterceptModel struct {
	Data   *Dataset
	fit    *olsFit
	priors *prior.Registry
}

// NewRandomInterceptModel needs GROUPED data
func NewRandomInterceptModel(ds *Dataset) (*RandomInterceptModel, error) {
	if ds == nil || ds.Type != GROUPED {
		return nil, errors.New("Random intercept model needs a GROUPED dataset")
	}
	fit, err := ols(ds.X, ds.Y)
	if err != nil {
		return nil, errors.Wrapf(err, "Random intercept model for %s", ds.Name)
	}
	return &RandomInterceptModel{Data: ds, fit: fit}, nil
}

// Dim is the number of parameters
func (m *RandomInterceptModel) Dim() int {
	return m.Data.Coefficients() + 2 + m.Data.Groups
}

// Names of the parameters
func (m *RandomInterceptModel) Names() []string {
	names := append(coefficientNames(m.Data.Coefficients()), "sigma2e", "sigma2u")
	for g := 0; g < m.Data.Groups; g++ {
		names = append(names, fmt.Sprintf("u%d", g))
	}
	return names
}

func (m *RandomInterceptModel) varianceIndex() (int, int) {
	p := m.Data.Coefficients()
	return p, p + 1
}

// LogLikelihood implements sampler.Model. Priors must be called first.
func (m *RandomInterceptModel) LogLikelihood(theta []float64) (float64, error) {
	if len(theta) != m.Dim() {
		return 0, errors.Errorf("Random intercept model has %d parameters, got %d", m.Dim(), len(theta))
	}
	if m.priors == nil {
		return 0, errors.New("Random intercept model has no priors registered")
	}

	p := m.Data.Coefficients()
	ie, iu := m.varianceIndex()
	sigma2e := theta[ie]
	if sigma2e <= 0 || theta[iu] <= 0 {
		return math.Inf(-1), nil
	}

	llk := m.priors.LogRandomEffectDensity(theta)
	if math.IsInf(llk, -1) {
		return llk, nil
	}

	u := theta[iu+1:]
	var fitted mat.VecDense
	fitted.MulVec(m.Data.X, mat.NewVecDense(p, theta[:p]))
	for i, y := range m.Data.Y {
		llk += logNormal(y, fitted.AtVec(i)+u[m.Data.Group[i]], sigma2e)
	}
	return llk, nil
}

// InitialProposal starts from the OLS fit: the random effects are the group
// means of the OLS residuals and sigma2u their variance.
func (m *RandomInterceptModel) InitialProposal(gen *rand.Generator, cv float64) (*sampler.Proposal, error) {
	p := m.Data.Coefficients()
	ie, iu := m.varianceIndex()
	sizes := m.Data.GroupSizes()

	u := make([]float64, m.Data.Groups)
	for i, r := range m.fit.residuals {
		u[m.Data.Group[i]] += r
	}
	for g := range u {
		u[g] /= float64(sizes[g])
	}

	sigma2u := 1e-3
	if len(u) > 1 {
		if _, v := stat.MeanVariance(u, nil); v > sigma2u {
			sigma2u = v
		}
	}
	sigma2e := m.fit.sigma2

	mean := make([]float64, m.Dim())
	copy(mean, m.fit.beta)
	mean[ie] = sigma2e
	mean[iu] = sigma2u
	copy(mean[iu+1:], u)

	cov := mat.NewSymDense(m.Dim(), nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			cov.SetSym(i, j, m.fit.cov.At(i, j))
		}
	}
	cov.SetSym(ie, ie, math.Pow(cv*sigma2e, 2))
	cov.SetSym(iu, iu, math.Pow(cv*sigma2u, 2))
	for g, n := range sizes {
		cov.SetSym(iu+1+g, iu+1+g, sigma2e/float64(n))
	}

	return sampler.NewProposal(gen, mean, cov)
}

// Priors registers normal priors on the coefficients, inverse gamma priors
// on both variances and a normal distribution for the random effects whose
// variance is sigma2u. The registry is kept for LogLikelihood, so each
// chain needs its own model.
func (m *RandomInterceptModel) Priors(gen *rand.Generator, opts PriorOptions) (*prior.Registry, error) {
	p := m.Data.Coefficients()
	ie, iu := m.varianceIndex()
	reg := prior.NewRegistry()

	beta, err := prior.NewNormal(gen, p, opts.CoefficientMean, opts.CoefficientVariance)
	if err != nil {
		return nil, err
	}
	if err := reg.AddFixedEffectPrior(beta, indexRange(0, p)...); err != nil {
		return nil, err
	}

	sigma2e, err := prior.NewInverseGamma(gen, 1, opts.VarianceShape, opts.VarianceScale)
	if err != nil {
		return nil, err
	}
	if err := reg.AddFixedEffectPrior(sigma2e, ie); err != nil {
		return nil, err
	}

	sigma2u, err := prior.NewInverseGamma(gen, 1, opts.VarianceShape, opts.VarianceScale)
	if err != nil {
		return nil, err
	}
	if err := reg.AddFixedEffectPrior(sigma2u, iu); err != nil {
		return nil, err
	}

	u, err := prior.NewNormal(gen, m.Data.Groups, 0, 1)
	if err != nil {
		return nil, err
	}
	if err := reg.AddRandomEffectVariancePrior(u, sigma2u, indexRange(iu+1, m.Dim())...); err != nil {
		return nil, err
	}

	m.priors = reg
	return reg, nil
}

// Clone returns a model sharing the dataset but with no priors, for use by
// another chain
func (m *RandomInterceptModel) Clone() *RandomInterceptModel {
	return &RandomInterceptModel{Data: m.Data, fit: m.fit}
}
