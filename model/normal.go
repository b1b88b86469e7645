package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/bayesmc/prior"
	"github.com/CraigKelly/bayesmc/rand"
	"github.com/CraigKelly/bayesmc/sampler"
)

// NormalModel is iid normal data with a known standard deviation and an
// unknown mean: theta = [mu].
type NormalModel struct {
	Data  []float64
	Sigma float64
}

// NewNormalModel requires at least one observation and sigma > 0
func NewNormalModel(data []float64, sigma float64) (*NormalModel, error) {
	if len(data) < 1 {
		return nil, errors.New("Normal model needs at least one observation")
	}
	if !(sigma > 0) {
		return nil, errors.Errorf("Normal model needs sigma > 0, got %v", sigma)
	}
	return &NormalModel{Data: data, Sigma: sigma}, nil
}

// LogLikelihood implements sampler.Model
func (m *NormalModel) LogLikelihood(theta []float64) (float64, error) {
	if len(theta) != 1 {
		return 0, errors.Errorf("Normal model has 1 parameter, got %d", len(theta))
	}
	dist := distuv.Normal{Mu: theta[0], Sigma: m.Sigma}
	llk := 0.0
	for _, y := range m.Data {
		llk += dist.LogProb(y)
	}
	return llk, nil
}

// InitialProposal is centered on the sample mean with the variance of the
// mean's estimator, widened so the coefficient of variation is at least cv
func (m *NormalModel) InitialProposal(gen *rand.Generator, cv float64) (*sampler.Proposal, error) {
	mean := stat.Mean(m.Data, nil)
	variance := m.Sigma * m.Sigma / float64(len(m.Data))
	if v := cv * mean; v*v > variance {
		variance = v * v
	}
	return sampler.NewDiagonalProposal(gen, []float64{mean}, []float64{variance})
}

// Priors registers a normal prior on the mean
func (m *NormalModel) Priors(gen *rand.Generator, opts PriorOptions) (*prior.Registry, error) {
	reg := prior.NewRegistry()
	mu, err := prior.NewNormal(gen, 1, opts.CoefficientMean, opts.CoefficientVariance)
	if err != nil {
		return nil, err
	}
	return reg, reg.AddFixedEffectPrior(mu, 0)
}

// Dim is the number of parameters
func (m *NormalModel) Dim() int {
	return 1
}

// Names of the parameters
func (m *NormalModel) Names() []string {
	return []string{"mu"}
}

// logNormal is the normal log density with variance v
func logNormal(x float64, mean float64, v float64) float64 {
	d := x - mean
	return -0.5*math.Log(2*math.Pi*v) - d*d/(2*v)
}
