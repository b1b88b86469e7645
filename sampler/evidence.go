package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// logMeanExp is log(mean(exp(terms)))
func logMeanExp(terms []float64) float64 {
	if len(terms) < 1 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(terms) - math.Log(float64(len(terms)))
}

// logEvidence estimates the log marginal likelihood from the retained samples
// (Chib and Jeliazkov) at the retained sample with the highest
// log-likelihood. All averages are done in log space. When the model has
// random effects the posterior ordinate only covers the fixed-effect
// dimensions of the proposal.
func (m *MCMC) logEvidence(retained []*Sample) (float64, error) {
	star := Best(retained)
	if star == nil {
		return 0, errors.Wrap(ErrNumerical, "No samples for evidence")
	}
	llkStar := star.LogLikelihood

	var keep []int
	if m.priors.HasRandomEffects() {
		keep = m.priors.FixedEffectIndices()
	}

	// Posterior ordinate numerator: E_posterior[ alpha(theta, theta*) q(theta* | theta) ]
	num := make([]float64, len(retained))
	for i, s := range retained {
		if err := m.proposal.SetMean(s.Theta); err != nil {
			return 0, err
		}

		var lq float64
		var err error
		if keep != nil {
			lq, err = m.proposal.MarginalLogDensity(star.Theta, keep)
		} else {
			lq, err = m.proposal.LogDensity(star.Theta)
		}
		if err != nil {
			return 0, err
		}
		num[i] = math.Min(0, llkStar-s.LogLikelihood) + lq
	}

	// Denominator: E_q(. | theta*)[ alpha(theta*, d) ]
	if err := m.proposal.SetMean(star.Theta); err != nil {
		return 0, err
	}
	den := make([]float64, len(retained))
	for i := range den {
		d, err := m.proposal.Sample()
		if err != nil {
			return 0, err
		}
		llk, err := m.score(d)
		if err != nil {
			return 0, err
		}
		den[i] = math.Min(0, llk-llkStar)
	}

	logNum := logMeanExp(num)
	logDen := logMeanExp(den)
	if math.IsInf(logNum, -1) || math.IsInf(logDen, -1) || math.IsNaN(logNum) || math.IsNaN(logDen) {
		return 0, errors.Wrapf(ErrNumerical, "Degenerate evidence estimate (log numerator %v, log denominator %v)", logNum, logDen)
	}

	return llkStar - (logNum - logDen), nil
}

// PriorEvidence is the simple Monte Carlo estimate of the log marginal
// likelihood: the log of the mean likelihood over n draws from the priors.
// It needs no proposal and is mostly useful as a rough check on Run.
func (m *MCMC) PriorEvidence(n int) (float64, error) {
	if n < 1 {
		return 0, errors.Wrapf(ErrConfiguration, "Prior evidence needs at least one draw, got %d", n)
	}

	terms := make([]float64, n)
	for i := range terms {
		theta, err := m.priors.DrawRealization()
		if err != nil {
			return 0, errors.Wrap(err, "Drawing from priors")
		}
		llk, err := m.logLikelihood(theta)
		if err != nil {
			return 0, err
		}
		terms[i] = llk
	}

	lml := logMeanExp(terms)
	if math.IsInf(lml, -1) {
		return 0, errors.Wrap(ErrNumerical, "Every prior draw has zero likelihood")
	}
	return lml, nil
}
