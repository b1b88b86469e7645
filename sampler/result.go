package sampler

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Diagnostics are convergence indicators gathered during a run. Values that
// could not be computed are NaN.
type Diagnostics struct {
	BalanceAcceptance  []float64 // per dimension, over the last AdaptInterval balancing trials
	SampleAcceptance   float64   // over the whole joint sampling phase
	LogLikelihoodDrift float64   // newer minus older half of the last 2*AdaptInterval log-likelihoods
	AutoCorrelation    []float64 // lag 1, per dimension, over the retained chain
}

// Result of a run. Mean, Covariance, LogMarginalLikelihood and Chain are only
// meaningful when Converged is true.
type Result struct {
	Mean                  []float64
	Covariance            *mat.SymDense
	LogMarginalLikelihood float64
	Converged             bool
	Chain                 []*Sample // retained samples after burn-in and thinning

	Phase       Phase // Converged or Failed
	FailedIn    Phase // the phase that failed, when Phase is Failed
	Diagnostics Diagnostics
}

// Estimate returns an accumulator loaded with the retained chain
func (r *Result) Estimate() (*Estimate, error) {
	if !r.Converged || len(r.Chain) < 1 {
		return nil, errors.New("Result has no retained samples")
	}
	est := NewEstimate(len(r.Chain[0].Theta))
	if err := est.AddSamples(r.Chain); err != nil {
		return nil, err
	}
	return est, nil
}

// CredibleInterval is the equal-tailed interval of dimension j holding the
// given probability mass (0 < level < 1).
func (r *Result) CredibleInterval(j int, level float64) (float64, float64, error) {
	if !(level > 0 && level < 1) {
		return 0, 0, errors.Errorf("Credible level must be in (0, 1), got %v", level)
	}
	est, err := r.Estimate()
	if err != nil {
		return 0, 0, err
	}
	if j < 0 || j >= est.Dim() {
		return 0, 0, errors.Errorf("Invalid dimension %d", j)
	}

	tail := (1 - level) / 2
	lo, err := est.Percentile(j, 100*tail)
	if err != nil {
		return 0, 0, err
	}
	hi, err := est.Percentile(j, 100*(1-tail))
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}
