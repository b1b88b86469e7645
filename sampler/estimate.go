package sampler

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Estimate is the Monte Carlo accumulator for a stream of realization
// vectors. Mean and Covariance are defined once a realization has been added.
type Estimate struct {
	dim  int
	rows [][]float64
}

// NewEstimate returns an empty accumulator for dim-length vectors
func NewEstimate(dim int) *Estimate {
	return &Estimate{dim: dim}
}

// Add copies x into the accumulator
func (e *Estimate) Add(x []float64) error {
	if len(x) != e.dim {
		return errors.Errorf("Realization of length %d added to estimate of dim %d", len(x), e.dim)
	}
	e.rows = append(e.rows, append([]float64(nil), x...))
	return nil
}

// AddSamples adds the Theta of every sample
func (e *Estimate) AddSamples(samples []*Sample) error {
	for _, s := range samples {
		if err := e.Add(s.Theta); err != nil {
			return err
		}
	}
	return nil
}

// Dim is the length of each realization
func (e *Estimate) Dim() int {
	return e.dim
}

// Count is the number of realizations added
func (e *Estimate) Count() int {
	return len(e.rows)
}

// Column returns the values of dimension j over all realizations
func (e *Estimate) Column(j int) []float64 {
	col := make([]float64, len(e.rows))
	for i, r := range e.rows {
		col[i] = r[j]
	}
	return col
}

// Mean is the per-dimension sample mean
func (e *Estimate) Mean() ([]float64, error) {
	if e.Count() < 1 {
		return nil, errors.New("Mean of an empty estimate")
	}
	mean := make([]float64, e.dim)
	for j := range mean {
		mean[j] = stat.Mean(e.Column(j), nil)
	}
	return mean, nil
}

// Covariance is the unbiased sample covariance. A single realization gives a
// zero matrix.
func (e *Estimate) Covariance() (*mat.SymDense, error) {
	n := e.Count()
	if n < 1 {
		return nil, errors.New("Covariance of an empty estimate")
	}
	cov := mat.NewSymDense(e.dim, nil)
	if n == 1 {
		return cov, nil
	}

	x := mat.NewDense(n, e.dim, nil)
	for i, r := range e.rows {
		x.SetRow(i, r)
	}
	stat.CovarianceMatrix(cov, x, nil)
	return cov, nil
}

// Percentile of dimension j, pct in (0, 100]
func (e *Estimate) Percentile(j int, pct float64) (float64, error) {
	v, err := stats.Percentile(e.Column(j), pct)
	return v, errors.Wrapf(err, "Percentile %v of dimension %d", pct, j)
}

// AutoCorrelation of dimension j at the given lag
func (e *Estimate) AutoCorrelation(j int, lag int) (float64, error) {
	v, err := stats.AutoCorrelation(e.Column(j), lag)
	return v, errors.Wrapf(err, "Autocorrelation of dimension %d", j)
}
