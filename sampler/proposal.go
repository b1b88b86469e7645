package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/CraigKelly/bayesmc/rand"
)

// Proposal is the multivariate Gaussian proposal distribution of the
// sampler. The mean moves with the chain and the covariance is tuned during
// burn-in. Scaling by positive factors is the only in-place change allowed to
// the covariance, which keeps it positive definite; the Cholesky factor is
// recomputed lazily on the next draw or density evaluation.
type Proposal struct {
	gen   *rand.Generator
	mean  []float64
	cov   *mat.SymDense
	chol  mat.Cholesky
	stale bool
}

// NewProposal fails with ErrNumerical if cov is not positive definite
func NewProposal(gen *rand.Generator, mean []float64, cov mat.Symmetric) (*Proposal, error) {
	if len(mean) < 1 {
		return nil, errors.Wrap(ErrConfiguration, "Proposal needs at least one dimension")
	}

	p := &Proposal{
		gen:  gen,
		mean: append([]float64(nil), mean...),
	}
	if err := p.SetCovariance(cov); err != nil {
		return nil, err
	}
	return p, nil
}

// NewDiagonalProposal is a proposal with independent dimensions
func NewDiagonalProposal(gen *rand.Generator, mean []float64, variances []float64) (*Proposal, error) {
	if len(mean) != len(variances) {
		return nil, errors.Wrapf(ErrConfiguration, "Mean has %d entries but %d variances given", len(mean), len(variances))
	}
	cov := mat.NewSymDense(len(variances), nil)
	for i, v := range variances {
		cov.SetSym(i, i, v)
	}
	return NewProposal(gen, mean, cov)
}

// Dim is the dimension of the proposal
func (p *Proposal) Dim() int {
	return len(p.mean)
}

// Mean returns a copy of the current mean
func (p *Proposal) Mean() []float64 {
	return append([]float64(nil), p.mean...)
}

// Covariance returns a copy of the current covariance
func (p *Proposal) Covariance() *mat.SymDense {
	cov := mat.NewSymDense(p.Dim(), nil)
	cov.CopySym(p.cov)
	return cov
}

// Variance returns the diagonal entry j of the covariance
func (p *Proposal) Variance(j int) float64 {
	return p.cov.At(j, j)
}

// SetMean replaces the mean
func (p *Proposal) SetMean(v []float64) error {
	if len(v) != len(p.mean) {
		return errors.Errorf("Mean of length %d given to proposal of dim %d", len(v), len(p.mean))
	}
	copy(p.mean, v)
	return nil
}

// SetCovariance replaces the covariance and factorizes it right away
func (p *Proposal) SetCovariance(m mat.Symmetric) error {
	n := len(p.mean)
	if m == nil || m.SymmetricDim() != n {
		return errors.Wrapf(ErrConfiguration, "Covariance must be %dx%d", n, n)
	}

	cov := mat.NewSymDense(n, nil)
	cov.CopySym(m)
	p.cov = cov
	p.stale = true
	return p.factorize()
}

// Scale multiplies the whole covariance by f > 0
func (p *Proposal) Scale(f float64) error {
	if err := checkFactor(f); err != nil {
		return err
	}
	p.cov.ScaleSym(f, p.cov)
	p.stale = true
	return nil
}

// ScaleVariance multiplies the variance of dimension j by f > 0. Row and
// column j are scaled by sqrt(f) so the covariance stays positive definite.
func (p *Proposal) ScaleVariance(j int, f float64) error {
	if err := checkFactor(f); err != nil {
		return err
	}
	if j < 0 || j >= p.Dim() {
		return errors.Wrapf(ErrConfiguration, "Dimension %d out of range [0,%d)", j, p.Dim())
	}
	root := math.Sqrt(f)
	for k := 0; k < p.Dim(); k++ {
		if k != j {
			p.cov.SetSym(j, k, p.cov.At(j, k)*root)
		}
	}
	p.cov.SetSym(j, j, p.cov.At(j, j)*f)
	p.stale = true
	return nil
}

func checkFactor(f float64) error {
	if !(f > 0) || math.IsInf(f, 1) {
		return errors.Wrapf(ErrNumerical, "Covariance scale factor must be positive, got %v", f)
	}
	return nil
}

func (p *Proposal) factorize() error {
	if !p.stale {
		return nil
	}
	if ok := p.chol.Factorize(p.cov); !ok {
		return errors.Wrap(ErrNumerical, "Proposal covariance is not positive definite")
	}
	p.stale = false
	return nil
}

// Sample draws mean + L z where L is the Cholesky factor of the covariance
// and z is a vector of standard normal draws
func (p *Proposal) Sample() ([]float64, error) {
	if err := p.factorize(); err != nil {
		return nil, err
	}
	return distmv.NormalRand(nil, p.mean, &p.chol, p.gen), nil
}

// LogDensity is the log of the Gaussian density at x
func (p *Proposal) LogDensity(x []float64) (float64, error) {
	if len(x) != len(p.mean) {
		return 0, errors.Errorf("Point of length %d given to proposal of dim %d", len(x), len(p.mean))
	}
	if err := p.factorize(); err != nil {
		return 0, err
	}
	return distmv.NormalLogProb(x, p.mean, &p.chol), nil
}

// Density is the Gaussian density at x
func (p *Proposal) Density(x []float64) (float64, error) {
	lp, err := p.LogDensity(x)
	return math.Exp(lp), err
}

// MarginalLogDensity evaluates the log density of the marginal distribution
// of the dimensions in keep. Both the proposal and the full-length point x are
// restricted to keep before evaluation.
func (p *Proposal) MarginalLogDensity(x []float64, keep []int) (float64, error) {
	if len(x) != len(p.mean) {
		return 0, errors.Errorf("Point of length %d given to proposal of dim %d", len(x), len(p.mean))
	}
	if len(keep) < 1 {
		return 0, errors.New("At least one dimension must be kept")
	}

	sub := make([]float64, len(keep))
	mu := make([]float64, len(keep))
	for i, k := range keep {
		if k < 0 || k >= len(p.mean) {
			return 0, errors.Errorf("Invalid dimension %d", k)
		}
		sub[i] = x[k]
		mu[i] = p.mean[k]
	}

	var cov mat.SymDense
	cov.SubsetSym(p.cov, keep)
	var chol mat.Cholesky
	if ok := chol.Factorize(&cov); !ok {
		return 0, errors.Wrap(ErrNumerical, "Marginal proposal covariance is not positive definite")
	}
	return distmv.NormalLogProb(sub, mu, &chol), nil
}

// MarginalDensity is exp(MarginalLogDensity)
func (p *Proposal) MarginalDensity(x []float64, keep []int) (float64, error) {
	lp, err := p.MarginalLogDensity(x, keep)
	return math.Exp(lp), err
}
