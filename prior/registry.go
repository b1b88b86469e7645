// Package prior associates blocks of a parameter vector with prior
// distributions, including hierarchical priors whose variance is itself a
// parameter.
package prior

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ErrConfiguration is the cause of every registry setup failure
var ErrConfiguration = errors.New("invalid prior configuration")

// block is one registered distribution and the parameter indices it covers
type block struct {
	dist     Distribution
	indices  []int
	varIndex int // index in theta of the coupled variance, -1 for fixed effects
	scratch  []float64
}

func (b *block) coupled() bool {
	return b.varIndex >= 0
}

// gather copies the block's entries of theta into its scratch buffer
func (b *block) gather(theta []float64) []float64 {
	for i, idx := range b.indices {
		b.scratch[i] = theta[idx]
	}
	return b.scratch
}

// Registry holds the priors of a model. A Registry is mutated while it is
// used (coupled variances are overwritten) so each chain needs its own.
type Registry struct {
	blocks  []*block
	covered map[int]bool
	maxIdx  int
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		covered: make(map[int]bool),
		maxIdx:  -1,
	}
}

// AddFixedEffectPrior registers dist as the prior for the given indices
func (r *Registry) AddFixedEffectPrior(dist Distribution, indices ...int) error {
	_, err := r.add(dist, -1, indices)
	return err
}

// AddRandomEffectVariancePrior registers dist as the distribution of the
// random effects at the given indices, with its variance supplied by the
// (already registered) variancePrior. The variance prior must cover exactly
// one index: variance priors over several indices are not supported.
func (r *Registry) AddRandomEffectVariancePrior(dist VarianceSetter, variancePrior Distribution, indices ...int) error {
	if variancePrior == nil {
		return errors.Wrap(ErrConfiguration, "No variance prior supplied for random effects")
	}

	target := r.find(variancePrior)
	if target == nil {
		return errors.Wrap(ErrConfiguration, "Variance prior must be registered before the random effects it governs")
	}
	if len(target.indices) != 1 {
		return errors.Wrapf(
			ErrConfiguration,
			"Variance prior covers %d indices, only a single index is supported",
			len(target.indices),
		)
	}
	if target.coupled() {
		return errors.Wrap(ErrConfiguration, "A random effect distribution can not supply a variance")
	}

	_, err := r.add(dist, target.indices[0], indices)
	return err
}

func (r *Registry) find(dist Distribution) *block {
	for _, b := range r.blocks {
		if b.dist == dist {
			return b
		}
	}
	return nil
}

func (r *Registry) add(dist Distribution, varIndex int, indices []int) (*block, error) {
	if dist == nil {
		return nil, errors.Wrap(ErrConfiguration, "Nil distribution")
	}
	if len(indices) < 1 {
		return nil, errors.Wrap(ErrConfiguration, "At least one index is required")
	}
	if dist.Dim() != len(indices) {
		return nil, errors.Wrapf(ErrConfiguration, "Distribution has dimension %d but %d indices were given", dist.Dim(), len(indices))
	}
	if r.find(dist) != nil {
		return nil, errors.Wrap(ErrConfiguration, "Distribution is already registered")
	}

	seen := make(map[int]bool)
	for _, idx := range indices {
		if idx < 0 {
			return nil, errors.Wrapf(ErrConfiguration, "Invalid index %d", idx)
		}
		if r.covered[idx] || seen[idx] {
			return nil, errors.Wrapf(ErrConfiguration, "Index %d is already covered by a prior", idx)
		}
		seen[idx] = true
	}

	b := &block{
		dist:     dist,
		indices:  append([]int(nil), indices...),
		varIndex: varIndex,
		scratch:  make([]float64, len(indices)),
	}
	for _, idx := range indices {
		r.covered[idx] = true
		if idx > r.maxIdx {
			r.maxIdx = idx
		}
	}
	r.blocks = append(r.blocks, b)

	return b, nil
}

// Dim is the length of the parameter vector the registry covers
func (r *Registry) Dim() int {
	return r.maxIdx + 1
}

// Validate returns an error unless the blocks cover exactly 0..p-1
func (r *Registry) Validate(p int) error {
	if len(r.blocks) < 1 {
		return errors.Wrap(ErrConfiguration, "No priors registered")
	}
	if r.Dim() != p {
		return errors.Wrapf(ErrConfiguration, "Priors cover indices up to %d but the model has %d parameters", r.maxIdx, p)
	}
	for i := 0; i < p; i++ {
		if !r.covered[i] {
			return errors.Wrapf(ErrConfiguration, "No prior covers parameter %d", i)
		}
	}
	return nil
}

// HasRandomEffects is true if at least one block is coupled to a variance
func (r *Registry) HasRandomEffects() bool {
	for _, b := range r.blocks {
		if b.coupled() {
			return true
		}
	}
	return false
}

// FixedEffectIndices returns the sorted indices of all non-coupled blocks
func (r *Registry) FixedEffectIndices() []int {
	return r.indices(false)
}

// RandomEffectIndices returns the sorted indices of all coupled blocks
func (r *Registry) RandomEffectIndices() []int {
	return r.indices(true)
}

func (r *Registry) indices(coupled bool) []int {
	var out []int
	for _, b := range r.blocks {
		if b.coupled() == coupled {
			out = append(out, b.indices...)
		}
	}
	sort.Ints(out)
	return out
}

// DrawRealization draws a full parameter vector from the priors. Blocks are
// drawn in registration order, so a variance is always realized before the
// random effects that depend on it.
func (r *Registry) DrawRealization() ([]float64, error) {
	theta := make([]float64, r.Dim())
	for _, b := range r.blocks {
		if b.coupled() {
			if err := r.setVariance(b, theta); err != nil {
				return nil, err
			}
		}

		draw := b.dist.Rand(b.scratch)
		for i, idx := range b.indices {
			theta[idx] = draw[i]
		}
	}
	return theta, nil
}

func (r *Registry) setVariance(b *block, theta []float64) error {
	vs, ok := b.dist.(VarianceSetter)
	if !ok {
		return errors.Wrap(ErrConfiguration, "Coupled distribution can not accept a variance")
	}
	return errors.Wrapf(vs.SetVariance(theta[b.varIndex]), "Coupled variance at index %d", b.varIndex)
}

// LogPriorDensity is the log density of the fixed-effect priors at theta.
// Random effect blocks are excluded: see LogRandomEffectDensity.
func (r *Registry) LogPriorDensity(theta []float64) float64 {
	return r.logDensity(theta, false)
}

// LogRandomEffectDensity is the log density of the random effects at theta,
// using the variances found in theta.
func (r *Registry) LogRandomEffectDensity(theta []float64) float64 {
	return r.logDensity(theta, true)
}

func (r *Registry) logDensity(theta []float64, coupled bool) float64 {
	lp := 0.0
	for _, b := range r.blocks {
		if b.coupled() != coupled {
			continue
		}
		if coupled && r.setVariance(b, theta) != nil {
			return math.Inf(-1) // no valid variance means zero density
		}

		lp += b.dist.LogProb(b.gather(theta))
		if math.IsInf(lp, -1) {
			return lp
		}
	}
	return lp
}
