package sampler

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/bayesmc/rand"
)

// ChainFactory builds the driver for chain id. Everything the driver uses
// (registry, model state, proposal) must be created fresh from gen: chains
// share nothing.
type ChainFactory func(id int, gen *rand.Generator) (*MCMC, error)

// RunChains runs n independent chains, at most limit at a time (limit < 1
// means no limit). Chain seeds are derived from seed. Results are in chain
// order; the error is the first chain error, if any.
func RunChains(n int, seed int64, limit int, factory ChainFactory) ([]*Result, error) {
	if n < 1 {
		return nil, errors.Wrapf(ErrConfiguration, "At least one chain required, got %d", n)
	}

	master, err := rand.NewGenerator(seed)
	if err != nil {
		return nil, err
	}
	seeds := master.Seeds(n)
	master.Close()

	results := make([]*Result, n)
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			gen, err := rand.NewGenerator(seeds[id])
			if err != nil {
				return err
			}
			defer gen.Close()

			m, err := factory(id, gen)
			if err != nil {
				return errors.Wrapf(err, "Chain %d setup", id)
			}
			m.ID = id

			res, err := m.Run()
			results[id] = res
			return errors.Wrapf(err, "Chain %d", id)
		})
	}

	return results, g.Wait()
}

// PotentialScaleReduction is the Gelman-Rubin statistic per dimension over
// the retained chains of converged results. Chains are truncated to the
// shortest one. Values near 1 mean the chains agree.
func PotentialScaleReduction(results []*Result) ([]float64, error) {
	var chains [][]*Sample
	for _, r := range results {
		if r != nil && r.Converged {
			chains = append(chains, r.Chain)
		}
	}
	if len(chains) < 2 {
		return nil, errors.Errorf("Need at least 2 converged chains, got %d", len(chains))
	}

	length := len(chains[0])
	for _, c := range chains[1:] {
		if len(c) < length {
			length = len(c)
		}
	}
	if length < 2 {
		return nil, errors.New("Chains must have at least 2 retained samples")
	}

	dim := len(chains[0][0].Theta)
	rhat := make([]float64, dim)
	means := make([]float64, len(chains))
	vars := make([]float64, len(chains))
	col := make([]float64, length)
	n := float64(length)

	for j := 0; j < dim; j++ {
		for c, chain := range chains {
			for i := 0; i < length; i++ {
				col[i] = chain[i].Theta[j]
			}
			means[c], vars[c] = stat.MeanVariance(col, nil)
		}

		w := stat.Mean(vars, nil)
		_, bOverN := stat.MeanVariance(means, nil)
		v := (n-1)/n*w + bOverN
		if w <= 0 {
			rhat[j] = math.NaN()
			continue
		}
		rhat[j] = math.Sqrt(v / w)
	}
	return rhat, nil
}
