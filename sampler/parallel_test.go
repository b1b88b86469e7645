package sampler

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/bayesmc/prior"
	"github.com/CraigKelly/bayesmc/rand"
)

func unitFactory(cfg RunConfig) ChainFactory {
	return func(id int, gen *rand.Generator) (*MCMC, error) {
		reg := prior.NewRegistry()
		dist, err := prior.NewNormal(gen, 1, 0, 100)
		if err != nil {
			return nil, err
		}
		if err := reg.AddFixedEffectPrior(dist, 0); err != nil {
			return nil, err
		}
		return NewMCMC(gen, unitGaussian(), reg, cfg)
	}
}

func TestRunChains(t *testing.T) {
	assert := assert.New(t)

	results, err := RunChains(4, 42, 2, unitFactory(unitConfig()))
	assert.NoError(err)
	assert.Len(results, 4)
	for _, r := range results {
		assert.True(r.Converged)
		assert.InDelta(0.0, r.Mean[0], 0.15)
	}

	// Chains have different seeds
	assert.NotEqual(results[0].Chain[0].Theta, results[1].Chain[0].Theta)

	rhat, err := PotentialScaleReduction(results)
	assert.NoError(err)
	assert.Len(rhat, 1)
	assert.InDelta(1.0, rhat[0], 0.1)

	// Same master seed, same chains
	again, err := RunChains(4, 42, 0, unitFactory(unitConfig()))
	assert.NoError(err)
	for i := range results {
		assert.Equal(results[i].Mean, again[i].Mean)
	}
}

func TestRunChainsErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := RunChains(0, 42, 1, unitFactory(unitConfig()))
	assert.True(errors.Is(err, ErrConfiguration))

	bad := unitConfig()
	bad.ThinningStride = 0
	_, err = RunChains(2, 42, 1, unitFactory(bad))
	assert.True(errors.Is(err, ErrConfiguration))

	_, err = PotentialScaleReduction([]*Result{{Converged: true}})
	assert.Error(err)
}

func TestPotentialScaleReduction(t *testing.T) {
	assert := assert.New(t)

	chain := func(offset float64) []*Sample {
		var s []*Sample
		for i := 0; i < 100; i++ {
			s = append(s, NewSample([]float64{offset + float64(i%10)}, 0))
		}
		return s
	}

	same := []*Result{
		{Converged: true, Chain: chain(0)},
		{Converged: true, Chain: chain(0)},
	}
	rhat, err := PotentialScaleReduction(same)
	assert.NoError(err)
	assert.InDelta(0.995, rhat[0], 0.01) // sqrt((n-1)/n) for identical chains

	apart := []*Result{
		{Converged: true, Chain: chain(0)},
		{Converged: true, Chain: chain(100)},
		{Converged: false},
	}
	rhat, err = PotentialScaleReduction(apart)
	assert.NoError(err)
	assert.True(rhat[0] > 2)
}
