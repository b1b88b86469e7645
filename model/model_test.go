package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/bayesmc/rand"
	"github.com/CraigKelly/bayesmc/sampler"
)

func testGen(t *testing.T, seed int64) *rand.Generator {
	gen, err := rand.NewGenerator(seed)
	if err != nil {
		t.Fatalf("Could not init PRNG %v", err)
	}
	t.Cleanup(gen.Close)
	return gen
}

func readDataset(t *testing.T, filename string) *Dataset {
	ds, err := NewDatasetFromFile(DatReader{}, filename)
	if err != nil {
		t.Fatalf("Could not read %s: %v", filename, err)
	}
	return ds
}

// fit runs a single chain of the named model
func fit(t *testing.T, name string, ds *Dataset, seed int64, cfg sampler.RunConfig) (*sampler.Result, Fitted) {
	gen := testGen(t, seed)
	m, err := New(name, ds)
	if err != nil {
		t.Fatalf("Could not create model %s: %v", name, err)
	}
	reg, err := m.Priors(gen, DefaultPriorOptions())
	if err != nil {
		t.Fatalf("Could not create priors: %v", err)
	}
	mc, err := sampler.NewMCMC(gen, m, reg, cfg)
	if err != nil {
		t.Fatalf("Could not create sampler: %v", err)
	}
	res, err := mc.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res, m
}

func TestNormalModel(t *testing.T) {
	assert := assert.New(t)

	_, err := NewNormalModel(nil, 1)
	assert.Error(err)
	_, err = NewNormalModel([]float64{1}, 0)
	assert.Error(err)

	m, err := NewNormalModel([]float64{1, 2, 3}, 2)
	assert.NoError(err)
	assert.Equal(1, m.Dim())
	assert.Equal([]string{"mu"}, m.Names())

	llk, err := m.LogLikelihood([]float64{2})
	assert.NoError(err)
	norm := distuv.Normal{Mu: 2, Sigma: 2}
	assert.InDelta(norm.LogProb(1)+norm.LogProb(2)+norm.LogProb(3), llk, 1e-10)

	_, err = m.LogLikelihood([]float64{1, 2})
	assert.Error(err)

	gen := testGen(t, 42)
	prop, err := m.InitialProposal(gen, 0.1)
	assert.NoError(err)
	assert.Equal([]float64{2}, prop.Mean())
	assert.InDelta(4.0/3.0, prop.Variance(0), 1e-10)

	// A large cv widens the proposal
	prop, err = m.InitialProposal(gen, 10)
	assert.NoError(err)
	assert.InDelta(400.0, prop.Variance(0), 1e-10)
}

func TestLinearModel(t *testing.T) {
	assert := assert.New(t)
	ds := readDataset(t, "../res/linear.dat")

	m, err := NewLinearModel(ds)
	assert.NoError(err)
	assert.Equal(3, m.Dim())
	assert.Equal([]string{"beta0", "beta1", "sigma2"}, m.Names())

	// OLS first guess
	gen := testGen(t, 42)
	prop, err := m.InitialProposal(gen, 0.1)
	assert.NoError(err)
	mean := prop.Mean()
	assert.InDelta(1.0046, mean[0], 1e-3)
	assert.InDelta(2.1610, mean[1], 1e-3)
	assert.InDelta(0.2248, mean[2], 1e-3)
	assert.InDelta(0.0671*0.0671, prop.Variance(0), 1e-4)
	assert.InDelta(0.0612*0.0612, prop.Variance(1), 1e-4)

	// Log-likelihood by hand
	theta := []float64{1, 2, 0.25}
	llk, err := m.LogLikelihood(theta)
	assert.NoError(err)
	expected := 0.0
	for i, y := range ds.Y {
		expected += distuv.Normal{Mu: 1 + 2*ds.X.At(i, 1), Sigma: 0.5}.LogProb(y)
	}
	assert.InDelta(expected, llk, 1e-8)

	llk, err = m.LogLikelihood([]float64{1, 2, 0})
	assert.NoError(err)
	assert.True(math.IsInf(llk, -1))

	_, err = m.LogLikelihood([]float64{1, 2})
	assert.Error(err)

	reg, err := m.Priors(gen, DefaultPriorOptions())
	assert.NoError(err)
	assert.NoError(reg.Validate(3))
	assert.False(reg.HasRandomEffects())
}

func TestLinearModelFit(t *testing.T) {
	assert := assert.New(t)
	ds := readDataset(t, "../res/linear.dat")

	res, _ := fit(t, "linear", ds, 42, sampler.RunConfig{
		BurnIn:                    3000,
		TotalRealizations:         13000,
		MaxInnerIterationsPerStep: 1000,
		ThinningStride:            5,
		InitialGridSize:           500,
		CoefficientOfVariation:    0.1,
	})
	assert.True(res.Converged)
	assert.Len(res.Chain, 2000)

	// Coefficient priors are flat next to the data: posterior mean is OLS
	assert.InDelta(1.0046, res.Mean[0], 0.03)
	assert.InDelta(2.1610, res.Mean[1], 0.03)
	assert.InDelta(0.246, res.Mean[2], 0.05)
	assert.InDelta(0.0671*0.0671, res.Covariance.At(0, 0), 0.003)

	assert.False(math.IsNaN(res.LogMarginalLikelihood))
	assert.False(math.IsInf(res.LogMarginalLikelihood, 0))

	lo, hi, err := res.CredibleInterval(1, 0.95)
	assert.NoError(err)
	assert.True(lo < 2.1610 && 2.1610 < hi)
}

func TestLinearModelUncentered(t *testing.T) {
	assert := assert.New(t)
	ds := readDataset(t, "../res/linear.dat")
	for i := range ds.Y {
		ds.X.Set(i, 1, ds.X.At(i, 1)+10)
		ds.Y[i] += 20
	}

	// Intercept and slope are strongly correlated a posteriori
	res, m := fit(t, "linear", ds, 42, sampler.RunConfig{
		BurnIn:                    3000,
		TotalRealizations:         13000,
		MaxInnerIterationsPerStep: 1000,
		ThinningStride:            5,
		InitialGridSize:           500,
		CoefficientOfVariation:    0.1,
	})
	assert.True(res.Converged)
	assert.Equal(3, m.Dim())

	assert.InDelta(21.0046-10*2.1610, res.Mean[0], 0.2)
	assert.InDelta(2.1610, res.Mean[1], 0.03)
	assert.InDelta(0.246, res.Mean[2], 0.05)

	corr := res.Covariance.At(0, 1) / math.Sqrt(res.Covariance.At(0, 0)*res.Covariance.At(1, 1))
	assert.True(corr < -0.9, "correlation %v", corr)
}

func TestRandomInterceptModel(t *testing.T) {
	assert := assert.New(t)

	_, err := NewRandomInterceptModel(readDataset(t, "../res/linear.dat"))
	assert.Error(err)

	ds := readDataset(t, "../res/grouped.dat")
	m, err := NewRandomInterceptModel(ds)
	assert.NoError(err)
	assert.Equal(10, m.Dim())
	assert.Equal("sigma2u", m.Names()[3])
	assert.Equal("u5", m.Names()[9])

	theta := []float64{0.5, -1.5, 0.25, 1, 0, 0, 0, 0, 0, 0}

	// No priors yet
	_, err = m.LogLikelihood(theta)
	assert.Error(err)

	gen := testGen(t, 42)
	reg, err := m.Priors(gen, DefaultPriorOptions())
	assert.NoError(err)
	assert.NoError(reg.Validate(10))
	assert.True(reg.HasRandomEffects())
	assert.Equal([]int{0, 1, 2, 3}, reg.FixedEffectIndices())
	assert.Equal([]int{4, 5, 6, 7, 8, 9}, reg.RandomEffectIndices())

	// Data term plus the density of u given sigma2u
	llk, err := m.LogLikelihood(theta)
	assert.NoError(err)
	expected := 6 * distuv.Normal{Mu: 0, Sigma: 1}.LogProb(0)
	for i, y := range ds.Y {
		expected += distuv.Normal{Mu: 0.5 - 1.5*ds.X.At(i, 1), Sigma: 0.5}.LogProb(y)
	}
	assert.InDelta(expected, llk, 1e-8)

	theta[3] = -1
	llk, err = m.LogLikelihood(theta)
	assert.NoError(err)
	assert.True(math.IsInf(llk, -1))

	prop, err := m.InitialProposal(gen, 0.1)
	assert.NoError(err)
	assert.Equal(10, prop.Dim())
	mean := prop.Mean()
	assert.InDelta(-1.557, mean[1], 1e-3)
	assert.InDelta(1.005, mean[3], 1e-2)
	assert.InDelta(-1.7885, mean[6], 1e-3)

	c := m.Clone()
	_, err = c.LogLikelihood(theta)
	assert.Error(err)
}

func TestRandomInterceptFit(t *testing.T) {
	assert := assert.New(t)
	ds := readDataset(t, "../res/grouped.dat")

	res, m := fit(t, "mixed", ds, 42, sampler.RunConfig{
		BurnIn:                    5000,
		TotalRealizations:         25000,
		MaxInnerIterationsPerStep: 10000,
		ThinningStride:            10,
		InitialGridSize:           1000,
		CoefficientOfVariation:    0.1,
	})
	assert.True(res.Converged)
	assert.Len(res.Chain, 2000)
	assert.Equal(m.Dim(), len(res.Mean))

	assert.InDelta(-1.5, res.Mean[1], 0.12)
	assert.InDelta(0.18, res.Mean[2], 0.1)
	assert.True(res.Mean[3] > 0.2)

	// Group 2 has by far the lowest intercept
	for g := 0; g < 6; g++ {
		if g != 2 {
			assert.True(res.Mean[4+2] < res.Mean[4+g])
		}
	}

	assert.False(math.IsNaN(res.LogMarginalLikelihood))
	assert.False(math.IsInf(res.LogMarginalLikelihood, 0))
}

func TestNewModel(t *testing.T) {
	assert := assert.New(t)
	ds := readDataset(t, "../res/linear.dat")

	m, err := New("normal", ds)
	assert.NoError(err)
	assert.Equal(1, m.Dim())

	m, err = New("linear", ds)
	assert.NoError(err)
	assert.Equal(3, m.Dim())

	_, err = New("mixed", ds)
	assert.Error(err)

	_, err = New("nope", ds)
	assert.Error(err)
}
