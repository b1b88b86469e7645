package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert := assert.New(t)

	est := NewEstimate(2)
	_, err := est.Mean()
	assert.Error(err)
	_, err = est.Covariance()
	assert.Error(err)
	assert.Error(est.Add([]float64{1}))

	assert.NoError(est.Add([]float64{1, 10}))
	cov, err := est.Covariance()
	assert.NoError(err)
	assert.Equal(0.0, cov.At(0, 0))
	assert.Equal(0.0, cov.At(0, 1))

	assert.NoError(est.Add([]float64{2, 20}))
	assert.NoError(est.Add([]float64{3, 30}))
	assert.Equal(3, est.Count())

	mean, err := est.Mean()
	assert.NoError(err)
	assert.InDeltaSlice([]float64{2, 20}, mean, 1e-12)

	cov, err = est.Covariance()
	assert.NoError(err)
	assert.InDelta(1.0, cov.At(0, 0), 1e-12)
	assert.InDelta(10.0, cov.At(0, 1), 1e-12)
	assert.InDelta(10.0, cov.At(1, 0), 1e-12)
	assert.InDelta(100.0, cov.At(1, 1), 1e-12)

	assert.Equal([]float64{10, 20, 30}, est.Column(1))
}

func TestEstimatePercentile(t *testing.T) {
	assert := assert.New(t)

	est := NewEstimate(1)
	for i := 1; i <= 100; i++ {
		assert.NoError(est.Add([]float64{float64(i)}))
	}

	p, err := est.Percentile(0, 50)
	assert.NoError(err)
	assert.InDelta(50.0, p, 1.0)

	p, err = est.Percentile(0, 100)
	assert.NoError(err)
	assert.Equal(100.0, p)

	_, err = est.Percentile(0, 0)
	assert.Error(err)

	ac, err := est.AutoCorrelation(0, 1)
	assert.NoError(err)
	assert.True(ac > 0.9)
}
