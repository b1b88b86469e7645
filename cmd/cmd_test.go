package cmd

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/bayesmc/sampler"
)

func noneChanged(string) bool { return false }

func testParams(t *testing.T, buf *bytes.Buffer) *startupParams {
	sp := defaultParams()
	sp.dataFile = "../res/linear.dat"
	sp.out = log.New(buf, "", 0)
	sp.run = sampler.RunConfig{
		BurnIn:                    1000,
		TotalRealizations:         3000,
		MaxInnerIterationsPerStep: 1000,
		ThinningStride:            10,
		InitialGridSize:           200,
		CoefficientOfVariation:    0.1,
	}
	t.Cleanup(func() { sp.Close() })
	return sp
}

func TestLoadConfig(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	fn := filepath.Join(dir, "bayesmc.yaml")
	yml := `
data: ../res/grouped.dat
model: mixed
seed: 99
chains: 3
run:
  burn_in: 2000
  total_realizations: 12000
  thinning_stride: 20
priors:
  coefficient_variance: 25
`
	assert.NoError(os.WriteFile(fn, []byte(yml), 0644))

	fc, err := loadConfig(fn)
	assert.NoError(err)
	assert.Equal("mixed", fc.Model)
	assert.Equal(int64(99), fc.Seed)
	assert.Equal(2000, fc.Run.BurnIn)
	assert.Equal(20, fc.Run.ThinningStride)
	// Missing keys keep their defaults
	assert.Equal(sampler.DefaultRunConfig().MaxInnerIterationsPerStep, fc.Run.MaxInnerIterationsPerStep)
	assert.Equal(0.1, fc.Run.CoefficientOfVariation)
	assert.Equal(25.0, fc.Priors.CoefficientVariance)
	assert.Equal(2.0, fc.Priors.VarianceShape)

	// Flags the user set win over the file
	sp := defaultParams()
	sp.modelName = "linear"
	sp.run.BurnIn = 500
	changed := func(name string) bool { return name == "model" || name == "burnin" }
	fc.apply(sp, changed)
	assert.Equal("linear", sp.modelName)
	assert.Equal("../res/grouped.dat", sp.dataFile)
	assert.Equal(int64(99), sp.randomSeed)
	assert.Equal(3, sp.chains)
	assert.Equal(500, sp.run.BurnIn)
	assert.Equal(12000, sp.run.TotalRealizations)

	_, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(err)

	bad := filepath.Join(dir, "bad.yaml")
	assert.NoError(os.WriteFile(bad, []byte("chains: [1, 2"), 0644))
	_, err = loadConfig(bad)
	assert.Error(err)
}

func TestSetupErrors(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer

	sp := testParams(t, &buf)
	sp.dataFile = ""
	assert.Error(sp.setup(noneChanged))

	sp = testParams(t, &buf)
	sp.chains = 0
	assert.Error(sp.setup(noneChanged))

	sp = testParams(t, &buf)
	sp.run.ThinningStride = 0
	assert.Error(sp.setup(noneChanged))

	sp = testParams(t, &buf)
	sp.configFile = "../res/does-not-exist.yaml"
	assert.Error(sp.setup(noneChanged))
}

func TestRunModel(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer

	sp := testParams(t, &buf)
	sp.chains = 2
	sp.traceFile = filepath.Join(t.TempDir(), "trace.tsv")
	assert.NoError(sp.setup(noneChanged))
	assert.NoError(RunModel(sp))

	out := buf.String()
	assert.Contains(out, "Dataset LINEAR has 50 rows")
	assert.Contains(out, "Chain 0: log marginal likelihood")
	assert.Contains(out, "Chain 1: log marginal likelihood")
	assert.Contains(out, "beta1")
	assert.Contains(out, "R-hat: beta0=")

	assert.NoError(sp.Close())
	data, err := os.ReadFile(sp.traceFile)
	assert.NoError(err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal("chain\tllk\tbeta0\tbeta1\tsigma2", lines[0])
	assert.Len(lines, 1+2*sp.run.RetainedLength())
	assert.True(strings.HasPrefix(lines[len(lines)-1], "1\t"))
}

func TestRunModelBadModel(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer

	sp := testParams(t, &buf)
	sp.modelName = "mixed"
	assert.NoError(sp.setup(noneChanged))
	assert.Error(RunModel(sp))
}

func TestPriorEvidence(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer

	sp := testParams(t, &buf)
	sp.modelName = "normal"
	sp.priorDraws = 1000
	assert.NoError(sp.setup(noneChanged))
	assert.NoError(PriorEvidence(sp))
	assert.Contains(buf.String(), "Prior evidence from 1000 draws")
}

func TestMonitor(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor()
	m.Observe(sampler.Event{Chain: 1, Phase: sampler.Sampling, Iteration: 1000, Acceptance: 0.25})
	m.Observe(sampler.Event{Chain: 2, Phase: sampler.Failed})

	assert.NoError(m.Start("127.0.0.1:0"))
	defer m.Stop()
	assert.Error(m.Start("127.0.0.1:0"))

	resp, err := http.Get("http://" + m.Addr() + "/metrics")
	assert.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	assert.NoError(err)

	text := string(body)
	assert.Contains(text, `bayesmc_chain_acceptance_ratio{chain="1"} 0.25`)
	assert.Contains(text, `bayesmc_chain_phase{chain="2"} 5`)
	assert.Contains(text, `bayesmc_events_total{phase="SAMPLING"} 1`)
	assert.Contains(text, "bayesmc_chain_failures_total 1")
}

func TestObserverSelection(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer

	sp := testParams(t, &buf)
	assert.Equal(sampler.NopObserver, sp.observer(nil))

	sp.verbose = true
	obs := sp.observer(newMonitor())
	obs.Observe(sampler.Event{Chain: 3, Phase: sampler.Balancing, Iteration: 2000, Acceptance: 0.5})
	assert.Contains(buf.String(), "chain 3 BALANCING")
}
