package cmd

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/CraigKelly/bayesmc/model"
	"github.com/CraigKelly/bayesmc/sampler"
)

// fileConfig is the YAML config file. Missing keys keep their defaults.
type fileConfig struct {
	Data     string             `yaml:"data"`
	Model    string             `yaml:"model"`
	Seed     int64              `yaml:"seed"`
	Chains   int                `yaml:"chains"`
	Parallel int                `yaml:"parallel"`
	Trace    string             `yaml:"trace"`
	Run      sampler.RunConfig  `yaml:"run"`
	Priors   model.PriorOptions `yaml:"priors"`
}

func loadConfig(filename string) (*fileConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ config from %s", filename)
	}

	def := defaultParams()
	fc := &fileConfig{
		Model:  def.modelName,
		Seed:   def.randomSeed,
		Chains: def.chains,
		Run:    def.run,
		Priors: def.priors,
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE config %s", filename)
	}
	return fc, nil
}

// apply copies config values into sp for every flag the user did not set
func (fc *fileConfig) apply(sp *startupParams, changed func(string) bool) {
	if !changed("data") && len(fc.Data) > 0 {
		sp.dataFile = fc.Data
	}
	if !changed("model") && len(fc.Model) > 0 {
		sp.modelName = fc.Model
	}
	if !changed("seed") {
		sp.randomSeed = fc.Seed
	}
	if !changed("chains") {
		sp.chains = fc.Chains
	}
	if !changed("parallel") {
		sp.parallel = fc.Parallel
	}
	if !changed("trace") && len(fc.Trace) > 0 {
		sp.traceFile = fc.Trace
	}

	run := fc.Run
	if changed("burnin") {
		run.BurnIn = sp.run.BurnIn
	}
	if changed("total") {
		run.TotalRealizations = sp.run.TotalRealizations
	}
	if changed("stride") {
		run.ThinningStride = sp.run.ThinningStride
	}
	sp.run = run
	sp.priors = fc.Priors
}
