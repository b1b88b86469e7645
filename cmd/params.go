package cmd

import (
	"io"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/CraigKelly/bayesmc/model"
	"github.com/CraigKelly/bayesmc/sampler"
)

// startupParams is everything a command needs: flag values merged with the
// optional config file, plus the loggers we write to.
type startupParams struct {
	configFile  string
	verbose     bool
	dataFile    string
	modelName   string
	randomSeed  int64
	chains      int
	parallel    int
	traceFile   string
	monitor     bool
	monitorAddr string
	priorDraws  int

	run    sampler.RunConfig
	priors model.PriorOptions

	out   *log.Logger
	trace *log.Logger

	closers []io.Closer
}

func defaultParams() *startupParams {
	return &startupParams{
		modelName:   "linear",
		randomSeed:  1,
		chains:      1,
		monitorAddr: ":8000",
		priorDraws:  100000,
		run:         sampler.DefaultRunConfig(),
		priors:      model.DefaultPriorOptions(),
	}
}

// setup merges the config file (flags win when changed is true for them)
// and opens the output and trace loggers.
func (sp *startupParams) setup(changed func(string) bool) error {
	if len(sp.configFile) > 0 {
		fc, err := loadConfig(sp.configFile)
		if err != nil {
			return err
		}
		fc.apply(sp, changed)
	}

	if len(sp.dataFile) < 1 {
		return errors.New("A data file is required (--data or the config file)")
	}
	if sp.chains < 1 {
		return errors.Errorf("Chain count must be > 0, got %d", sp.chains)
	}
	if err := sp.run.Validate(); err != nil {
		return err
	}

	if sp.out == nil {
		sp.out = log.New(os.Stdout, "", log.LstdFlags)
	}

	if len(sp.traceFile) > 0 {
		f, err := os.Create(sp.traceFile)
		if err != nil {
			return errors.Wrapf(err, "Could not create trace file %s", sp.traceFile)
		}
		sp.closers = append(sp.closers, f)
		sp.trace = log.New(f, "", 0)
	}
	return nil
}

// Close releases anything opened by setup
func (sp *startupParams) Close() error {
	var first error
	for _, c := range sp.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	sp.closers = nil
	return first
}

// observer is the progress observer for a chain
func (sp *startupParams) observer(mon *monitor) sampler.Observer {
	var obs []sampler.Observer
	if sp.verbose {
		obs = append(obs, sampler.LogObserver(sp.out))
	}
	if mon != nil {
		obs = append(obs, mon)
	}
	if len(obs) < 1 {
		return sampler.NopObserver
	}
	return sampler.MultiObserver(obs...)
}
