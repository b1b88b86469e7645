package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/CraigKelly/bayesmc/model"
	"github.com/CraigKelly/bayesmc/prior"
	"github.com/CraigKelly/bayesmc/rand"
	"github.com/CraigKelly/bayesmc/sampler"
)

// fitter builds a fresh model and priors for one chain
type fitter func(gen *rand.Generator) (model.Fitted, *prior.Registry, error)

func newFitter(sp *startupParams, ds *model.Dataset) fitter {
	return func(gen *rand.Generator) (model.Fitted, *prior.Registry, error) {
		m, err := model.New(sp.modelName, ds)
		if err != nil {
			return nil, nil, err
		}
		reg, err := m.Priors(gen, sp.priors)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Priors for %s model", sp.modelName)
		}
		return m, reg, nil
	}
}

func readData(sp *startupParams) (*model.Dataset, error) {
	sp.out.Printf("Reading data from %s\n", sp.dataFile)
	ds, err := model.NewDatasetFromFile(model.DatReader{}, sp.dataFile)
	if err != nil {
		return nil, err
	}
	sp.out.Printf("Dataset %s has %d rows, %d coefficients, %d groups\n", ds.Type, ds.Rows(), ds.Coefficients(), ds.Groups)
	return ds, nil
}

// RunModel fits the model to the data with one or more chains and reports
// the posterior
func RunModel(sp *startupParams) error {
	ds, err := readData(sp)
	if err != nil {
		return err
	}
	newModel := newFitter(sp, ds)

	// Parameter names for the report
	probe, err := model.New(sp.modelName, ds)
	if err != nil {
		return err
	}
	names := probe.Names()

	var mon *monitor
	if sp.monitor {
		mon = newMonitor()
		if err := mon.Start(sp.monitorAddr); err != nil {
			return err
		}
		defer mon.Stop()
	}

	cfg := sp.run
	sp.out.Printf("Model: %s (%d parameters), chains: %d, seed: %d\n", sp.modelName, len(names), sp.chains, sp.randomSeed)
	sp.out.Printf("BurnIn: %d, Total: %d, MaxInner: %d, Stride: %d, Grid: %d\n",
		cfg.BurnIn, cfg.TotalRealizations, cfg.MaxInnerIterationsPerStep, cfg.ThinningStride, cfg.InitialGridSize)

	startTime := time.Now()
	factory := func(id int, gen *rand.Generator) (*sampler.MCMC, error) {
		m, reg, err := newModel(gen)
		if err != nil {
			return nil, err
		}
		mc, err := sampler.NewMCMC(gen, m, reg, cfg)
		if err != nil {
			return nil, err
		}
		mc.Observer = sp.observer(mon)
		return mc, nil
	}

	results, runErr := sampler.RunChains(sp.chains, sp.randomSeed, sp.parallel, factory)
	if mon != nil {
		mon.RunTime.Set(time.Since(startTime).Seconds())
	}
	sp.out.Printf("Sampling took %v\n", time.Since(startTime))

	report(sp, names, results)
	if sp.trace != nil {
		writeTrace(sp, names, results)
	}
	return runErr
}

func report(sp *startupParams, names []string, results []*sampler.Result) {
	converged := 0
	for id, res := range results {
		if res == nil {
			sp.out.Printf("Chain %d: did not run\n", id)
			continue
		}
		if !res.Converged {
			sp.out.Printf("Chain %d: FAILED in %v\n", id, res.FailedIn)
			continue
		}
		converged++

		d := res.Diagnostics
		sp.out.Printf("Chain %d: log marginal likelihood %.4f, acceptance %.3f, llk drift %.4f\n",
			id, res.LogMarginalLikelihood, d.SampleAcceptance, d.LogLikelihoodDrift)
		sp.out.Printf("  %-10s %12s %12s %12s %12s %8s\n", "param", "mean", "sd", "2.5%", "97.5%", "acf(1)")
		for j, name := range names {
			sd := math.Sqrt(res.Covariance.At(j, j))
			lo, hi, err := res.CredibleInterval(j, 0.95)
			if err != nil {
				lo, hi = math.NaN(), math.NaN()
			}
			sp.out.Printf("  %-10s %12.5f %12.5f %12.5f %12.5f %8.3f\n", name, res.Mean[j], sd, lo, hi, d.AutoCorrelation[j])
		}
	}

	if converged > 1 {
		rhat, err := sampler.PotentialScaleReduction(results)
		if err != nil {
			sp.out.Printf("Could not compute R-hat: %v\n", err)
			return
		}
		parts := make([]string, len(rhat))
		for j, r := range rhat {
			parts[j] = fmt.Sprintf("%s=%.4f", names[j], r)
		}
		sp.out.Printf("R-hat: %s\n", strings.Join(parts, " "))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// writeTrace writes the retained samples of every converged chain as TSV
func writeTrace(sp *startupParams, names []string, results []*sampler.Result) {
	sp.out.Printf("Writing retained samples to trace file %v\n", sp.traceFile)
	sp.trace.Printf("chain\tllk\t%s\n", strings.Join(names, "\t"))
	for id, res := range results {
		if res == nil || !res.Converged {
			continue
		}
		for _, s := range res.Chain {
			vals := make([]string, len(s.Theta))
			for j, v := range s.Theta {
				vals[j] = formatFloat(v)
			}
			sp.trace.Printf("%d\t%s\t%s\n", id, formatFloat(s.LogLikelihood), strings.Join(vals, "\t"))
		}
	}
}

// PriorEvidence is the crude Monte Carlo evidence of the model: the mean
// likelihood over draws from the priors
func PriorEvidence(sp *startupParams) error {
	ds, err := readData(sp)
	if err != nil {
		return err
	}

	gen, err := rand.NewGenerator(sp.randomSeed)
	if err != nil {
		return err
	}
	defer gen.Close()

	m, reg, err := newFitter(sp, ds)(gen)
	if err != nil {
		return err
	}
	mc, err := sampler.NewMCMC(gen, m, reg, sp.run)
	if err != nil {
		return err
	}

	lml, err := mc.PriorEvidence(sp.priorDraws)
	if err != nil {
		return err
	}
	sp.out.Printf("Prior evidence from %d draws: log marginal likelihood %.4f\n", sp.priorDraws, lml)
	return nil
}
