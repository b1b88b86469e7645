package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/bayesmc/buffer"
	"github.com/CraigKelly/bayesmc/prior"
	"github.com/CraigKelly/bayesmc/rand"
)

// Acceptance bands for the two adaptive phases
const (
	BalanceHigh = 0.55
	BalanceLow  = 0.45
	SampleHigh  = 0.35
	SampleLow   = 0.28

	GrowFactor   = 1.44
	ShrinkFactor = 0.64
)

// Model is the statistical model being fit
type Model interface {
	// LogLikelihood of the data given theta. Return -Inf for an impossible
	// theta; an error means theta violates the model's contract and ends
	// the run.
	LogLikelihood(theta []float64) (float64, error)

	// InitialProposal is the first Gaussian guess at the posterior. The
	// coefficient of variation may be used to size the variances.
	InitialProposal(gen *rand.Generator, cv float64) (*Proposal, error)
}

// MCMC is the adaptive Metropolis-Hastings driver for a single chain. An MCMC
// owns its generator, registry and proposal for the length of a run and
// must not be shared between goroutines.
type MCMC struct {
	ID       int      // Chain id reported in events
	Observer Observer // Never nil after NewMCMC

	gen      *rand.Generator
	model    Model
	priors   *prior.Registry
	cfg      RunConfig
	proposal *Proposal
	phase    Phase
	ran      bool

	balanceWindows []*buffer.CircularFloat // last AdaptInterval trial outcomes per dimension
	sampleTried    int
	sampleAccepted int
	llkWindow      *buffer.CircularFloat
}

// NewMCMC checks the configuration and the registry. Configuration errors
// are returned here, before any sampling is done.
func NewMCMC(gen *rand.Generator, model Model, priors *prior.Registry, cfg RunConfig) (*MCMC, error) {
	if gen == nil {
		return nil, errors.Wrap(ErrConfiguration, "A random generator is required")
	}
	if model == nil {
		return nil, errors.Wrap(ErrConfiguration, "A model is required")
	}
	if priors == nil {
		return nil, errors.Wrap(ErrConfiguration, "A prior registry is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := priors.Validate(priors.Dim()); err != nil {
		return nil, err
	}

	return &MCMC{
		Observer:  NopObserver,
		gen:       gen,
		model:     model,
		priors:    priors,
		cfg:       cfg,
		phase:     SeekingStart,
		llkWindow: buffer.NewCircularFloat(2 * AdaptInterval),
	}, nil
}

// Config returns the run settings
func (m *MCMC) Config() RunConfig {
	return m.cfg
}

// Phase is the current phase of the run
func (m *MCMC) Phase() Phase {
	return m.phase
}

// Proposal is the proposal distribution in use (nil before Run)
func (m *MCMC) Proposal() *Proposal {
	return m.proposal
}

func (m *MCMC) emit(iter int, acceptance float64, err error) {
	if m.Observer == nil {
		return
	}
	m.Observer.Observe(Event{
		Chain:      m.ID,
		Phase:      m.phase,
		Iteration:  iter,
		Acceptance: acceptance,
		Err:        err,
	})
}

func (m *MCMC) enter(p Phase) {
	m.phase = p
	m.emit(0, math.NaN(), nil)
}

// fail moves the run to Failed. err is nil for non-convergence.
func (m *MCMC) fail(res *Result, iter int, err error) (*Result, error) {
	res.FailedIn = m.phase
	res.Converged = false
	m.phase = Failed
	res.Phase = Failed
	m.emit(iter, math.NaN(), err)
	return res, err
}

// Run performs the whole run: start search, balancing, sampling and
// finalizing. The Result is never nil. A run that exhausts
// MaxInnerIterationsPerStep reports Converged == false with a nil error;
// numerical and model failures return the error as well.
func (m *MCMC) Run() (*Result, error) {
	res := &Result{
		Phase:                 m.phase,
		FailedIn:              m.phase,
		LogMarginalLikelihood: math.NaN(),
	}
	if m.ran {
		res.Phase = Failed
		return res, errors.Wrap(ErrConfiguration, "An MCMC may only be run once")
	}
	m.ran = true

	proposal, err := m.model.InitialProposal(m.gen, m.cfg.CoefficientOfVariation)
	if err != nil {
		return m.fail(res, 0, errors.Wrap(err, "Initial proposal"))
	}
	if proposal.Dim() != m.priors.Dim() {
		return m.fail(res, 0, errors.Wrapf(ErrConfiguration,
			"Initial proposal has %d dimensions but priors cover %d", proposal.Dim(), m.priors.Dim()))
	}
	m.proposal = proposal

	m.enter(SeekingStart)
	start, err := m.SeekStart(true)
	if err != nil {
		return m.fail(res, 0, err)
	}
	if start == nil {
		return m.fail(res, 0, nil)
	}

	m.enter(Balancing)
	balanced, step, err := m.balance(start)
	if err != nil || balanced == nil {
		return m.fail(res, step, err)
	}

	m.enter(Sampling)
	chain, step, err := m.sample(balanced)
	if err != nil || chain == nil {
		return m.fail(res, step, err)
	}

	m.enter(Finalizing)
	if err := m.finalize(res, chain); err != nil {
		return m.fail(res, 0, err)
	}

	m.enter(Converged)
	res.Phase = Converged
	res.Converged = true
	return res, nil
}

// logLikelihood calls the model and rejects values the sampler can't use
func (m *MCMC) logLikelihood(theta []float64) (float64, error) {
	llk, err := m.model.LogLikelihood(theta)
	if err != nil {
		return 0, &modelError{cause: err}
	}
	if math.IsNaN(llk) || math.IsInf(llk, 1) {
		return 0, errors.Wrapf(ErrNumerical, "Model log-likelihood is %v", llk)
	}
	return llk, nil
}

// score is the log-likelihood plus the log prior density. The model is not
// called when the prior density is zero.
func (m *MCMC) score(theta []float64) (float64, error) {
	lp := m.priors.LogPriorDensity(theta)
	if math.IsNaN(lp) {
		return 0, errors.Wrap(ErrNumerical, "Prior density is NaN")
	}
	if math.IsInf(lp, -1) {
		return lp, nil
	}
	llk, err := m.logLikelihood(theta)
	if err != nil {
		return 0, err
	}
	return llk + lp, nil
}

// accept is the Metropolis test for a log density difference
func (m *MCMC) accept(diff float64) bool {
	if diff >= 0 {
		return true
	}
	return math.Log(m.gen.Float64()) < diff
}

// SeekStart draws from the priors until InitialGridSize draws with a
// finite log-likelihood have been found and returns the best of them. When
// includePrior is set the log prior density is added to each log-likelihood.
// A nil sample with a nil error means InitialGridSize * MaxInnerIterationsPerStep
// draws were made without finding enough feasible points.
func (m *MCMC) SeekStart(includePrior bool) (*Sample, error) {
	maxDraws := int64(m.cfg.InitialGridSize) * int64(m.cfg.MaxInnerIterationsPerStep)

	var best *Sample
	found := 0
	for draws := int64(0); found < m.cfg.InitialGridSize && draws < maxDraws; draws++ {
		theta, err := m.priors.DrawRealization()
		if err != nil {
			return nil, errors.Wrap(err, "Drawing start candidate")
		}

		var llk float64
		if includePrior {
			llk, err = m.score(theta)
		} else {
			llk, err = m.logLikelihood(theta)
		}
		if err != nil {
			return nil, err
		}
		if math.IsInf(llk, -1) {
			continue
		}

		found++
		if best == nil || llk > best.LogLikelihood {
			best = NewSample(theta, llk)
		}
	}

	if found < m.cfg.InitialGridSize {
		return nil, nil
	}
	return best, nil
}

// balance runs the per-dimension scan and returns the last sample. A nil
// sample with nil error is non-convergence at the returned step.
func (m *MCMC) balance(start *Sample) (*Sample, int, error) {
	p := len(start.Theta)
	tried := make([]int, p)
	accepted := make([]int, p)
	m.balanceWindows = make([]*buffer.CircularFloat, p)
	for j := range m.balanceWindows {
		m.balanceWindows[j] = buffer.NewCircularFloat(AdaptInterval)
	}

	prev := start
	for step := 1; step < m.cfg.BurnIn; step++ {
		if err := m.proposal.SetMean(prev.Theta); err != nil {
			return nil, step, err
		}

		if step%AdaptInterval == 0 {
			total := 0.0
			for j := 0; j < p; j++ {
				ratio := float64(accepted[j]) / float64(tried[j])
				total += ratio

				var err error
				if ratio > BalanceHigh {
					err = m.proposal.ScaleVariance(j, GrowFactor)
				} else if ratio < BalanceLow {
					err = m.proposal.ScaleVariance(j, ShrinkFactor)
				}
				if err != nil {
					return nil, step, err
				}
				tried[j], accepted[j] = 0, 0
			}
			m.emit(step, total/float64(p), nil)
		}

		theta := append([]float64(nil), prev.Theta...)
		llk := prev.LogLikelihood
		for j := 0; j < p; j++ {
			perturb := distuv.Normal{
				Mu:    theta[j],
				Sigma: math.Sqrt(m.proposal.Variance(j)),
				Src:   m.gen,
			}

			ok := false
			for try := 0; try < m.cfg.MaxInnerIterationsPerStep; try++ {
				old := theta[j]
				theta[j] = perturb.Rand()
				tried[j]++

				cand, err := m.score(theta)
				if err != nil {
					return nil, step, err
				}
				if !math.IsInf(cand, -1) && m.accept(cand-llk) {
					llk = cand
					accepted[j]++
					m.balanceWindows[j].Add(1)
					ok = true
					break
				}

				m.balanceWindows[j].Add(0)
				theta[j] = old
			}
			if !ok {
				return nil, step, nil
			}
		}

		prev = &Sample{Theta: theta, LogLikelihood: llk}
	}

	return prev, m.cfg.BurnIn, nil
}

// sample runs the joint sampler and returns the main chain, which starts
// with the balanced sample. A nil chain with nil error is non-convergence.
func (m *MCMC) sample(balanced *Sample) (*Chain, int, error) {
	chain := NewChain(m.cfg.TotalRealizations)
	chain.Append(balanced)
	m.llkWindow.Add(balanced.LogLikelihood)

	tried, accepted := 0, 0
	for step := 1; step < m.cfg.TotalRealizations; step++ {
		prev := chain.Last()
		if err := m.proposal.SetMean(prev.Theta); err != nil {
			return nil, step, err
		}

		if step%AdaptInterval == 0 && tried > 0 {
			ratio := float64(accepted) / float64(tried)
			if step < m.cfg.BurnIn {
				var err error
				if ratio > SampleHigh {
					err = m.proposal.Scale(GrowFactor)
				} else if ratio < SampleLow {
					err = m.proposal.Scale(ShrinkFactor)
				}
				if err != nil {
					return nil, step, err
				}
			}
			m.emit(step, ratio, nil)
			tried, accepted = 0, 0
		}

		var next *Sample
		for try := 0; try < m.cfg.MaxInnerIterationsPerStep; try++ {
			theta, err := m.proposal.Sample()
			if err != nil {
				return nil, step, err
			}
			tried++
			m.sampleTried++

			llk, err := m.score(theta)
			if err != nil {
				return nil, step, err
			}
			if !math.IsInf(llk, -1) && m.accept(llk-prev.LogLikelihood) {
				next = &Sample{Theta: theta, LogLikelihood: llk}
				break
			}
		}
		if next == nil {
			return nil, step, nil
		}

		accepted++
		m.sampleAccepted++
		chain.Append(next)
		m.llkWindow.Add(next.LogLikelihood)
	}

	return chain, m.cfg.TotalRealizations, nil
}

// finalize fills in the numeric fields of res from the main chain
func (m *MCMC) finalize(res *Result, chain *Chain) error {
	retained := chain.Retain(m.cfg.BurnIn, m.cfg.ThinningStride)
	if len(retained) < 1 {
		return errors.Wrap(ErrConfiguration, "No samples retained")
	}

	est := NewEstimate(m.proposal.Dim())
	if err := est.AddSamples(retained); err != nil {
		return err
	}
	mean, err := est.Mean()
	if err != nil {
		return err
	}
	cov, err := est.Covariance()
	if err != nil {
		return err
	}

	lml, err := m.logEvidence(retained)
	if err != nil {
		return err
	}

	res.Mean = mean
	res.Covariance = cov
	res.LogMarginalLikelihood = lml
	res.Chain = retained
	res.Diagnostics = m.diagnostics(est)
	return nil
}

func (m *MCMC) diagnostics(est *Estimate) Diagnostics {
	d := Diagnostics{
		SampleAcceptance:   math.NaN(),
		LogLikelihoodDrift: math.NaN(),
		BalanceAcceptance:  make([]float64, len(m.balanceWindows)),
		AutoCorrelation:    make([]float64, est.Dim()),
	}

	for j, w := range m.balanceWindows {
		if w.Count > 0 {
			d.BalanceAcceptance[j] = w.Mean()
		} else {
			d.BalanceAcceptance[j] = math.NaN()
		}
	}
	if m.sampleTried > 0 {
		d.SampleAcceptance = float64(m.sampleAccepted) / float64(m.sampleTried)
	}
	if m.llkWindow.Full() {
		older := m.llkWindow.FirstHalf().Values()
		newer := m.llkWindow.SecondHalf().Values()
		d.LogLikelihoodDrift = stat.Mean(newer, nil) - stat.Mean(older, nil)
	}
	for j := range d.AutoCorrelation {
		ac, err := est.AutoCorrelation(j, 1)
		if err != nil {
			ac = math.NaN()
		}
		d.AutoCorrelation[j] = ac
	}
	return d
}
