package sampler

// Sample is one state of a chain: a parameter vector and its log-likelihood
// (which includes the log prior density when produced by the sampler).
// Samples are not modified once created.
type Sample struct {
	Theta         []float64
	LogLikelihood float64
}

// NewSample copies theta
func NewSample(theta []float64, llk float64) *Sample {
	return &Sample{
		Theta:         append([]float64(nil), theta...),
		LogLikelihood: llk,
	}
}

// ByLogLikelihood sorts samples in ascending order of log-likelihood
type ByLogLikelihood []*Sample

func (s ByLogLikelihood) Len() int           { return len(s) }
func (s ByLogLikelihood) Less(i, j int) bool { return s[i].LogLikelihood < s[j].LogLikelihood }
func (s ByLogLikelihood) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Best returns the sample with the highest log-likelihood, or nil. Ties go to
// the earliest sample.
func Best(samples []*Sample) *Sample {
	var best *Sample
	for _, s := range samples {
		if best == nil || s.LogLikelihood > best.LogLikelihood {
			best = s
		}
	}
	return best
}

// Chain is an append-only sequence of samples
type Chain struct {
	samples []*Sample
}

// NewChain returns an empty chain with room for capacity samples
func NewChain(capacity int) *Chain {
	if capacity < 0 {
		capacity = 0
	}
	return &Chain{samples: make([]*Sample, 0, capacity)}
}

// Append adds a sample to the end of the chain
func (c *Chain) Append(s *Sample) {
	c.samples = append(c.samples, s)
}

// Len is the number of samples in the chain
func (c *Chain) Len() int {
	return len(c.samples)
}

// At returns sample i
func (c *Chain) At(i int) *Sample {
	return c.samples[i]
}

// Last returns the most recent sample, or nil for an empty chain
func (c *Chain) Last() *Sample {
	if len(c.samples) < 1 {
		return nil
	}
	return c.samples[len(c.samples)-1]
}

// Best returns the sample with the highest log-likelihood
func (c *Chain) Best() *Sample {
	return Best(c.samples)
}

// Retain discards the first burnIn samples and then keeps the last sample of
// every block of stride samples, so floor((Len - burnIn) / stride) samples
// are returned.
func (c *Chain) Retain(burnIn int, stride int) []*Sample {
	if stride < 1 {
		stride = 1
	}
	if burnIn < 0 {
		burnIn = 0
	}

	var kept []*Sample
	if n := c.Len() - burnIn; n > 0 {
		kept = make([]*Sample, 0, n/stride)
	}
	for i := burnIn + stride - 1; i < c.Len(); i += stride {
		kept = append(kept, c.samples[i])
	}
	return kept
}
