package rand

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator uses a goroutine to populate batches of random numbers from a
// Mersenne twister (MT19937-64). It satisfies math/rand/v2.Source, so gonum
// distributions can draw from it directly.
//
// A Generator belongs to a single chain: the numbers it produces are a
// deterministic function of the seed, so sharing one between chains would
// make every chain depend on the scheduling of the others.
type Generator struct {
	ch   chan uint64
	done chan struct{}
	once sync.Once
}

// NewGenerator starts a new background PRNG based on the given seed
func NewGenerator(seed int64) (*Generator, error) {
	r := mt19937.New()
	r.Seed(seed)
	return start(r), nil
}

// NewGeneratorSlice starts a new background PRNG seeded from a key slice (the
// init_by_array method of the reference MT19937-64 implementation)
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.New("An empty key can not seed the generator")
	}

	r := mt19937.New()
	r.SeedFromSlice(key)
	return start(r), nil
}

func start(r *mt19937.MT19937) *Generator {
	g := &Generator{
		ch:   make(chan uint64, 1024),
		done: make(chan struct{}),
	}

	go func() {
		defer close(g.ch)
		for {
			select {
			case g.ch <- r.Uint64():
			case <-g.done:
				return
			}
		}
	}()

	return g
}

// Close stops the background goroutine. Draws after Close return zero.
func (g *Generator) Close() {
	g.once.Do(func() { close(g.done) })
}

// Uint64 implements math/rand/v2.Source
func (g *Generator) Uint64() uint64 {
	return <-g.ch
}

// Int63 provides the same interface as Go's math/rand, but with pre-generation.
func (g *Generator) Int63() int64 {
	return int64(g.Uint64() & 0x7fffffffffffffff)
}

// Int63n is a copy of the Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Float64 returns a uniform draw in [0, 1)
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// Seeds returns n seeds derived from this generator, one per independent
// chain.
func (g *Generator) Seeds(n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = g.Int63()
	}
	return seeds
}
