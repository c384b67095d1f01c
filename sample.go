package metrics

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultReservoirSize and DefaultAlpha give a sample that represents
	// roughly the last five minutes of data, the same bias as the Unix
	// five-minute load average.
	DefaultReservoirSize = 1028
	DefaultAlpha         = 0.015

	rescaleThreshold = time.Hour
)

// Sample retains a bounded, statistically representative subset of the
// values it is fed. Implementations must be safe for concurrent use.
type Sample interface {
	Clear()
	Update(v int64)
	// Size returns the number of values currently retained.
	Size() int
	// Values returns a copy of the retained values in no particular order.
	Values() []int64
}

type sampleConfig struct {
	clock clock.Clock
	rnd   *rand.Rand
}

// SampleOption configures a Sample constructed by NewExpDecaySample or NewUniformSample.
type SampleOption func(*sampleConfig)

// WithSampleClock sets the time source used to weight observations.
func WithSampleClock(c clock.Clock) SampleOption {
	return func(cfg *sampleConfig) { cfg.clock = c }
}

// WithSampleSeed makes the sample's random choices reproducible.
func WithSampleSeed(seed uint64) SampleOption {
	return func(cfg *sampleConfig) { cfg.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func newSampleConfig(opts []SampleOption) *sampleConfig {
	cfg := &sampleConfig{}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	if cfg.rnd == nil {
		cfg.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return cfg
}

// ExpDecaySample is an exponentially decaying reservoir. Every value gets the
// priority exp(alpha*age)/u for a uniform u in (0, 1]; the reservoir keeps the
// values with the highest priorities, so newer values are favoured.
//
// See Cormode et al., "Forward Decay: A Practical Time Decay Model for
// Streaming Systems".
type ExpDecaySample struct {
	alpha         float64
	reservoirSize int
	clock         clock.Clock

	mu     sync.Mutex
	rnd    *rand.Rand
	count  int64
	t0, t1 time.Time
	values expDecayHeap
}

// NewExpDecaySample constructs a sample holding at most reservoirSize values
// with decay factor alpha. Non-positive arguments fall back to the defaults.
func NewExpDecaySample(reservoirSize int, alpha float64, opts ...SampleOption) *ExpDecaySample {
	if reservoirSize <= 0 {
		reservoirSize = DefaultReservoirSize
	}
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	cfg := newSampleConfig(opts)
	s := &ExpDecaySample{
		alpha:         alpha,
		reservoirSize: reservoirSize,
		clock:         cfg.clock,
		rnd:           cfg.rnd,
		values:        make(expDecayHeap, 0, reservoirSize),
	}
	s.t0 = s.clock.Now()
	s.t1 = s.t0.Add(rescaleThreshold)
	return s
}

// Clear drops every retained value and restarts the decay landmark.
func (s *ExpDecaySample) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	s.t0 = s.clock.Now()
	s.t1 = s.t0.Add(rescaleThreshold)
	s.values = s.values[:0]
}

// Update adds v to the sample, timestamped with the sample clock.
func (s *ExpDecaySample) Update(v int64) {
	s.update(s.clock.Now(), v)
}

func (s *ExpDecaySample) update(t time.Time, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if !t.Before(s.t1) {
		s.rescale(t)
	}
	item := expDecayItem{
		k: math.Exp(t.Sub(s.t0).Seconds()*s.alpha) / (1 - s.rnd.Float64()),
		v: v,
	}
	if s.values.Len() < s.reservoirSize {
		heap.Push(&s.values, item)
		return
	}
	if item.k > s.values[0].k {
		s.values[0] = item
		heap.Fix(&s.values, 0)
	}
}

// rescale moves the landmark to t so priorities do not overflow. Scaling every
// key by the same positive factor keeps the heap ordered.
func (s *ExpDecaySample) rescale(t time.Time) {
	factor := math.Exp(-s.alpha * t.Sub(s.t0).Seconds())
	s.t0 = t
	s.t1 = t.Add(rescaleThreshold)
	for i := range s.values {
		s.values[i].k *= factor
	}
}

// Count returns the number of updates since the last clear, including values
// that were not retained.
func (s *ExpDecaySample) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Size implements Sample.
func (s *ExpDecaySample) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Len()
}

// Values implements Sample.
func (s *ExpDecaySample) Values() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.values))
	for i, item := range s.values {
		out[i] = item.v
	}
	return out
}

type expDecayItem struct {
	k float64
	v int64
}

// expDecayHeap is a min-heap on priority.
type expDecayHeap []expDecayItem

func (h expDecayHeap) Len() int           { return len(h) }
func (h expDecayHeap) Less(i, j int) bool { return h[i].k < h[j].k }
func (h expDecayHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *expDecayHeap) Push(x any) { *h = append(*h, x.(expDecayItem)) }

func (h *expDecayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// UniformSample keeps an unbiased sample of every value seen using Vitter's
// algorithm R.
type UniformSample struct {
	reservoirSize int

	mu     sync.Mutex
	rnd    *rand.Rand
	count  int64
	values []int64
}

// NewUniformSample constructs a sample holding at most reservoirSize values.
func NewUniformSample(reservoirSize int, opts ...SampleOption) *UniformSample {
	if reservoirSize <= 0 {
		reservoirSize = DefaultReservoirSize
	}
	cfg := newSampleConfig(opts)
	return &UniformSample{
		reservoirSize: reservoirSize,
		rnd:           cfg.rnd,
		values:        make([]int64, 0, reservoirSize),
	}
}

// Clear implements Sample.
func (s *UniformSample) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	s.values = s.values[:0]
}

// Update implements Sample.
func (s *UniformSample) Update(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if len(s.values) < s.reservoirSize {
		s.values = append(s.values, v)
		return
	}
	if r := s.rnd.Int64N(s.count); r < int64(s.reservoirSize) {
		s.values[r] = v
	}
}

// Size implements Sample.
func (s *UniformSample) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Values implements Sample.
func (s *UniformSample) Values() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.values))
	copy(out, s.values)
	return out
}
