package metrics

import (
	"math"
	"slices"
	"sync"
)

// Histogram calculates distribution statistics from a stream of int64 values.
// Min, max, mean and variance are running statistics over every value since
// the last Clear; percentiles and raw values are drawn from the Sample.
// It is safe for concurrent use.
type Histogram struct {
	sample Sample

	mu    sync.Mutex
	count int64
	min   int64
	max   int64
	sum   float64
	// Welford's online variance: running mean and sum of squared deltas.
	m float64
	s float64
}

// NewHistogram constructs a Histogram backed by s.
func NewHistogram(s Sample) *Histogram {
	h := &Histogram{sample: s}
	h.Clear()
	return h
}

// NewDecayingHistogram constructs a Histogram over an exponentially decaying
// sample with the default reservoir size and alpha.
func NewDecayingHistogram(opts ...SampleOption) *Histogram {
	return NewHistogram(NewExpDecaySample(DefaultReservoirSize, DefaultAlpha, opts...))
}

// Clear resets the histogram and its sample.
func (h *Histogram) Clear() {
	h.mu.Lock()
	h.sample.Clear()
	h.count = 0
	h.min, h.max = math.MaxInt64, math.MinInt64
	h.sum = 0
	h.m, h.s = 0, 0
	h.mu.Unlock()
}

// Update records v.
func (h *Histogram) Update(v int64) {
	h.mu.Lock()
	h.sample.Update(v)
	h.count++
	if v < h.min {
		h.min = v
	}
	if v > h.max {
		h.max = v
	}
	h.sum += float64(v)
	x := float64(v)
	if h.count == 1 {
		h.m, h.s = x, 0
	} else {
		prev := h.m
		h.m += (x - prev) / float64(h.count)
		h.s += (x - prev) * (x - h.m)
	}
	h.mu.Unlock()
}

// Count returns the number of values recorded since the last clear.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Max returns the largest recorded value, or 0 if empty.
func (h *Histogram) Max() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return float64(h.max)
}

// Min returns the smallest recorded value, or 0 if empty.
func (h *Histogram) Min() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return float64(h.min)
}

// Mean returns the arithmetic mean of the recorded values, or 0 if empty.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// Sum returns the sum of the recorded values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Variance returns the sample variance of the recorded values.
func (h *Histogram) Variance() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.variance()
}

func (h *Histogram) variance() float64 {
	if h.count <= 1 {
		return 0
	}
	return h.s / float64(h.count-1)
}

// StdDev returns the sample standard deviation of the recorded values.
func (h *Histogram) StdDev() float64 {
	return math.Sqrt(h.Variance())
}

// Percentiles returns one value per requested rank, in request order.
// Ranks are expected in [0, 1]; ranks outside that range are clamped to the
// smallest or largest sampled value and a NaN rank yields NaN. The returned slice is newly allocated
// and owned by the caller.
func (h *Histogram) Percentiles(ps ...float64) []float64 {
	scores := make([]float64, len(ps))
	values := h.sample.Values()
	if len(values) == 0 {
		return scores
	}
	slices.Sort(values)
	n := float64(len(values))
	for i, p := range ps {
		pos := p * (n + 1)
		switch {
		case math.IsNaN(pos):
			scores[i] = math.NaN()
		case pos < 1:
			scores[i] = float64(values[0])
		case pos >= n:
			scores[i] = float64(values[len(values)-1])
		default:
			lower := float64(values[int(pos)-1])
			upper := float64(values[int(pos)])
			scores[i] = lower + (pos-math.Floor(pos))*(upper-lower)
		}
	}
	return scores
}

// Values returns a copy of the sampled values.
func (h *Histogram) Values() []int64 {
	return h.sample.Values()
}
