package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const tickInterval = 5 * time.Second

var (
	m1Alpha  = 1 - math.Exp(-float64(tickInterval)/float64(time.Minute))
	m5Alpha  = 1 - math.Exp(-float64(tickInterval)/float64(5*time.Minute))
	m15Alpha = 1 - math.Exp(-float64(tickInterval)/float64(15*time.Minute))
)

// ewma is an exponentially weighted moving average of a rate, ticked every
// tickInterval in the manner of the Unix load average.
type ewma struct {
	alpha     float64
	uncounted atomic.Int64

	mu          sync.Mutex
	initialized bool
	rate        float64 // events per nanosecond
}

func newEWMA(alpha float64) *ewma {
	return &ewma{alpha: alpha}
}

func (e *ewma) update(n int64) {
	e.uncounted.Add(n)
}

// tick folds the events counted since the previous tick into the average.
func (e *ewma) tick() {
	count := e.uncounted.Swap(0)
	instant := float64(count) / float64(tickInterval)
	e.mu.Lock()
	if e.initialized {
		e.rate += e.alpha * (instant - e.rate)
	} else {
		e.rate = instant
		e.initialized = true
	}
	e.mu.Unlock()
}

// tickN is n consecutive ticks. Only the first can fold in uncounted events,
// the rest decay the rate by (1-alpha) each, which underflows to zero after
// a long enough gap.
func (e *ewma) tickN(n int64) {
	if n <= 0 {
		return
	}
	e.tick()
	if n == 1 {
		return
	}
	e.mu.Lock()
	e.rate *= math.Pow(1-e.alpha, float64(n-1))
	e.mu.Unlock()
}

// rateIn returns the average in events per unit.
func (e *ewma) rateIn(unit TimeUnit) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate * float64(unit.Nanos())
}
