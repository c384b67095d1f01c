package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// TimerEventType is the event type of every Timer's meter.
const TimerEventType = "calls"

type timerConfig struct {
	clock clock.Clock
}

// TimerOption configures a Timer constructed by NewTimer.
type TimerOption func(*timerConfig)

// WithTimerClock sets the time source used for timed calls, the meter's rates
// and the histogram's decay.
func WithTimerClock(c clock.Clock) TimerOption {
	return func(cfg *timerConfig) { cfg.clock = c }
}

// TimerConfig holds the units of a Timer. It decodes from text-based formats
// since TimeUnit implements encoding.TextUnmarshaler.
type TimerConfig struct {
	DurationUnit TimeUnit `json:"duration_unit" yaml:"duration_unit"`
	RateUnit     TimeUnit `json:"rate_unit" yaml:"rate_unit"`
}

// Validate reports whether both units are set to supported values.
func (c TimerConfig) Validate() error {
	if !c.DurationUnit.Valid() {
		return errors.Wrapf(ErrInvalidTimeUnit, "duration unit %d", int64(c.DurationUnit))
	}
	if !c.RateUnit.Valid() {
		return errors.Wrapf(ErrInvalidTimeUnit, "rate unit %d", int64(c.RateUnit))
	}
	return nil
}

// Timer aggregates timing durations and provides duration statistics, plus
// throughput statistics via a Meter.
//
// Durations are stored in nanoseconds in an exponentially decaying Histogram
// and reported in the timer's duration unit; rates are reported in its rate
// unit. A Timer is safe for concurrent use.
type Timer struct {
	durationUnit TimeUnit
	rateUnit     TimeUnit
	clock        clock.Clock

	// parity keeps histogram and meter counts in step for readers: updates
	// hold it shared, Count and Snapshot hold it exclusively.
	parity    sync.RWMutex
	histogram *Histogram
	meter     *Meter
}

// NewTimer constructs a Timer reporting durations in durationUnit and rates
// in rateUnit. It panics if either unit is not a valid TimeUnit.
func NewTimer(durationUnit, rateUnit TimeUnit, opts ...TimerOption) *Timer {
	if err := (TimerConfig{DurationUnit: durationUnit, RateUnit: rateUnit}).Validate(); err != nil {
		panic("[metrics] " + err.Error())
	}
	cfg := &timerConfig{}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	t := &Timer{
		durationUnit: durationUnit,
		rateUnit:     rateUnit,
		clock:        cfg.clock,
		histogram:    NewDecayingHistogram(WithSampleClock(cfg.clock)),
		meter:        NewMeter(TimerEventType, rateUnit, WithMeterClock(cfg.clock)),
	}
	t.Clear()
	return t
}

// NewTimerFromConfig is like NewTimer but returns an error for invalid units.
func NewTimerFromConfig(cfg TimerConfig, opts ...TimerOption) (*Timer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewTimer(cfg.DurationUnit, cfg.RateUnit, opts...), nil
}

// DurationUnit returns the unit duration statistics are reported in.
func (t *Timer) DurationUnit() TimeUnit { return t.durationUnit }

// RateUnit returns the unit rate statistics are reported in.
func (t *Timer) RateUnit() TimeUnit { return t.rateUnit }

// EventType returns the type of events the timer measures, always "calls".
func (t *Timer) EventType() string { return t.meter.EventType() }

// Clear drops every recorded duration. The meter's count and rates are kept.
func (t *Timer) Clear() {
	t.histogram.Clear()
}

// Update records a duration of d units.
// Negative durations and units that are not valid TimeUnits are ignored.
func (t *Timer) Update(d int64, unit TimeUnit) {
	if !unit.Valid() {
		return
	}
	t.update(unit.ToNanos(d))
}

// UpdateDuration records d. Negative durations are ignored.
func (t *Timer) UpdateDuration(d time.Duration) {
	t.update(int64(d))
}

// UpdateSince records the time elapsed since start.
func (t *Timer) UpdateSince(start time.Time) {
	t.update(int64(t.clock.Now().Sub(start)))
}

// update records ns in both collaborators or, if ns is negative, in neither.
// Negative values come from clock adjustments while timing.
func (t *Timer) update(ns int64) {
	if ns < 0 {
		return
	}
	t.parity.RLock()
	t.histogram.Update(ns)
	t.meter.Mark()
	t.parity.RUnlock()
}

// Time calls fn and records how long it took. The duration is recorded
// whether fn returns normally, returns an error or panics; fn's results and
// panics reach the caller unchanged.
func Time[T any](t *Timer, fn func() (T, error)) (T, error) {
	start := t.clock.Now()
	defer t.UpdateSince(start)
	return fn()
}

// TimeFunc is Time for work items without a result.
func (t *Timer) TimeFunc(fn func() error) error {
	start := t.clock.Now()
	defer t.UpdateSince(start)
	return fn()
}

// Start begins a scoped measurement, recorded when the returned Stopwatch is
// stopped:
//
//	defer timer.Start().Stop()
func (t *Timer) Start() *Stopwatch {
	return &Stopwatch{timer: t, start: t.clock.Now()}
}

// Count returns the number of durations recorded since the last clear.
func (t *Timer) Count() int64 {
	t.parity.Lock()
	defer t.parity.Unlock()
	return t.histogram.Count()
}

// MeanRate returns the mean rate of timed events per rate unit.
func (t *Timer) MeanRate() float64 { return t.meter.MeanRate() }

// OneMinuteRate returns the one-minute rate of timed events per rate unit.
func (t *Timer) OneMinuteRate() float64 { return t.meter.OneMinuteRate() }

// FiveMinuteRate returns the five-minute rate of timed events per rate unit.
func (t *Timer) FiveMinuteRate() float64 { return t.meter.FiveMinuteRate() }

// FifteenMinuteRate returns the fifteen-minute rate of timed events per rate unit.
func (t *Timer) FifteenMinuteRate() float64 { return t.meter.FifteenMinuteRate() }

// Max returns the longest recorded duration.
func (t *Timer) Max() float64 { return t.fromNanos(t.histogram.Max()) }

// Min returns the shortest recorded duration.
func (t *Timer) Min() float64 { return t.fromNanos(t.histogram.Min()) }

// Mean returns the arithmetic mean of the recorded durations.
func (t *Timer) Mean() float64 { return t.fromNanos(t.histogram.Mean()) }

// StdDev returns the standard deviation of the recorded durations.
func (t *Timer) StdDev() float64 { return t.fromNanos(t.histogram.StdDev()) }

// Sum returns the total of the recorded durations.
func (t *Timer) Sum() float64 { return t.fromNanos(t.histogram.Sum()) }

// Percentiles returns the durations at the given ranks in [0, 1], in request
// order. Ranks outside [0, 1] yield whatever the histogram yields for them.
func (t *Timer) Percentiles(ps ...float64) []float64 {
	scores := t.histogram.Percentiles(ps...)
	for i := range scores {
		scores[i] = t.fromNanos(scores[i])
	}
	return scores
}

// Values returns every duration in the timer's sample, in no particular order.
func (t *Timer) Values() []float64 {
	raw := t.histogram.Values()
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = t.fromNanos(float64(v))
	}
	return out
}

func (t *Timer) fromNanos(ns float64) float64 {
	return t.durationUnit.FromNanos(ns)
}

// TimerSnapshot is a point-in-time copy of a Timer's statistics.
// Durations are in DurationUnit, rates in RateUnit.
type TimerSnapshot struct {
	DurationUnit TimeUnit
	RateUnit     TimeUnit
	EventType    string

	Count       int64
	Min         float64
	Max         float64
	Mean        float64
	StdDev      float64
	Sum         float64
	Quantiles   []float64
	Percentiles []float64

	MeanRate          float64
	OneMinuteRate     float64
	FiveMinuteRate    float64
	FifteenMinuteRate float64
}

// Snapshot returns the timer's statistics together with the durations at the
// given quantiles. No update is half-applied in the result.
func (t *Timer) Snapshot(quantiles ...float64) TimerSnapshot {
	t.parity.Lock()
	defer t.parity.Unlock()
	s := TimerSnapshot{
		DurationUnit:      t.durationUnit,
		RateUnit:          t.rateUnit,
		EventType:         t.meter.EventType(),
		Count:             t.histogram.Count(),
		Min:               t.fromNanos(t.histogram.Min()),
		Max:               t.fromNanos(t.histogram.Max()),
		Mean:              t.fromNanos(t.histogram.Mean()),
		StdDev:            t.fromNanos(t.histogram.StdDev()),
		Sum:               t.fromNanos(t.histogram.Sum()),
		Quantiles:         append([]float64(nil), quantiles...),
		MeanRate:          t.meter.MeanRate(),
		OneMinuteRate:     t.meter.OneMinuteRate(),
		FiveMinuteRate:    t.meter.FiveMinuteRate(),
		FifteenMinuteRate: t.meter.FifteenMinuteRate(),
	}
	s.Percentiles = t.histogram.Percentiles(quantiles...)
	for i := range s.Percentiles {
		s.Percentiles[i] = t.fromNanos(s.Percentiles[i])
	}
	return s
}

// Stopwatch is a running measurement started by Timer.Start.
type Stopwatch struct {
	timer   *Timer
	start   time.Time
	stopped atomic.Bool
}

// Stop records the time elapsed since the stopwatch was started and returns
// it. Only the first call records; later calls return 0.
func (s *Stopwatch) Stop() time.Duration {
	if s == nil || s.timer == nil || !s.stopped.CompareAndSwap(false, true) {
		return 0
	}
	elapsed := s.timer.clock.Now().Sub(s.start)
	s.timer.update(int64(elapsed))
	return elapsed
}
