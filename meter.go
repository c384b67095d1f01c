package metrics

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

type meterConfig struct {
	clock clock.Clock
}

// MeterOption configures a Meter constructed by NewMeter.
type MeterOption func(*meterConfig)

// WithMeterClock sets the time source the meter uses for rates.
func WithMeterClock(c clock.Clock) MeterOption {
	return func(cfg *meterConfig) { cfg.clock = c }
}

// Meter counts events and derives their mean rate and one-, five- and
// fifteen-minute exponentially weighted rates, all expressed per rate unit.
// Averages are ticked lazily from Mark and the rate accessors, so a Meter
// starts no goroutines and needs no Stop. It is safe for concurrent use.
type Meter struct {
	eventType string
	rateUnit  TimeUnit
	clock     clock.Clock
	startTime time.Time

	count       atomic.Int64
	lastTick    atomic.Int64 // unix nanoseconds
	m1, m5, m15 *ewma
}

// NewMeter constructs a Meter for events of the given type, reporting rates
// per rateUnit. It panics if rateUnit is not a valid TimeUnit.
func NewMeter(eventType string, rateUnit TimeUnit, opts ...MeterOption) *Meter {
	if !rateUnit.Valid() {
		panic("[metrics] meter rate unit must be a valid TimeUnit, got " + rateUnit.String())
	}
	cfg := &meterConfig{}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	m := &Meter{
		eventType: eventType,
		rateUnit:  rateUnit,
		clock:     cfg.clock,
		startTime: cfg.clock.Now(),
		m1:        newEWMA(m1Alpha),
		m5:        newEWMA(m5Alpha),
		m15:       newEWMA(m15Alpha),
	}
	m.lastTick.Store(m.startTime.UnixNano())
	return m
}

// EventType returns the label of the events being counted, e.g. "requests".
func (m *Meter) EventType() string { return m.eventType }

// RateUnit returns the unit rates are expressed in.
func (m *Meter) RateUnit() TimeUnit { return m.rateUnit }

// Mark records one event.
func (m *Meter) Mark() { m.MarkN(1) }

// MarkN records n events.
func (m *Meter) MarkN(n int64) {
	m.tickIfNecessary()
	m.count.Add(n)
	m.m1.update(n)
	m.m5.update(n)
	m.m15.update(n)
}

// Count returns the total number of events marked.
func (m *Meter) Count() int64 { return m.count.Load() }

// MeanRate returns the average number of events per rate unit since the meter
// was created.
func (m *Meter) MeanRate() float64 {
	count := m.Count()
	if count == 0 {
		return 0
	}
	elapsed := m.clock.Now().Sub(m.startTime)
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / float64(elapsed) * float64(m.rateUnit.Nanos())
}

// OneMinuteRate returns the one-minute exponentially weighted rate.
func (m *Meter) OneMinuteRate() float64 {
	m.tickIfNecessary()
	return m.m1.rateIn(m.rateUnit)
}

// FiveMinuteRate returns the five-minute exponentially weighted rate.
func (m *Meter) FiveMinuteRate() float64 {
	m.tickIfNecessary()
	return m.m5.rateIn(m.rateUnit)
}

// FifteenMinuteRate returns the fifteen-minute exponentially weighted rate.
func (m *Meter) FifteenMinuteRate() float64 {
	m.tickIfNecessary()
	return m.m15.rateIn(m.rateUnit)
}

// tickIfNecessary applies every whole tick interval that elapsed since the
// last tick, in constant time however long the meter was idle. Only the
// goroutine that wins the CAS on lastTick applies them.
func (m *Meter) tickIfNecessary() {
	old := m.lastTick.Load()
	now := m.clock.Now().UnixNano()
	age := now - old
	if age < int64(tickInterval) {
		return
	}
	next := now - age%int64(tickInterval)
	if !m.lastTick.CompareAndSwap(old, next) {
		return
	}
	ticks := age / int64(tickInterval)
	m.m1.tickN(ticks)
	m.m5.tickN(ticks)
	m.m15.tickN(ticks)
}
