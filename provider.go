package metrics

import "time"

// Provider constructs instruments used to record metrics.
// Implementations must be safe for concurrent use.
//
// The returned interfaces only cover recording; read access goes through
// Inspector or through the concrete instruments.
type Provider interface {
	Timer(name string, opts ...InstrumentOption) DurationRecorder
	Meter(name string, opts ...InstrumentOption) EventMarker
	Histogram(name string, opts ...InstrumentOption) ValueRecorder
}

type InstrumentType string

const (
	InstrumentTypeTimer     InstrumentType = "timer"
	InstrumentTypeMeter     InstrumentType = "meter"
	InstrumentTypeHistogram InstrumentType = "histogram"
)

func (t InstrumentType) String() string { return string(t) }

// DurationRecorder records durations of events (e.g., request latency).
// Methods must be safe for concurrent use.
type DurationRecorder interface {
	Update(d int64, unit TimeUnit)
	UpdateDuration(d time.Duration)
	UpdateSince(start time.Time)
	Start() *Stopwatch
}

// EventMarker records occurrences of events.
// Methods must be safe for concurrent use.
type EventMarker interface {
	Mark()
	MarkN(n int64)
}

// ValueRecorder records a distribution of int64 values.
// Methods must be safe for concurrent use.
type ValueRecorder interface {
	Update(v int64)
}

const (
	defaultDurationUnit = Milliseconds
	defaultRateUnit     = Seconds
	defaultEventType    = "events"
)

// InstrumentConfig carries instrument metadata and units.
// Units only apply to the instrument types that have them.
type InstrumentConfig struct {
	Description string
	// Unit is an advisory unit for histogram values (e.g., "bytes").
	Unit string
	// DurationUnit is the unit timer durations are reported in. Default: milliseconds.
	DurationUnit TimeUnit
	// RateUnit is the unit timer and meter rates are reported in. Default: seconds.
	RateUnit TimeUnit
	// EventType labels what a meter counts. Default: "events". Timers always count "calls".
	EventType string
	// Attributes are static key-value pairs associated with the instrument itself.
	// Cardinality is bounded. Exporters may ignore attributes.
	Attributes map[string]string
}

// InstrumentOption mutates InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets an advisory description for the instrument.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets an advisory unit for histogram values (e.g., "1", "bytes").
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}

// WithDurationUnit sets the unit a timer reports durations in.
func WithDurationUnit(u TimeUnit) InstrumentOption {
	return func(c *InstrumentConfig) { c.DurationUnit = u }
}

// WithRateUnit sets the unit a timer or meter reports rates in.
func WithRateUnit(u TimeUnit) InstrumentOption {
	return func(c *InstrumentConfig) { c.RateUnit = u }
}

// WithEventType sets what a meter counts (e.g., "requests").
func WithEventType(eventType string) InstrumentOption {
	return func(c *InstrumentConfig) { c.EventType = eventType }
}

// WithAttributes attaches static attributes to the instrument (bounded cardinality only).
func WithAttributes(attrs map[string]string) InstrumentOption {
	return func(c *InstrumentConfig) {
		if len(attrs) == 0 {
			return
		}
		// copy to avoid external mutation
		if c.Attributes == nil {
			c.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			c.Attributes[k] = v
		}
	}
}
