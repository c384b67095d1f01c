/*
Package metrics provides concurrency-safe, in-process timers, meters and
decaying histograms.

# Overview

The central instrument is the Timer. Each recorded duration is fed to two
collaborators:

 1. a Histogram over an exponentially decaying sample (1028 values, alpha
    0.015), which yields min, max, mean, standard deviation, percentiles and
    the sampled values, biased towards roughly the last five minutes;
 2. a Meter, which counts timed events ("calls") and derives their mean rate
    and one-, five- and fifteen-minute exponentially weighted rates.

Durations are stored in nanoseconds and reported in the timer's duration unit;
rates are reported per the timer's rate unit. Units are fixed at construction.

	t := metrics.NewTimer(metrics.Milliseconds, metrics.Seconds)

	t.Update(250, metrics.Microseconds)
	t.UpdateDuration(3 * time.Millisecond)

	user, err := metrics.Time(t, func() (*User, error) {
	    return store.LoadUser(ctx, id)
	})

	func handle() {
	    defer t.Start().Stop()
	    // ...
	}

	fmt.Println(t.Count(), t.Mean(), t.Percentiles(0.5, 0.99), t.OneMinuteRate())

Negative durations (for instance, from wall clock adjustments) are ignored by
both collaborators. Time and Stopwatch record on every exit path, including
errors and panics, and pass results, errors and panics through unchanged.

Clear resets the duration distribution only: the meter keeps its count and
rates. Count reports the histogram count, so it restarts from zero after Clear
while the rates keep describing the whole life of the timer.

All time sources are injectable (WithTimerClock, WithMeterClock,
WithSampleClock) using github.com/benbjohnson/clock, so decay and rates can be
driven by a mock clock in tests. No instrument starts a goroutine: meter
averages are ticked lazily every five seconds on marks and reads.

# Registry

Registry implements two interfaces over named instruments:

 1. Provider: creation of instruments (Timer, Meter, Histogram). Instruments
    are created lazily, deduplicated by (type, name), and the options of the
    first call win.

	type Provider interface {
	  Timer(name string, opts ...InstrumentOption) DurationRecorder
	  Meter(name string, opts ...InstrumentOption) EventMarker
	  Histogram(name string, opts ...InstrumentOption) ValueRecorder
	}

 2. Inspector: read-only access to instruments and their metadata, as used by
    exporters such as the promexport package.

	type Inspector interface {
	  TimerWithMeta(name string) (*Timer, InstrumentConfig, bool)
	  MeterWithMeta(name string) (*Meter, InstrumentConfig, bool)
	  HistogramWithMeta(name string) (*Histogram, InstrumentConfig, bool)
	  ListMetadata() []InstrumentEntry
	}

How it works (high level)

 1. Fast path: look up the instrument in the per-type sync.Map and return it if present.
 2. Slow path: build InstrumentConfig off-lock from options; acquire the per-key mutex; re-check;
    store metadata; create and store the instrument; optionally delete the init mutex entry.
 3. Inspector methods take the same per-key mutex, read instrument and metadata, and return a
    defensive copy of the config so callers cannot mutate internal state.
 4. The registry reports unexpected internal states (for example: "instrument exists but meta
    missing"). In debug and race builds they cause a panic; otherwise they are logged, at most
    ten times per kind, and the registry continues.

Example

	r := metrics.NewRegistry(metrics.WithRegistryLogger(zapLogger.Sugar()))
	r.Timer("db_query", metrics.WithDurationUnit(metrics.Microseconds)).UpdateDuration(d)

	if t, cfg, ok := r.TimerWithMeta("db_query"); ok {
	    fmt.Println(cfg.DurationUnit, t.Snapshot(0.5, 0.99))
	}

NewNoopProvider returns a Provider whose instruments discard everything.

# Build and test

- Run unit tests:

	go test ./...

- Run with the race detector (enables stricter invariant behavior):

	go test -race ./...

- Enable debug build tag (debug invariants enabled):

	go test -tags=debug ./...
*/
package metrics
