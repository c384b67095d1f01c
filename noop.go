package metrics

import "time"

// NewNoopProvider returns a Provider whose instruments discard everything.
func NewNoopProvider() Provider {
	return noopProvider{}
}

type noopProvider struct{}

func (noopProvider) Timer(string, ...InstrumentOption) DurationRecorder { return noopTimer{} }
func (noopProvider) Meter(string, ...InstrumentOption) EventMarker      { return noopMeter{} }
func (noopProvider) Histogram(string, ...InstrumentOption) ValueRecorder {
	return noopHistogram{}
}

type noopTimer struct{}

func (noopTimer) Update(int64, TimeUnit)       {}
func (noopTimer) UpdateDuration(time.Duration) {}
func (noopTimer) UpdateSince(time.Time)        {}

// Start returns a Stopwatch whose Stop records nothing.
func (noopTimer) Start() *Stopwatch { return &Stopwatch{} }

type noopMeter struct{}

func (noopMeter) Mark()       {}
func (noopMeter) MarkN(int64) {}

type noopHistogram struct{}

func (noopHistogram) Update(int64) {}
