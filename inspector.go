package metrics

// Inspector provides read access to registered instruments and their metadata.
// Implementations should return defensive copies of configs.
// WithMeta methods return the instrument (if it exists), a snapshot of its config,
// and a flag of whether it was found.
// Snapshot semantics: best-effort at call time.
// Methods must be safe for concurrent use.
type Inspector interface {
	TimerWithMeta(name string) (*Timer, InstrumentConfig, bool)
	MeterWithMeta(name string) (*Meter, InstrumentConfig, bool)
	HistogramWithMeta(name string) (*Histogram, InstrumentConfig, bool)

	// ListMetadata returns enumeration for admin/debug UIs and exporters.
	ListMetadata() []InstrumentEntry
}

type InstrumentEntry struct {
	Type   InstrumentType
	Name   string
	Config InstrumentConfig // defensive copy
}
