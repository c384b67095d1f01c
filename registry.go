package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

var (
	_ Provider  = (*Registry)(nil)
	_ Inspector = (*Registry)(nil)

	_ DurationRecorder = (*Timer)(nil)
	_ EventMarker      = (*Meter)(nil)
	_ ValueRecorder    = (*Histogram)(nil)
)

// Registry is an in-memory implementation of Provider and Inspector.
// It is concurrency-safe. Instruments are created on demand by name and
// reused for the same (type, name); the options of the first call win.
type Registry struct {
	cfg    *registryConfig
	logger logger
	clock  clock.Clock

	timers     sync.Map // map[string]*Timer
	meters     sync.Map // map[string]*Meter
	histograms sync.Map // map[string]*Histogram
	meta       sync.Map // map[InstrumentKey]InstrumentConfig
	// per-key init mutexes: protect concurrent initialization for the same key
	inits sync.Map // map[InstrumentKey]*sync.Mutex
	// per-kind invariant report counters
	violations sync.Map // map[string]*atomic.Int32
}

// NewRegistry constructs a new Registry.
// Accepts optional functional options to customize behavior.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := &registryConfig{}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	l := cfg.logger
	if l == nil {
		l = newNoopLogger()
	}
	c := cfg.clock
	if c == nil {
		c = clock.New()
	}
	return &Registry{cfg: cfg, logger: l, clock: c}
}

// keyMu returns a per-key mutex for the given key, creating one if necessary.
// The returned mutex is owned by the registry and should be locked/unlocked by callers.
func (r *Registry) keyMu(key InstrumentKey) *sync.Mutex {
	m, _ := r.inits.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// applyOptions builds InstrumentConfig from options and fills in unit defaults
// for the instrument type. Invalid units are replaced by defaults with a warning.
func (r *Registry) applyOptions(key InstrumentKey, opts []InstrumentOption) InstrumentConfig {
	var cfg InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	switch key.Type {
	case InstrumentTypeTimer:
		cfg.DurationUnit = r.unitOrDefault(key, "duration", cfg.DurationUnit, defaultDurationUnit)
		cfg.RateUnit = r.unitOrDefault(key, "rate", cfg.RateUnit, defaultRateUnit)
		cfg.EventType = TimerEventType
	case InstrumentTypeMeter:
		cfg.DurationUnit = 0
		cfg.RateUnit = r.unitOrDefault(key, "rate", cfg.RateUnit, defaultRateUnit)
		if cfg.EventType == "" {
			cfg.EventType = defaultEventType
		}
	case InstrumentTypeHistogram:
		cfg.DurationUnit, cfg.RateUnit, cfg.EventType = 0, 0, ""
	}
	return cfg
}

func (r *Registry) unitOrDefault(key InstrumentKey, what string, u, def TimeUnit) TimeUnit {
	switch {
	case u == 0:
		return def
	case !u.Valid():
		r.logger.Warnf("[metrics] invalid %s unit %d for %s, using %s", what, int64(u), key, def)
		return def
	default:
		return u
	}
}

// get retrieves an existing instrument by key.
// An entry of the wrong type is reported as an invariant violation and treated as missing.
func (r *Registry) get(key InstrumentKey) (interface{}, bool) {
	var (
		v  interface{}
		ok bool
	)
	switch key.Type {
	case InstrumentTypeTimer:
		if v, ok = r.timers.Load(key.Name); ok {
			if t, typed := v.(*Timer); typed {
				return t, true
			}
		}
	case InstrumentTypeMeter:
		if v, ok = r.meters.Load(key.Name); ok {
			if m, typed := v.(*Meter); typed {
				return m, true
			}
		}
	case InstrumentTypeHistogram:
		if v, ok = r.histograms.Load(key.Name); ok {
			if h, typed := v.(*Histogram); typed {
				return h, true
			}
		}
	}
	if ok {
		// invariant violation: wrong type in map
		r.reportInvariantViolation(key.Type.String()+"_type", key)
	}
	return nil, false
}

// create constructs and stores a new instance into the appropriate sync.Map.
func (r *Registry) create(key InstrumentKey, cfg InstrumentConfig) interface{} {
	switch key.Type {
	case InstrumentTypeTimer:
		t := NewTimer(cfg.DurationUnit, cfg.RateUnit, WithTimerClock(r.clock))
		r.timers.Store(key.Name, t)
		return t
	case InstrumentTypeMeter:
		m := NewMeter(cfg.EventType, cfg.RateUnit, WithMeterClock(r.clock))
		r.meters.Store(key.Name, m)
		return m
	case InstrumentTypeHistogram:
		h := NewDecayingHistogram(WithSampleClock(r.clock))
		r.histograms.Store(key.Name, h)
		return h
	default:
		return nil
	}
}

// Timer returns a timer for the given name (created once).
// If the timer exists with different units, the requested units are ignored
// and a warning is logged.
func (r *Registry) Timer(name string, opts ...InstrumentOption) DurationRecorder {
	key := NewInstrumentKey(InstrumentTypeTimer, name)
	t := r.getOrCreate(key, opts).(*Timer)
	if len(opts) > 0 {
		want := r.applyOptions(key, opts)
		if want.DurationUnit != t.DurationUnit() || want.RateUnit != t.RateUnit() {
			r.logger.Warnf("[metrics] %s already registered with units %s/%s, ignoring %s/%s",
				key, t.DurationUnit(), t.RateUnit(), want.DurationUnit, want.RateUnit)
		}
	}
	return t
}

// Meter returns a meter for the given name (created once).
func (r *Registry) Meter(name string, opts ...InstrumentOption) EventMarker {
	key := NewInstrumentKey(InstrumentTypeMeter, name)
	return r.getOrCreate(key, opts).(*Meter)
}

// Histogram returns a decaying histogram for the given name (created once).
func (r *Registry) Histogram(name string, opts ...InstrumentOption) ValueRecorder {
	key := NewInstrumentKey(InstrumentTypeHistogram, name)
	return r.getOrCreate(key, opts).(*Histogram)
}

// getOrCreate is a helper that implements a fast read path, computes options before
// acquiring locks, and uses a per-key mutex to deduplicate concurrent initializations.
//   - key is a compound "typ:name" key used for both the per-key mutex and meta storage.
//   - opts are the instrument options (passed to applyOptions).
func (r *Registry) getOrCreate(key InstrumentKey, opts []InstrumentOption) interface{} {
	// fast read path using sync.Map loads (safe without a global lock)
	if v, ok := r.get(key); ok {
		return v
	}

	// compute config off-lock to avoid holding per-key mutex during option application
	cfg := r.applyOptions(key, opts)

	// acquire per-key mutex to deduplicate concurrent initializations
	km := r.keyMu(key)
	km.Lock()
	defer km.Unlock()

	// re-check after acquiring per-key mutex
	if v, ok := r.get(key); ok {
		return v
	}
	r.meta.Store(key, cfg)
	inst := r.create(key, cfg)
	r.logger.Debugf("[metrics] created %s", key)
	// optional cleanup: remove the per-key mutex from the inits map to allow GC of mutexes
	// It's safe to delete while holding the mutex; existing goroutines that already
	// hold the pointer will continue to use it, and new callers will get a new mutex.
	if !r.cfg.doNotCleanupInits {
		r.inits.Delete(key)
	}
	return inst
}

// reportInvariantViolation reports unexpected internal states such as
// "instrument exists but meta missing". In release builds it logs up to 10 times per kind;
// in debug builds (or under race detector) it panics to catch bugs early.
func (r *Registry) reportInvariantViolation(kind string, key InstrumentKey) {
	// Avoid spamming logs for the same kind
	const maxReports = 10
	v, _ := r.violations.LoadOrStore(kind, &atomic.Int32{})
	if v.(*atomic.Int32).Add(1) > maxReports {
		return
	}

	msg := "[metrics] invariant violation: " + kind + " for " + key.String()

	// In debug builds, fail fast.
	if isDebugBuild() {
		panic(msg)
	}

	// In release builds, just log a warning.
	r.logger.Warnf("%s", msg)
}

// isDebugBuild reports whether we're in a "debug" or "race" build.
// This uses Go's built-in race detector flag or a debug build tag.
func isDebugBuild() bool {
	return raceBuild || debugBuild
}
