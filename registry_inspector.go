package metrics

// copyConfig makes a defensive copy of InstrumentConfig (copies Attributes map).
func copyConfig(in InstrumentConfig) InstrumentConfig {
	out := in
	out.Attributes = nil
	if len(in.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(in.Attributes))
		for k, v := range in.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

func (r *Registry) getInstrumentMeta(key InstrumentKey) (InstrumentConfig, bool) {
	m, ok := r.meta.Load(key)
	if !ok {
		// invariant violation: instrument without meta
		r.reportInvariantViolation(key.Type.String()+"_meta_missing", key)
		return InstrumentConfig{}, false
	}

	c, ok2 := m.(InstrumentConfig)
	if !ok2 {
		// invariant violation: wrong meta type
		r.reportInvariantViolation(key.Type.String()+"_meta_type", key)
		return InstrumentConfig{}, false
	}

	return copyConfig(c), true
}

// withMeta acquires the per-key init mutex, then reads both the instance
// and metadata before unlocking in order to provide a consistent snapshot.
func (r *Registry) withMeta(key InstrumentKey) (interface{}, InstrumentConfig, bool) {
	// not created: skip the lock so inspected-only names leave no init mutex behind
	if _, ok := r.get(key); !ok {
		return nil, InstrumentConfig{}, false
	}

	km := r.keyMu(key)
	km.Lock()
	defer km.Unlock()
	if !r.cfg.doNotCleanupInits {
		// the instrument exists, so no initialization can depend on this entry
		defer r.inits.Delete(key)
	}

	inst, ok := r.get(key)
	if !ok {
		// not created
		return nil, InstrumentConfig{}, false
	}

	c, okOverall := r.getInstrumentMeta(key)

	return inst, c, okOverall
}

// TimerWithMeta implements Inspector.TimerWithMeta for Registry.
// The third return value is true if and only if both the instrument and the meta were found and both valid.
// Invariant violations (e.g., instrument exists but meta missing) are reported via logger.
func (r *Registry) TimerWithMeta(name string) (*Timer, InstrumentConfig, bool) {
	inst, cfg, ok := r.withMeta(NewInstrumentKey(InstrumentTypeTimer, name))
	if inst == nil {
		return nil, cfg, false
	}
	return inst.(*Timer), cfg, ok
}

// MeterWithMeta implements Inspector.MeterWithMeta for Registry.
// The third return value is true if and only if both the instrument and the meta were found and both valid.
func (r *Registry) MeterWithMeta(name string) (*Meter, InstrumentConfig, bool) {
	inst, cfg, ok := r.withMeta(NewInstrumentKey(InstrumentTypeMeter, name))
	if inst == nil {
		return nil, cfg, false
	}
	return inst.(*Meter), cfg, ok
}

// HistogramWithMeta implements Inspector.HistogramWithMeta for Registry.
// The third return value is true if and only if both the instrument and the meta were found and both valid.
func (r *Registry) HistogramWithMeta(name string) (*Histogram, InstrumentConfig, bool) {
	inst, cfg, ok := r.withMeta(NewInstrumentKey(InstrumentTypeHistogram, name))
	if inst == nil {
		return nil, cfg, false
	}
	return inst.(*Histogram), cfg, ok
}

// ListMetadata returns a best-effort snapshot of metadata entries. It does not
// acquire per-key init mutexes for each entry; callers should treat the result
// as a point-in-time snapshot that may race with concurrent creations.
func (r *Registry) ListMetadata() []InstrumentEntry {
	out := make([]InstrumentEntry, 0)
	r.meta.Range(func(k, v interface{}) bool {
		key, ok := k.(InstrumentKey)
		cfg, ok2 := v.(InstrumentConfig)
		if !ok || !ok2 {
			return true // skip invalid entries
		}

		out = append(out, InstrumentEntry{Type: key.Type, Name: key.Name, Config: copyConfig(cfg)})
		return true
	})
	return out
}
