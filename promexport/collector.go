package promexport

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ygrebnov/metrics/v2"
)

// DefaultQuantiles are the quantiles reported for timers and histograms.
var DefaultQuantiles = []float64{0.5, 0.75, 0.95, 0.98, 0.99, 0.999}

const windowLabel = "window"

var _ prometheus.Collector = (*Collector)(nil)

// Logger receives warnings about instruments that cannot be exported.
// *zap.SugaredLogger satisfies it.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Collector is an unchecked prometheus.Collector: the set of instruments can
// grow between scrapes, so Describe sends nothing.
//
// Instruments are exported in (name, type) order. An instrument whose metric
// names clash with an instrument exported before it in the same scrape is
// skipped, and the clash is logged once.
type Collector struct {
	src       metrics.Inspector
	namespace string
	quantiles []float64
	logger    Logger

	warned sync.Map // map[string]struct{}, keyed by "type:name"
}

// Option configures a Collector.
type Option func(*Collector)

// WithNamespace prefixes every exported metric name with ns.
func WithNamespace(ns string) Option {
	return func(c *Collector) { c.namespace = sanitizeName(ns) }
}

// WithQuantiles replaces DefaultQuantiles. Values outside [0, 1] are dropped.
func WithQuantiles(qs ...float64) Option {
	return func(c *Collector) {
		c.quantiles = c.quantiles[:0]
		for _, q := range qs {
			if q >= 0 && q <= 1 {
				c.quantiles = append(c.quantiles, q)
			}
		}
	}
}

// WithLogger sets the logger for skipped instruments.
func WithLogger(l Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// NewCollector returns a Collector reading from src.
func NewCollector(src metrics.Inspector, opts ...Option) *Collector {
	c := &Collector{
		src:       src,
		quantiles: append([]float64(nil), DefaultQuantiles...),
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c
}

// Handler returns an http.Handler serving the instruments of src in the
// Prometheus exposition format.
func Handler(src metrics.Inspector, opts ...Option) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(src, opts...))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.src == nil {
		return
	}
	entries := c.src.ListMetadata()
	slices.SortFunc(entries, func(a, b metrics.InstrumentEntry) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return cmp.Compare(a.Type, b.Type)
	})

	seen := make(map[string]metrics.InstrumentKey)
	for _, e := range entries {
		key := metrics.NewInstrumentKey(e.Type, e.Name)
		names := c.familyNames(e)
		if clash, ok := firstClash(seen, names); ok {
			c.warnSkipped(key, clash, seen[clash])
			continue
		}
		for _, n := range names {
			seen[n] = key
		}

		switch e.Type {
		case metrics.InstrumentTypeTimer:
			if t, cfg, ok := c.src.TimerWithMeta(e.Name); ok {
				c.collectTimer(ch, e.Name, t, cfg)
			}
		case metrics.InstrumentTypeMeter:
			if m, cfg, ok := c.src.MeterWithMeta(e.Name); ok {
				c.collectMeter(ch, e.Name, m, cfg)
			}
		case metrics.InstrumentTypeHistogram:
			if h, cfg, ok := c.src.HistogramWithMeta(e.Name); ok {
				c.collectHistogram(ch, e.Name, h, cfg)
			}
		}
	}
}

func (c *Collector) collectTimer(ch chan<- prometheus.Metric, name string, t *metrics.Timer, cfg metrics.InstrumentConfig) {
	s := t.Snapshot(c.quantiles...)
	labels := constLabels(cfg.Attributes)

	desc := prometheus.NewDesc(
		c.fqName(name, "duration", s.DurationUnit.String()),
		helpOr(cfg.Description, "Duration of timed calls in "+s.DurationUnit.String()+"."),
		nil, labels)
	quantiles := make(map[float64]float64, len(s.Quantiles))
	for i, q := range s.Quantiles {
		quantiles[q] = s.Percentiles[i]
	}
	sendOrInvalid(ch, desc, func() (prometheus.Metric, error) {
		return prometheus.NewConstSummary(desc, uint64(s.Count), s.Sum, quantiles)
	})

	c.collectRates(ch, c.fqName(name, "timer", "rate"), s.EventType, s.RateUnit, labels, [4]float64{
		s.MeanRate, s.OneMinuteRate, s.FiveMinuteRate, s.FifteenMinuteRate,
	})
}

func (c *Collector) collectMeter(ch chan<- prometheus.Metric, name string, m *metrics.Meter, cfg metrics.InstrumentConfig) {
	labels := constLabels(cfg.Attributes)

	desc := prometheus.NewDesc(
		c.fqName(name, "total"),
		helpOr(cfg.Description, "Total number of "+m.EventType()+"."),
		nil, labels)
	sendOrInvalid(ch, desc, func() (prometheus.Metric, error) {
		return prometheus.NewConstMetric(desc, prometheus.CounterValue, float64(m.Count()))
	})

	c.collectRates(ch, c.fqName(name, "meter", "rate"), m.EventType(), m.RateUnit(), labels, [4]float64{
		m.MeanRate(), m.OneMinuteRate(), m.FiveMinuteRate(), m.FifteenMinuteRate(),
	})
}

func (c *Collector) collectHistogram(ch chan<- prometheus.Metric, name string, h *metrics.Histogram, cfg metrics.InstrumentConfig) {
	help := "Distribution of recorded values."
	if cfg.Unit != "" {
		help = "Distribution of recorded values in " + cfg.Unit + "."
	}
	desc := prometheus.NewDesc(c.fqName(name), helpOr(cfg.Description, help), nil, constLabels(cfg.Attributes))

	ps := h.Percentiles(c.quantiles...)
	quantiles := make(map[float64]float64, len(ps))
	for i, q := range c.quantiles {
		quantiles[q] = ps[i]
	}
	sendOrInvalid(ch, desc, func() (prometheus.Metric, error) {
		return prometheus.NewConstSummary(desc, uint64(h.Count()), h.Sum(), quantiles)
	})
}

var windows = [4]string{"mean", "1m", "5m", "15m"}

func (c *Collector) collectRates(ch chan<- prometheus.Metric, fqName, eventType string, unit metrics.TimeUnit, labels prometheus.Labels, rates [4]float64) {
	desc := prometheus.NewDesc(
		fqName,
		"Rate of "+eventType+" per "+strings.TrimSuffix(unit.String(), "s")+", by averaging window.",
		[]string{windowLabel}, labels)
	for i, w := range windows {
		sendOrInvalid(ch, desc, func() (prometheus.Metric, error) {
			return prometheus.NewConstMetric(desc, prometheus.GaugeValue, rates[i], w)
		})
	}
}

// familyNames lists every metric name e exports, including the _sum and
// _count series of summaries, which the Prometheus registry also checks.
func (c *Collector) familyNames(e metrics.InstrumentEntry) []string {
	summary := func(n string) []string { return []string{n, n + "_sum", n + "_count"} }
	switch e.Type {
	case metrics.InstrumentTypeTimer:
		return append(summary(c.fqName(e.Name, "duration", e.Config.DurationUnit.String())),
			c.fqName(e.Name, "timer", "rate"))
	case metrics.InstrumentTypeMeter:
		return []string{c.fqName(e.Name, "total"), c.fqName(e.Name, "meter", "rate")}
	case metrics.InstrumentTypeHistogram:
		return summary(c.fqName(e.Name))
	default:
		return nil
	}
}

func firstClash(seen map[string]metrics.InstrumentKey, names []string) (string, bool) {
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return n, true
		}
	}
	return "", false
}

func (c *Collector) warnSkipped(key metrics.InstrumentKey, name string, owner metrics.InstrumentKey) {
	if c.logger == nil {
		return
	}
	if _, loaded := c.warned.LoadOrStore(key.String(), struct{}{}); loaded {
		return
	}
	c.logger.Warnf("[promexport] skipping %s: metric %s is already exported by %s", key, name, owner)
}

func sendOrInvalid(ch chan<- prometheus.Metric, desc *prometheus.Desc, build func() (prometheus.Metric, error)) {
	m, err := build()
	if err != nil {
		m = prometheus.NewInvalidMetric(desc, err)
	}
	ch <- m
}

func (c *Collector) fqName(name string, suffixes ...string) string {
	parts := make([]string, 0, len(suffixes)+2)
	if c.namespace != "" {
		parts = append(parts, c.namespace)
	}
	parts = append(parts, sanitizeName(name))
	parts = append(parts, suffixes...)
	return strings.Join(parts, "_")
}

func helpOr(desc, fallback string) string {
	if desc != "" {
		return desc
	}
	return fallback
}

func constLabels(attrs map[string]string) prometheus.Labels {
	if len(attrs) == 0 {
		return prometheus.Labels{}
	}
	out := make(prometheus.Labels, len(attrs))
	for k, v := range attrs {
		k = sanitizeName(k)
		if strings.HasPrefix(k, "__") || k == windowLabel || k == "quantile" {
			// reserved
			continue
		}
		out[k] = v
	}
	return out
}

// sanitizeName maps s onto [a-zA-Z_][a-zA-Z0-9_]*.
func sanitizeName(s string) string {
	if s == "" {
		return ""
	}
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
