package promexport_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/metrics/v2"
	"github.com/ygrebnov/metrics/v2/promexport"
)

func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func rateByWindow(t *testing.T, mf *dto.MetricFamily) map[string]float64 {
	t.Helper()
	require.Equal(t, dto.MetricType_GAUGE, mf.GetType())
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		out[labelValue(m, "window")] = m.GetGauge().GetValue()
	}
	return out
}

func TestCollector_Timer(t *testing.T) {
	mock := clock.NewMock()
	reg := metrics.NewRegistry(metrics.WithRegistryClock(mock))
	tm := reg.Timer("db.query",
		metrics.WithDescription("Query latency."),
		metrics.WithAttributes(map[string]string{"db": "users"}))
	for _, v := range []int64{10, 20, 30, 40, 50} {
		tm.Update(v, metrics.Milliseconds)
	}
	mock.Add(5 * time.Second)

	mfs := gather(t, promexport.NewCollector(reg, promexport.WithNamespace("app")))

	summary, ok := mfs["app_db_query_duration_milliseconds"]
	require.True(t, ok, "summary family missing")
	assert.Equal(t, dto.MetricType_SUMMARY, summary.GetType())
	assert.Equal(t, "Query latency.", summary.GetHelp())
	require.Len(t, summary.GetMetric(), 1)
	m := summary.GetMetric()[0]
	assert.Equal(t, "users", labelValue(m, "db"))
	assert.Equal(t, uint64(5), m.GetSummary().GetSampleCount())
	assert.Equal(t, 150.0, m.GetSummary().GetSampleSum())

	qs := make(map[float64]float64)
	for _, q := range m.GetSummary().GetQuantile() {
		qs[q.GetQuantile()] = q.GetValue()
	}
	assert.Len(t, qs, len(promexport.DefaultQuantiles))
	assert.InDelta(t, 30.0, qs[0.5], 1e-9)
	assert.InDelta(t, 45.0, qs[0.75], 1e-9)
	assert.InDelta(t, 50.0, qs[0.999], 1e-9)

	rates, ok := mfs["app_db_query_timer_rate"]
	require.True(t, ok, "rate family missing")
	assert.Equal(t, "Rate of calls per second, by averaging window.", rates.GetHelp())
	byWindow := rateByWindow(t, rates)
	assert.Len(t, byWindow, 4)
	for _, w := range []string{"mean", "1m", "5m", "15m"} {
		assert.InDelta(t, 1.0, byWindow[w], 1e-9, w)
	}
}

func TestCollector_Meter(t *testing.T) {
	mock := clock.NewMock()
	reg := metrics.NewRegistry(metrics.WithRegistryClock(mock))
	m := reg.Meter("jobs", metrics.WithEventType("jobs"), metrics.WithRateUnit(metrics.Minutes))
	m.MarkN(10)
	mock.Add(5 * time.Second)

	mfs := gather(t, promexport.NewCollector(reg))

	total, ok := mfs["jobs_total"]
	require.True(t, ok, "counter family missing")
	assert.Equal(t, dto.MetricType_COUNTER, total.GetType())
	assert.Equal(t, 10.0, total.GetMetric()[0].GetCounter().GetValue())

	byWindow := rateByWindow(t, mfs["jobs_meter_rate"])
	assert.InDelta(t, 120.0, byWindow["1m"], 1e-9)
	assert.InDelta(t, 120.0, byWindow["mean"], 1e-9)
}

func TestCollector_Histogram(t *testing.T) {
	reg := metrics.NewRegistry()
	h := reg.Histogram("payload-size", metrics.WithUnit("bytes"))
	h.Update(100)
	h.Update(300)

	mfs := gather(t, promexport.NewCollector(reg, promexport.WithQuantiles(0, 1, 2)))

	mf, ok := mfs["payload_size"]
	require.True(t, ok, "summary family missing")
	assert.Equal(t, "Distribution of recorded values in bytes.", mf.GetHelp())
	s := mf.GetMetric()[0].GetSummary()
	assert.Equal(t, uint64(2), s.GetSampleCount())
	assert.Equal(t, 400.0, s.GetSampleSum())
	require.Len(t, s.GetQuantile(), 2, "out of range quantiles are dropped")
	assert.Equal(t, 100.0, s.GetQuantile()[0].GetValue())
	assert.Equal(t, 300.0, s.GetQuantile()[1].GetValue())
}

func TestCollector_ReservedAttributesAreDropped(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Meter("m", metrics.WithAttributes(map[string]string{"window": "x", "quantile": "y", "host-name": "a"}))

	mfs := gather(t, promexport.NewCollector(reg))
	m := mfs["m_total"].GetMetric()[0]
	assert.Equal(t, "a", labelValue(m, "host_name"))
	assert.Empty(t, labelValue(m, "quantile"))
	assert.Len(t, m.GetLabel(), 1)
}

func TestCollector_EmptyAndNoop(t *testing.T) {
	assert.Empty(t, gather(t, promexport.NewCollector(metrics.NewRegistry())))
	assert.Empty(t, gather(t, promexport.NewCollector(nil)))
}

func TestCollector_PicksUpNewInstruments(t *testing.T) {
	reg := metrics.NewRegistry()
	c := promexport.NewCollector(reg)
	preg := prometheus.NewPedanticRegistry()
	require.NoError(t, preg.Register(c))

	mfs, err := preg.Gather()
	require.NoError(t, err)
	assert.Empty(t, mfs)

	reg.Timer("late").UpdateDuration(time.Millisecond)
	mfs, err = preg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 2)
}

func TestHandler(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Meter("requests").Mark()

	srv := httptest.NewServer(promexport.Handler(reg, promexport.WithNamespace("svc")))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "svc_requests_total 1")
	assert.Contains(t, string(body), `svc_requests_meter_rate{window="1m"}`)
}

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func TestCollector_SameNameTimerAndMeter(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Timer("db").Update(1, metrics.Milliseconds)
	reg.Meter("db").Mark()

	mfs := gather(t, promexport.NewCollector(reg))

	for _, name := range []string{"db_duration_milliseconds", "db_timer_rate", "db_total", "db_meter_rate"} {
		assert.Contains(t, mfs, name)
	}
	assert.Equal(t, "Rate of calls per second, by averaging window.", mfs["db_timer_rate"].GetHelp())
	assert.Equal(t, "Rate of events per second, by averaging window.", mfs["db_meter_rate"].GetHelp())
}

func TestCollector_ClashingNamesAreSkipped(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(r *metrics.Registry)
		family  string
		want    float64
		skipped string
	}{
		{
			name: "sanitized meter names",
			setup: func(r *metrics.Registry) {
				r.Meter("a.b").MarkN(2)
				r.Meter("a_b").MarkN(5)
			},
			family:  "a_b_total",
			want:    2,
			skipped: "meter:a_b",
		},
		{
			name: "histogram over a counter name",
			setup: func(r *metrics.Registry) {
				r.Meter("jobs").MarkN(3)
				r.Histogram("jobs_total").Update(7)
			},
			family:  "jobs_total",
			want:    3,
			skipped: "histogram:jobs_total",
		},
		{
			name: "summary over a summary series",
			setup: func(r *metrics.Registry) {
				r.Histogram("size").Update(7)
				r.Histogram("size_count").Update(4)
			},
			family:  "size",
			skipped: "histogram:size_count",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := metrics.NewRegistry()
			tc.setup(reg)
			log := &recordingLogger{}
			c := promexport.NewCollector(reg, promexport.WithLogger(log))

			mfs := gather(t, c)
			require.Contains(t, mfs, tc.family)
			if tc.want != 0 {
				assert.Equal(t, tc.want, mfs[tc.family].GetMetric()[0].GetCounter().GetValue())
			}

			// a second scrape does not warn again
			gather(t, c)
			require.Len(t, log.warnings, 1)
			assert.Contains(t, log.warnings[0], tc.skipped)
		})
	}
}

func TestHandler_ClashDoesNotFailScrape(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Meter("a.b").Mark()
	reg.Meter("a_b").Mark()
	reg.Timer("db").UpdateDuration(time.Millisecond)
	reg.Meter("db").Mark()

	srv := httptest.NewServer(promexport.Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "a_b_total 1")
	assert.Contains(t, string(body), "db_total 1")
}
