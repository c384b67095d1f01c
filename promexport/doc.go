// Package promexport exposes the instruments of a metrics registry to Prometheus.
//
// [NewCollector] wraps any [metrics.Inspector] in a [prometheus.Collector]
// that reads every registered instrument at scrape time:
//
//   - a timer "db_query" becomes the summary <ns>_db_query_duration_<unit>
//     (count, sum and the configured quantiles, in the timer's duration unit)
//     and the gauge <ns>_db_query_timer_rate{window="mean|1m|5m|15m"} in the
//     timer's rate unit;
//   - a meter "jobs" becomes the counter <ns>_jobs_total and the gauge
//     <ns>_jobs_meter_rate{window=...};
//   - a histogram "payload" becomes the summary <ns>_payload.
//
// Instrument names and attribute keys are sanitized to the Prometheus
// charset; attributes become constant labels. When two instruments map to the
// same metric name (for instance "a.b" and "a_b"), the first in (name, type)
// order is exported and the other is skipped with a warning to the logger set
// by [WithLogger], so one clash never fails the whole scrape.
//
// [Handler] serves a single collector on its own registry.
//
// # What this package must NOT do
//
//   - Register anything in the global Prometheus registry.
//   - Create, update or clear instruments.
package promexport
