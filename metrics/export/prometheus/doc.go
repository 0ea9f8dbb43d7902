// Package prometheus renders goGuard engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads [goGuard.Engine.MetricsSnapshot] on every
// scrape. Counters are grouped into one family per flow, for example
//
//	goguard_login_attempts_total{outcome="banned"} 3
//	goguard_split_token_operations_total{purpose="autologin",op="rotated"} 12
//	goguard_audit_events_lost_total{reason="sink_panic"} 0
//
// plus the goguard_login_latency_seconds histogram. Nothing is registered
// globally; callers mount the Handler.
package prometheus
