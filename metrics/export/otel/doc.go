// Package otel exposes goGuard engine metrics as OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per metric family
// (login, autologin, ban, token, activation, account, access). Series are
// told apart by attributes: flow on every series, plus outcome, event, or
// purpose and op. The login latency histogram is published as a bucket
// gauge keyed by le and a count gauge. Audit events lost to backpressure
// or a panicking sink share goguard_audit_events_lost_total by reason.
// A single callback reads [goGuard.Engine.MetricsSnapshot] on each
// collection. Callers own the MeterProvider.
package otel
