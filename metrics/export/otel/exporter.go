package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goGuard.MetricsSnapshot
	AuditDropped() uint64
	AuditFailed() uint64
}

// observedSeries is one labelled series of a family. The attribute set is
// built once at registration.
type observedSeries struct {
	id    goGuard.MetricID
	attrs metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

type observedHistogram struct {
	id      goGuard.MetricID
	buckets metric.Int64ObservableGauge
	le      [8]metric.ObserveOption
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics through one registered callback.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	families     []observedFamily
	histograms   []observedHistogram
	auditLost    metric.Int64ObservableCounter
	dropped      metric.ObserveOption
	sinkPanic    metric.ObserveOption
}

// NewOTelExporter registers the engine's metric families on meter.
func NewOTelExporter(meter metric.Meter, engine *goGuard.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter for any metrics source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:     source,
		families:   make([]observedFamily, 0, len(internaldefs.Families)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
		dropped:    metric.WithAttributes(attribute.String("reason", "dropped")),
		sinkPanic:  metric.WithAttributes(attribute.String("reason", "sink_panic")),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.Families)+2*len(internaldefs.HistogramDefs)+1)

	for _, fam := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(fam.Name, metric.WithDescription(fam.Help))
		if err != nil {
			return nil, fmt.Errorf("create %s counter %s: %w", fam.Flow, fam.Name, err)
		}
		of := observedFamily{instrument: ins, series: make([]observedSeries, 0, len(fam.Series))}
		for _, s := range fam.Series {
			kv := make([]attribute.KeyValue, 0, len(s.Labels)+1)
			kv = append(kv, attribute.String("flow", string(fam.Flow)))
			for _, l := range s.Labels {
				kv = append(kv, attribute.String(l.Name, l.Value))
			}
			of.series = append(of.series, observedSeries{id: s.ID, attrs: metric.WithAttributes(kv...)})
		}
		exporter.families = append(exporter.families, of)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		bucketName := def.Name + "_bucket"
		buckets, err := meter.Int64ObservableGauge(bucketName, metric.WithDescription("Cumulative bucket counts of "+def.Name+" by le."))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", bucketName, err)
		}
		h.buckets = buckets
		for i, le := range internaldefs.HistogramBounds {
			h.le[i] = metric.WithAttributes(attribute.String("le", le), attribute.String("flow", string(def.Flow)))
		}
		countName := def.Name + "_count"
		count, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Sample count of "+def.Name+"."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = count
		observables = append(observables, buckets, count)
		exporter.histograms = append(exporter.histograms, h)
	}

	auditLost, err := meter.Int64ObservableCounter(internaldefs.AuditLossName, metric.WithDescription(internaldefs.AuditLossHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit loss counter: %w", err)
	}
	exporter.auditLost = auditLost
	observables = append(observables, auditLost)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, fam := range e.families {
		for _, s := range fam.series {
			observer.ObserveInt64(fam.instrument, int64(snapshot.Counters[s.id]), s.attrs)
		}
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i := range cumulative {
			observer.ObserveInt64(h.buckets, int64(cumulative[i]), h.le[i])
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditLost, int64(e.source.AuditDropped()), e.dropped)
	observer.ObserveInt64(e.auditLost, int64(e.source.AuditFailed()), e.sinkPanic)
	return nil
}

// Close unregisters the callback. It is safe on a nil exporter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
