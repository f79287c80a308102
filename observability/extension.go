// Package observability provides metrics and tracing extensions for
// settlement that observe the session lifecycle through plugin hooks.
package observability

import (
	"context"

	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/plugin"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnSessionOpened    = (*MetricsExtension)(nil)
	_ plugin.OnSessionClosed    = (*MetricsExtension)(nil)
	_ plugin.OnSessionAborted   = (*MetricsExtension)(nil)
	_ plugin.OnSettlementFailed = (*MetricsExtension)(nil)
	_ plugin.OnOperation        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide session metrics.
// Register it as a settlement plugin to automatically track settlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Session metrics
	SessionsOpened     Counter
	SessionsSettled    Counter
	SessionsAborted    Counter
	SessionLatency     Histogram
	SessionOperations  Histogram
	SessionTouchedKeys Histogram

	// Settlement metrics
	SettlementFailures Counter

	// Operation metrics
	Takes   Counter
	Settles Counter
	Mints   Counter
	Burns   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Session metrics
		SessionsOpened:     factory.Counter("settlement.session.opened"),
		SessionsSettled:    factory.Counter("settlement.session.settled"),
		SessionsAborted:    factory.Counter("settlement.session.aborted"),
		SessionLatency:     factory.Histogram("settlement.session.latency_ms"),
		SessionOperations:  factory.Histogram("settlement.session.operations"),
		SessionTouchedKeys: factory.Histogram("settlement.session.touched_keys"),

		// Settlement metrics
		SettlementFailures: factory.Counter("settlement.close.unsettled"),

		// Operation metrics
		Takes:   factory.Counter("settlement.op.take"),
		Settles: factory.Counter("settlement.op.settle"),
		Mints:   factory.Counter("settlement.op.mint"),
		Burns:   factory.Counter("settlement.op.burn"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Session lifecycle hooks
// ──────────────────────────────────────────────────

// OnSessionOpened implements plugin.OnSessionOpened.
func (m *MetricsExtension) OnSessionOpened(_ context.Context, _ id.SessionID) error {
	m.SessionsOpened.Inc()
	return nil
}

// OnSessionClosed implements plugin.OnSessionClosed.
func (m *MetricsExtension) OnSessionClosed(_ context.Context, rec *session.Record) error {
	m.SessionsSettled.Inc()
	m.SessionLatency.Observe(float64(rec.Duration().Milliseconds()))
	m.SessionOperations.Observe(float64(rec.Operations))
	m.SessionTouchedKeys.Observe(float64(len(rec.Touched)))
	return nil
}

// OnSessionAborted implements plugin.OnSessionAborted.
func (m *MetricsExtension) OnSessionAborted(_ context.Context, _ id.SessionID, _ error) error {
	m.SessionsAborted.Inc()
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (m *MetricsExtension) OnSettlementFailed(_ context.Context, _ id.SessionID, _ types.Key, _ types.Amount) error {
	m.SettlementFailures.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Operation hooks
// ──────────────────────────────────────────────────

// OnOperation implements plugin.OnOperation.
func (m *MetricsExtension) OnOperation(_ context.Context, ev *session.Event) error {
	switch ev.Op {
	case session.OpTake:
		m.Takes.Inc()
	case session.OpSettle:
		m.Settles.Inc()
	case session.OpMint:
		m.Mints.Inc()
	case session.OpBurn:
		m.Burns.Inc()
	}
	return nil
}
