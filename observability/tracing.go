package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/plugin"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// TracerName is the instrumentation scope of TracingExtension.
const TracerName = "github.com/xraph/settlement"

var (
	_ plugin.Plugin             = (*TracingExtension)(nil)
	_ plugin.OnSessionOpened    = (*TracingExtension)(nil)
	_ plugin.OnSessionClosed    = (*TracingExtension)(nil)
	_ plugin.OnSessionAborted   = (*TracingExtension)(nil)
	_ plugin.OnSettlementFailed = (*TracingExtension)(nil)
	_ plugin.OnOperation        = (*TracingExtension)(nil)
)

// TracingExtension records one span per session. Operations and failed
// close attempts become span events.
type TracingExtension struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTracingExtension creates a TracingExtension. A nil provider uses the
// global one.
func NewTracingExtension(tp trace.TracerProvider) *TracingExtension {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingExtension{
		tracer: tp.Tracer(TracerName),
		spans:  make(map[string]trace.Span),
	}
}

// Name implements plugin.Plugin.
func (t *TracingExtension) Name() string { return "observability-tracing" }

// OnSessionOpened implements plugin.OnSessionOpened.
func (t *TracingExtension) OnSessionOpened(ctx context.Context, sessionID id.SessionID) error {
	_, span := t.tracer.Start(ctx, "settlement.session",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("settlement.session_id", sessionID.String())),
	)

	t.mu.Lock()
	t.spans[sessionID.String()] = span
	t.mu.Unlock()
	return nil
}

// OnOperation implements plugin.OnOperation.
func (t *TracingExtension) OnOperation(_ context.Context, ev *session.Event) error {
	if span := t.span(ev.SessionID, false); span != nil {
		span.AddEvent(string(ev.Op), trace.WithAttributes(
			attribute.String("settlement.participant", ev.Participant.String()),
			attribute.String("settlement.currency", ev.Currency.String()),
			attribute.String("settlement.amount", ev.Amount.String()),
			attribute.String("settlement.delta", ev.Delta.String()),
		))
	}
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (t *TracingExtension) OnSettlementFailed(_ context.Context, sessionID id.SessionID, key types.Key, residual types.Amount) error {
	if span := t.span(sessionID, false); span != nil {
		span.AddEvent("unsettled", trace.WithAttributes(
			attribute.String("settlement.participant", key.Participant.String()),
			attribute.String("settlement.currency", key.Currency.String()),
			attribute.String("settlement.residual", residual.String()),
		))
	}
	return nil
}

// OnSessionClosed implements plugin.OnSessionClosed.
func (t *TracingExtension) OnSessionClosed(_ context.Context, rec *session.Record) error {
	if span := t.span(rec.ID, true); span != nil {
		span.SetAttributes(
			attribute.Int("settlement.operations", rec.Operations),
			attribute.Int("settlement.touched_keys", len(rec.Touched)),
			attribute.Int("settlement.claims", len(rec.Claims)),
		)
		span.SetStatus(codes.Ok, "")
		span.End()
	}
	return nil
}

// OnSessionAborted implements plugin.OnSessionAborted.
func (t *TracingExtension) OnSessionAborted(_ context.Context, sessionID id.SessionID, cause error) error {
	if span := t.span(sessionID, true); span != nil {
		if cause != nil {
			span.RecordError(cause)
			span.SetStatus(codes.Error, cause.Error())
		} else {
			span.SetStatus(codes.Error, "aborted")
		}
		span.End()
	}
	return nil
}

func (t *TracingExtension) span(sessionID id.SessionID, remove bool) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[sessionID.String()]
	if !ok {
		return nil
	}
	if remove {
		delete(t.spans, sessionID.String())
	}
	return span
}
