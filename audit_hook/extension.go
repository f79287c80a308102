// Package audithook bridges settlement session events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/plugin"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnSessionOpened    = (*Extension)(nil)
	_ plugin.OnSessionClosed    = (*Extension)(nil)
	_ plugin.OnSessionAborted   = (*Extension)(nil)
	_ plugin.OnSettlementFailed = (*Extension)(nil)
	_ plugin.OnOperation        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges session events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Session lifecycle hooks
// ──────────────────────────────────────────────────

// OnSessionOpened implements plugin.OnSessionOpened.
func (e *Extension) OnSessionOpened(ctx context.Context, sessionID id.SessionID) error {
	return e.record(ctx, ActionSessionOpened, SeverityInfo, OutcomeSuccess,
		ResourceSession, sessionID.String(), CategorySession, nil,
	)
}

// OnSessionClosed implements plugin.OnSessionClosed.
func (e *Extension) OnSessionClosed(ctx context.Context, rec *session.Record) error {
	return e.record(ctx, ActionSessionSettled, SeverityInfo, OutcomeSuccess,
		ResourceSession, rec.ID.String(), CategorySession, nil,
		"operations", rec.Operations,
		"touched", len(rec.Touched),
		"claims", len(rec.Claims),
		"duration_ms", rec.Duration().Milliseconds(),
	)
}

// OnSessionAborted implements plugin.OnSessionAborted.
func (e *Extension) OnSessionAborted(ctx context.Context, sessionID id.SessionID, cause error) error {
	return e.record(ctx, ActionSessionAborted, SeverityWarning, OutcomeFailure,
		ResourceSession, sessionID.String(), CategorySession, cause,
	)
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (e *Extension) OnSettlementFailed(ctx context.Context, sessionID id.SessionID, key types.Key, residual types.Amount) error {
	return e.record(ctx, ActionSettlementFailed, SeverityError, OutcomeFailure,
		ResourceSession, sessionID.String(), CategorySettlement, nil,
		"participant", key.Participant.String(),
		"currency", key.Currency.String(),
		"residual", residual.String(),
	)
}

// ──────────────────────────────────────────────────
// Operation hooks
// ──────────────────────────────────────────────────

// OnOperation implements plugin.OnOperation.
func (e *Extension) OnOperation(ctx context.Context, ev *session.Event) error {
	action, resource, category := ActionTake, ResourceDelta, CategorySettlement
	switch ev.Op {
	case session.OpSettle:
		action = ActionSettle
	case session.OpMint:
		action, resource, category = ActionClaimMinted, ResourceClaim, CategoryClaims
	case session.OpBurn:
		action, resource, category = ActionClaimBurned, ResourceClaim, CategoryClaims
	}

	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		resource, ev.Participant.String(), category, nil,
		"session_id", ev.SessionID.String(),
		"currency", ev.Currency.String(),
		"amount", ev.Amount.String(),
		"delta", ev.Delta.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
