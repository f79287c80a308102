// Package plugin is the hook-dispatch surface of settlement. Plugins observe
// the session lifecycle and may veto operations before they touch the
// ledger.
package plugin

import (
	"context"

	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// OnSessionOpened is called after a session acquires the lock.
type OnSessionOpened interface {
	Plugin
	OnSessionOpened(ctx context.Context, sessionID id.SessionID) error
}

// OnSessionClosed is called after a session settles and releases the lock.
type OnSessionClosed interface {
	Plugin
	OnSessionClosed(ctx context.Context, rec *session.Record) error
}

// OnSessionAborted is called after a session is discarded.
type OnSessionAborted interface {
	Plugin
	OnSessionAborted(ctx context.Context, sessionID id.SessionID, cause error) error
}

// OnSettlementFailed is called when a close attempt finds a nonzero delta.
// The session is still open when this fires.
type OnSettlementFailed interface {
	Plugin
	OnSettlementFailed(ctx context.Context, sessionID id.SessionID, key types.Key, residual types.Amount) error
}

// ──────────────────────────────────────────────────
// Operation hooks
// ──────────────────────────────────────────────────

// BeforeOperation runs synchronously on the caller's goroutine before an
// operation is applied. The context carries the open session, so the hook
// may itself call back into the ledger. A non-nil error rejects the
// operation and nothing is mutated.
type BeforeOperation interface {
	Plugin
	BeforeOperation(ctx context.Context, ev *session.Event) error
}

// OnOperation is called after an operation has been applied.
type OnOperation interface {
	Plugin
	OnOperation(ctx context.Context, ev *session.Event) error
}
