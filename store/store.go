// Package store defines the persistence contract for settlement.
package store

import (
	"context"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// Store is the unified storage interface for durable claims and the
// settled-session journal. Claim balances are written only through
// CommitSession so that a session's claim changes land together or not at
// all.
type Store interface {
	// Claim methods
	ClaimBalance(ctx context.Context, owner types.Participant, currency types.Currency) (types.Amount, error)
	ListClaims(ctx context.Context, owner types.Participant) ([]*claim.Balance, error)

	// Session methods
	CommitSession(ctx context.Context, rec *session.Record) error
	GetSession(ctx context.Context, sessionID id.SessionID) (*session.Record, error)
	ListSessions(ctx context.Context, opts session.ListOpts) ([]*session.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
