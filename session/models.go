// Package session models the journal of settled sessions and the events a
// session emits while it is open.
package session

import (
	"time"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/types"
)

// Op names a ledger operation.
type Op string

const (
	OpTake   Op = "take"
	OpSettle Op = "settle"
	OpMint   Op = "mint"
	OpBurn   Op = "burn"
)

// Record is the journal entry written when a session settles. Aborted
// sessions leave no record.
type Record struct {
	types.Entity
	ID         id.SessionID   `json:"id"`
	OpenedAt   time.Time      `json:"opened_at"`
	ClosedAt   time.Time      `json:"closed_at"`
	Operations int            `json:"operations"`
	Touched    []types.Key    `json:"touched"`
	Claims     []claim.Change `json:"claims,omitempty"`
}

// Duration is the time the session held the lock.
func (r *Record) Duration() time.Duration {
	return r.ClosedAt.Sub(r.OpenedAt)
}

// Event describes one applied operation. Delta is the participant's
// running delta after the operation; for mint and burn it is unchanged.
type Event struct {
	SessionID   id.SessionID      `json:"session_id"`
	Op          Op                `json:"op"`
	Participant types.Participant `json:"participant"`
	Currency    types.Currency    `json:"currency"`
	Amount      types.Amount      `json:"amount"`
	Delta       types.Amount      `json:"delta"`
}

// ListOpts pages through the session journal, newest first.
type ListOpts struct {
	Limit  int
	Offset int
}
