// Package settlement provides a session-locked settlement ledger for Go
// applications.
//
// Settlement is a library, not a service. A Ledger lets callers run many
// debits and credits across participants and currencies inside one scoped
// session, and only lets that session end once every obligation it created
// has been paid back. It provides:
//
//   - A fail-fast session lock: at most one session per ledger at a time
//   - Running per-(participant, currency) deltas with a fast-path close check
//   - Durable claim balances created by Mint and destroyed by Burn
//   - Transfer-mode Settle backed by a pluggable Custodian
//   - A journal of settled sessions in memory, SQLite, PostgreSQL or MongoDB
//   - Plugin hooks for auditing, metrics and tracing
//
// # Quick Start
//
//	store := memory.New()
//	l := settlement.New(store)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	err := l.Unlock(ctx, func(ctx context.Context) error {
//	    if err := l.Take(ctx, usdc, alice, types.NewAmount(100)); err != nil {
//	        return err
//	    }
//	    return l.Settle(ctx, usdc, alice, types.NewAmount(-100))
//	})
//
// # Sessions
//
// Unlock opens a session, runs the body with a context that carries it and
// closes it when the body returns nil. Any error or panic aborts the session
// and discards its deltas and staged claims. The lock is released on every
// path. Begin, Session.Close and Session.Abort expose the same lifecycle for
// callers that need to drive it by hand.
//
// Close succeeds only when every touched key has a zero delta. Otherwise it
// returns an *UnsettledBalanceError naming the first outstanding key and the
// session stays open so the caller can settle and try again.
//
// # Durable Claims
//
// Mint and Burn adjust durable balances rather than deltas. Changes are
// staged on the session and written to the store in one commit when the
// session settles:
//
//	l.Unlock(ctx, func(ctx context.Context) error {
//	    return l.Mint(ctx, usdc, bob, types.NewAmount(50))
//	})
//
// # Errors
//
// Errors fall into four classes reported by IsProtocolViolation,
// IsSettlementViolation, IsArgumentViolation and IsArithmeticViolation.
// Protocol and arithmetic violations poison the session; it can only be
// aborted.
//
// # TypeID
//
// Sessions and claim entries use TypeID identifiers:
//
//	sess_01h2xcejqtf2nbrexx3vqjhp41  // Session ID
//	clm_01h455vb4pex5vsknk084sn02q   // Claim entry ID
package settlement
