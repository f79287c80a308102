package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// Session is the scoped capability returned by Begin. Operations reach it
// through the context Begin returns, never through globals.
type Session struct {
	id       id.SessionID
	ledger   *Ledger
	openedAt time.Time

	mu      sync.Mutex
	deltas  map[types.Key]types.Amount
	touched []types.Key
	seen    map[types.Key]struct{}
	nonzero int
	staged  map[types.Key]types.Amount
	claims  []claim.Change
	paid    []transfer
	ops     int
	fault   error
	closed  bool
}

type sessionKey struct{ l *Ledger }

// transfer is a collection made by a transfer-mode settle.
type transfer struct {
	key    types.Key
	amount types.Amount
}

func newSession(l *Ledger) *Session {
	return &Session{
		id:       id.NewSessionID(),
		ledger:   l,
		openedAt: time.Now().UTC(),
		deltas:   make(map[types.Key]types.Amount),
		seen:     make(map[types.Key]struct{}),
		staged:   make(map[types.Key]types.Amount),
	}
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID { return s.id }

// NonzeroDeltaCount returns how many touched keys currently carry a nonzero
// delta. A session can close only when this is zero.
func (s *Session) NonzeroDeltaCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonzero
}

// Touched returns the keys touched so far in first-touch order.
func (s *Session) Touched() []types.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Key, len(s.touched))
	copy(out, s.touched)
	return out
}

// Err returns the fault that poisoned the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// FromContext returns the live session of l carried by ctx.
func (l *Ledger) FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{l}).(*Session)
	if !ok || s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	return s, true
}

// Begin acquires the lock and opens a session. The returned context carries
// the session and must be passed to every operation. Calling Begin again
// with a context that already carries the live session is a protocol
// violation and poisons it.
func (l *Ledger) Begin(ctx context.Context) (context.Context, *Session, error) {
	if s, ok := l.FromContext(ctx); ok {
		s.poison(ErrAlreadyUnlocked)
		return ctx, nil, ErrAlreadyUnlocked
	}

	if err := l.lock.Unlock(); err != nil {
		return ctx, nil, err
	}

	s := newSession(l)

	l.mu.Lock()
	l.active = s
	l.mu.Unlock()

	l.logger.Debug("session opened", "session_id", s.id.String())
	l.plugins.EmitSessionOpened(ctx, s.id)

	return context.WithValue(ctx, sessionKey{l}, s), s, nil
}

// Close runs the settlement check, commits staged claim changes and
// releases the lock. When a delta is nonzero it returns an
// *UnsettledBalanceError and the session stays open.
func (s *Session) Close(ctx context.Context) error {
	l := s.ledger

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotUnlocked
	}
	if s.fault != nil {
		fault := s.fault
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrSessionAborted, fault)
	}
	if s.nonzero != 0 {
		ue := s.unsettled()
		s.mu.Unlock()

		l.logger.Warn("session unsettled",
			"session_id", s.id.String(),
			"participant", ue.Participant.String(),
			"currency", ue.Currency.String(),
			"residual", ue.Residual.String(),
			"outstanding", ue.Outstanding,
		)
		l.plugins.EmitSettlementFailed(ctx, s.id,
			types.Key{Participant: ue.Participant, Currency: ue.Currency}, ue.Residual)
		return ue
	}

	rec := s.record(time.Now().UTC())
	if err := l.store.CommitSession(ctx, rec); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	s.closed = true
	s.mu.Unlock()

	if err := l.release(s); err != nil {
		return err
	}

	l.logger.Info("session settled",
		"session_id", s.id.String(),
		"operations", rec.Operations,
		"touched", len(rec.Touched),
		"claims", len(rec.Claims),
		"duration", rec.Duration(),
	)
	l.plugins.EmitSessionClosed(ctx, rec)

	return nil
}

// Abort discards the session's deltas and staged claims and releases the
// lock. Funds collected by the session are refunded first when the
// custodian is a Refunder. Aborting a closed session is a no-op.
func (s *Session) Abort(ctx context.Context, cause error) error {
	l := s.ledger

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.deltas = nil
	s.staged = nil
	s.claims = nil
	paid := s.paid
	s.paid = nil
	s.mu.Unlock()

	refundErr := l.refund(ctx, s, paid)

	if err := l.release(s); err != nil {
		return errors.Join(refundErr, err)
	}

	l.logger.Warn("session aborted", "session_id", s.id.String(), "cause", cause)
	l.plugins.EmitSessionAborted(ctx, s.id, cause)

	return refundErr
}

// Unlock runs body inside a session. The session closes when body returns
// nil and aborts on any error or panic, so the lock is always released.
func (l *Ledger) Unlock(ctx context.Context, body func(ctx context.Context) error) error {
	_, err := Run(ctx, l, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx)
	})
	return err
}

// Run is Unlock for bodies that produce a value.
func Run[T any](ctx context.Context, l *Ledger, body func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	sctx, s, err := l.Begin(ctx)
	if err != nil {
		return zero, err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = s.Abort(ctx, fmt.Errorf("settlement: session panicked: %v", r)) //nolint:errcheck // re-panicking
			panic(r)
		}
	}()

	out, err := body(sctx)
	if err != nil {
		if abortErr := s.Abort(ctx, err); abortErr != nil {
			err = errors.Join(err, abortErr)
		}
		return zero, err
	}

	if err := s.Close(sctx); err != nil {
		if abortErr := s.Abort(ctx, err); abortErr != nil {
			err = errors.Join(err, abortErr)
		}
		return zero, err
	}

	return out, nil
}

// refund returns paid to the payers in reverse order. Failures are logged
// and joined; the remaining refunds still run.
func (l *Ledger) refund(ctx context.Context, s *Session, paid []transfer) error {
	r, ok := l.custodian.(Refunder)
	if !ok || len(paid) == 0 {
		return nil
	}

	var errs []error
	for i := len(paid) - 1; i >= 0; i-- {
		t := paid[i]
		if err := r.Refund(ctx, t.key.Currency, t.key.Participant, t.amount); err != nil {
			l.logger.Error("refund failed",
				"session_id", s.id.String(),
				"participant", t.key.Participant.String(),
				"currency", t.key.Currency.String(),
				"amount", t.amount.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrRefundFailed, t.key, err))
		}
	}
	return errors.Join(errs...)
}

// release relocks the ledger after s has been closed or aborted.
func (l *Ledger) release(s *Session) error {
	l.mu.Lock()
	if l.active == s {
		l.active = nil
	}
	l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		l.logger.Error("session lock release failed", "session_id", s.id.String(), "error", err)
		return err
	}
	return nil
}

func (s *Session) poison(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault == nil && !s.closed {
		s.fault = err
	}
}

// live reports why s cannot accept operations. Callers hold s.mu.
func (s *Session) live() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.fault != nil {
		return fmt.Errorf("%w: %w", ErrSessionAborted, s.fault)
	}
	return nil
}

// admit reports whether key may be touched without exceeding the cap.
// Callers hold s.mu.
func (s *Session) admit(key types.Key) error {
	if _, ok := s.seen[key]; ok {
		return nil
	}
	if limit := s.ledger.maxTouchedKeys; limit > 0 && len(s.touched) >= limit {
		return ErrTooManyKeys
	}
	return nil
}

// touch records key in first-touch order. Callers hold s.mu.
func (s *Session) touch(key types.Key) {
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.touched = append(s.touched, key)
}

// setDelta stores next for key, pruning zeros and keeping the nonzero
// count in step. Callers hold s.mu.
func (s *Session) setDelta(key types.Key, next types.Amount) {
	prev := s.deltas[key]
	switch {
	case prev.IsZero() && !next.IsZero():
		s.nonzero++
	case !prev.IsZero() && next.IsZero():
		s.nonzero--
	}
	if next.IsZero() {
		delete(s.deltas, key)
		return
	}
	s.deltas[key] = next
}

// unsettled builds the error for the first nonzero touched key. Callers
// hold s.mu.
func (s *Session) unsettled() *UnsettledBalanceError {
	for _, key := range s.touched {
		if d, ok := s.deltas[key]; ok && !d.IsZero() {
			return &UnsettledBalanceError{
				SessionID:   s.id,
				Participant: key.Participant,
				Currency:    key.Currency,
				Residual:    d,
				Outstanding: s.nonzero,
			}
		}
	}
	return &UnsettledBalanceError{SessionID: s.id, Outstanding: s.nonzero}
}

// record snapshots the session for the journal. Callers hold s.mu.
func (s *Session) record(closedAt time.Time) *session.Record {
	touched := make([]types.Key, len(s.touched))
	copy(touched, s.touched)
	claims := make([]claim.Change, len(s.claims))
	copy(claims, s.claims)

	return &session.Record{
		Entity:     types.NewEntity(),
		ID:         s.id,
		OpenedAt:   s.openedAt,
		ClosedAt:   closedAt,
		Operations: s.ops,
		Touched:    touched,
		Claims:     claims,
	}
}
