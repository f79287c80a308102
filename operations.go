package settlement

import (
	"context"
	"fmt"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// Take debits the ledger in favor of recipient: it pays amount out and
// raises the recipient's delta by the same amount.
func (l *Ledger) Take(ctx context.Context, currency types.Currency, recipient types.Participant, amount types.Amount) error {
	if !amount.IsPositive() {
		return opError(session.OpTake, recipient, currency, amount, ErrNonPositiveAmount)
	}
	return l.adjust(ctx, session.OpTake, recipient, currency, amount)
}

// Settle records payer's payment to the ledger. amount is the negative
// delta change; in transfer mode its magnitude is collected from payer
// before any state changes.
func (l *Ledger) Settle(ctx context.Context, currency types.Currency, payer types.Participant, amount types.Amount) error {
	if !amount.IsNegative() {
		return opError(session.OpSettle, payer, currency, amount, ErrNonNegativeAmount)
	}
	return l.adjust(ctx, session.OpSettle, payer, currency, amount)
}

// Mint creates amount of durable claim for owner. The claim lands in the
// store when the session settles. Deltas are not affected.
func (l *Ledger) Mint(ctx context.Context, currency types.Currency, owner types.Participant, amount types.Amount) error {
	if !amount.IsPositive() {
		return opError(session.OpMint, owner, currency, amount, ErrNonPositiveAmount)
	}
	return l.stage(ctx, session.OpMint, owner, currency, amount)
}

// Burn destroys amount of owner's durable claim. The stored balance plus
// claims already staged in the session must cover it.
func (l *Ledger) Burn(ctx context.Context, currency types.Currency, owner types.Participant, amount types.Amount) error {
	if !amount.IsPositive() {
		return opError(session.OpBurn, owner, currency, amount, ErrNonPositiveAmount)
	}
	return l.stage(ctx, session.OpBurn, owner, currency, amount)
}

// CurrencyDelta returns the running delta of participant in currency. It is
// zero outside a session and for untouched keys.
func (l *Ledger) CurrencyDelta(ctx context.Context, participant types.Participant, currency types.Currency) types.Amount {
	s, ok := l.FromContext(ctx)
	if !ok {
		return types.Amount{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deltas[types.Key{Participant: participant, Currency: currency}]
}

// ClaimBalance returns owner's durable claim. Inside a session it includes
// the session's staged mints and burns.
func (l *Ledger) ClaimBalance(ctx context.Context, owner types.Participant, currency types.Currency) (types.Amount, error) {
	base, err := l.store.ClaimBalance(ctx, owner, currency)
	if err != nil {
		return types.Amount{}, err
	}

	s, ok := l.FromContext(ctx)
	if !ok {
		return base, nil
	}

	s.mu.Lock()
	staged := s.staged[types.Key{Participant: owner, Currency: currency}]
	s.mu.Unlock()

	total, err := base.Add(staged)
	if err != nil {
		return types.Amount{}, ErrArithmeticOverflow
	}
	return total, nil
}

// adjust applies a take or settle to the running delta.
func (l *Ledger) adjust(ctx context.Context, op session.Op, p types.Participant, c types.Currency, amount types.Amount) error {
	s, err := l.current(ctx)
	if err != nil {
		return opError(op, p, c, amount, err)
	}

	key := types.Key{Participant: p, Currency: c}
	ev := &session.Event{
		SessionID:   s.id,
		Op:          op,
		Participant: p,
		Currency:    c,
		Amount:      amount,
	}
	if err := l.veto(ctx, s, ev); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.live(); err != nil {
		s.mu.Unlock()
		return opError(op, p, c, amount, err)
	}
	if err := s.admit(key); err != nil {
		s.mu.Unlock()
		return opError(op, p, c, amount, err)
	}

	next, err := s.deltas[key].Add(amount)
	if err != nil {
		s.fault = ErrArithmeticOverflow
		s.mu.Unlock()
		return opError(op, p, c, amount, ErrArithmeticOverflow)
	}

	if op == session.OpSettle && l.custodian != nil {
		magnitude, err := amount.Neg()
		if err != nil {
			s.fault = ErrArithmeticOverflow
			s.mu.Unlock()
			return opError(op, p, c, amount, ErrArithmeticOverflow)
		}
		if err := l.custodian.Collect(ctx, c, p, magnitude); err != nil {
			s.mu.Unlock()
			return opError(op, p, c, amount, fmt.Errorf("%w: %w", ErrTransferFailed, err))
		}
		s.paid = append(s.paid, transfer{key: key, amount: magnitude})
	}

	s.setDelta(key, next)
	s.touch(key)
	s.ops++
	ev.Delta = next
	s.mu.Unlock()

	l.logger.Debug("operation applied",
		"session_id", s.id.String(),
		"op", string(op),
		"participant", p.String(),
		"currency", c.String(),
		"amount", amount.String(),
		"delta", next.String(),
	)
	l.plugins.EmitOperation(ctx, ev)

	return nil
}

// stage records a mint or burn against the session's staged claims.
func (l *Ledger) stage(ctx context.Context, op session.Op, owner types.Participant, c types.Currency, amount types.Amount) error {
	s, err := l.current(ctx)
	if err != nil {
		return opError(op, owner, c, amount, err)
	}

	key := types.Key{Participant: owner, Currency: c}
	ev := &session.Event{
		SessionID:   s.id,
		Op:          op,
		Participant: owner,
		Currency:    c,
		Amount:      amount,
	}
	if err := l.veto(ctx, s, ev); err != nil {
		return err
	}

	// The committed balance cannot move while this session holds the lock.
	base, err := l.store.ClaimBalance(ctx, owner, c)
	if err != nil {
		return opError(op, owner, c, amount, err)
	}

	s.mu.Lock()
	if err := s.live(); err != nil {
		s.mu.Unlock()
		return opError(op, owner, c, amount, err)
	}
	if err := s.admit(key); err != nil {
		s.mu.Unlock()
		return opError(op, owner, c, amount, err)
	}

	staged := s.staged[key]
	available, err := base.Add(staged)
	if err != nil {
		s.fault = ErrArithmeticOverflow
		s.mu.Unlock()
		return opError(op, owner, c, amount, ErrArithmeticOverflow)
	}

	change := claim.Change{Owner: owner, Currency: c, Amount: amount, Kind: claim.KindMint}
	if op == session.OpBurn {
		if available.Cmp(amount) < 0 {
			s.mu.Unlock()
			return opError(op, owner, c, amount, ErrInsufficientBalance)
		}
		neg, _ := amount.Neg() //nolint:errcheck // amount is positive
		change.Amount = neg
		change.Kind = claim.KindBurn
	}

	// Check both the staged net and the resulting durable total.
	nextStaged, err := staged.Add(change.Amount)
	if err == nil {
		_, err = available.Add(change.Amount)
	}
	if err != nil {
		s.fault = ErrArithmeticOverflow
		s.mu.Unlock()
		return opError(op, owner, c, amount, ErrArithmeticOverflow)
	}

	s.staged[key] = nextStaged
	s.claims = append(s.claims, change)
	s.touch(key)
	s.ops++
	ev.Delta = s.deltas[key]
	s.mu.Unlock()

	l.logger.Debug("claim staged",
		"session_id", s.id.String(),
		"op", string(op),
		"owner", owner.String(),
		"currency", c.String(),
		"amount", amount.String(),
	)
	l.plugins.EmitOperation(ctx, ev)

	return nil
}

// current resolves the live session carried by ctx.
func (l *Ledger) current(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(sessionKey{l}).(*Session)
	if !ok || s == nil || !l.lock.IsOpen() {
		return nil, ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return nil, err
	}
	return s, nil
}

// veto runs the BeforeOperation hooks without holding the session mutex so
// hooks may re-enter the ledger.
func (l *Ledger) veto(ctx context.Context, s *Session, ev *session.Event) error {
	s.mu.Lock()
	ev.Delta = s.deltas[types.Key{Participant: ev.Participant, Currency: ev.Currency}]
	s.mu.Unlock()

	if err := l.plugins.RunBeforeOperation(ctx, ev); err != nil {
		l.logger.Debug("operation rejected",
			"session_id", s.id.String(),
			"op", string(ev.Op),
			"error", err,
		)
		return opError(ev.Op, ev.Participant, ev.Currency, ev.Amount, fmt.Errorf("%w: %w", ErrHookRejected, err))
	}
	return nil
}

func opError(op session.Op, p types.Participant, c types.Currency, amount types.Amount, err error) error {
	return &OperationError{
		Op:          string(op),
		Participant: p,
		Currency:    c,
		Amount:      amount,
		Err:         err,
	}
}

