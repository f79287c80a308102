package settlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// feeHook mints a fee claim for the treasury on every take. It calls back
// into the ledger from inside BeforeOperation.
type feeHook struct {
	l        *settlement.Ledger
	treasury types.Participant
}

func (h *feeHook) Name() string { return "fee" }

func (h *feeHook) BeforeOperation(ctx context.Context, ev *session.Event) error {
	if ev.Op != session.OpTake {
		return nil
	}
	return h.l.Mint(ctx, ev.Currency, h.treasury, types.NewAmount(1))
}

type denyMint struct{}

func (denyMint) Name() string { return "deny-mint" }

func (denyMint) BeforeOperation(_ context.Context, ev *session.Event) error {
	if ev.Op == session.OpMint {
		return errors.New("minting disabled")
	}
	return nil
}

type lifecycle struct {
	mu       sync.Mutex
	opened   int
	closed   []*session.Record
	aborted  []error
	failures []types.Key
	ops      []session.Event
}

func (p *lifecycle) Name() string { return "lifecycle" }

func (p *lifecycle) OnSessionOpened(context.Context, id.SessionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened++
	return nil
}

func (p *lifecycle) OnSessionClosed(_ context.Context, rec *session.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, rec)
	return nil
}

func (p *lifecycle) OnSessionAborted(_ context.Context, _ id.SessionID, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aborted = append(p.aborted, cause)
	return nil
}

func (p *lifecycle) OnSettlementFailed(_ context.Context, _ id.SessionID, key types.Key, _ types.Amount) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, key)
	return nil
}

func (p *lifecycle) OnOperation(_ context.Context, ev *session.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, *ev)
	return nil
}

func TestBeforeOperationMayReenterLedger(t *testing.T) {
	treasury := types.MustParticipant("0x0000000000000000000000000000000000000fee")
	hook := &feeHook{treasury: treasury}
	l := newLedger(t, settlement.WithPlugin(hook))
	hook.l = l

	err := l.Unlock(context.Background(), func(ctx context.Context) error {
		if err := l.Take(ctx, usd, alice, amt(10)); err != nil {
			return err
		}
		return l.Settle(ctx, usd, alice, amt(-10))
	})
	require.NoError(t, err)

	bal, err := l.ClaimBalance(context.Background(), treasury, usd)
	require.NoError(t, err)
	assert.Equal(t, "1", bal.String())
}

func TestBeforeOperationRejects(t *testing.T) {
	l := newLedger(t, settlement.WithPlugin(denyMint{}))

	err := l.Unlock(context.Background(), func(ctx context.Context) error {
		err := l.Mint(ctx, usd, bob, amt(5))
		assert.ErrorIs(t, err, settlement.ErrHookRejected)
		assert.True(t, settlement.IsArgumentViolation(err))

		s, ok := l.FromContext(ctx)
		require.True(t, ok)
		assert.Empty(t, s.Touched())
		return nil
	})
	require.NoError(t, err)

	bal, err := l.ClaimBalance(context.Background(), bob, usd)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestLifecycleHooks(t *testing.T) {
	p := &lifecycle{}
	l := newLedger(t, settlement.WithPlugin(p))
	ctx := context.Background()

	require.NoError(t, l.Unlock(ctx, func(ctx context.Context) error {
		if err := l.Take(ctx, usd, alice, amt(2)); err != nil {
			return err
		}
		return l.Settle(ctx, usd, alice, amt(-2))
	}))

	err := l.Unlock(ctx, func(ctx context.Context) error {
		return l.Take(ctx, eur, bob, amt(1))
	})
	require.ErrorIs(t, err, settlement.ErrUnsettledBalance)

	p.mu.Lock()
	defer p.mu.Unlock()

	assert.Equal(t, 2, p.opened)
	require.Len(t, p.closed, 1)
	assert.Equal(t, 2, p.closed[0].Operations)
	require.Len(t, p.aborted, 1)
	assert.ErrorIs(t, p.aborted[0], settlement.ErrUnsettledBalance)
	assert.Equal(t, []types.Key{{Participant: bob, Currency: eur}}, p.failures)

	require.Len(t, p.ops, 3)
	assert.Equal(t, session.OpTake, p.ops[0].Op)
	assert.Equal(t, "2", p.ops[0].Delta.String())
	assert.True(t, p.ops[1].Delta.IsZero())
}
