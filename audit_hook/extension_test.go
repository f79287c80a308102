package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settlement"
	audithook "github.com/xraph/settlement/audit_hook"
	"github.com/xraph/settlement/store/memory"
	"github.com/xraph/settlement/types"
)

var (
	alice = types.MustParticipant("0x00000000000000000000000000000000000000a1")
	usd   = types.MustCurrency("0x0000000000000000000000000000000000000d01")
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, ev *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Action
	}
	return out
}

func run(t *testing.T, ext *audithook.Extension, body func(ctx context.Context, l *settlement.Ledger) error) error {
	t.Helper()
	l := settlement.New(memory.New(), settlement.WithPlugin(ext))
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l.Unlock(context.Background(), func(ctx context.Context) error {
		return body(ctx, l)
	})
}

func TestSettledSessionIsAudited(t *testing.T) {
	s := &sink{}
	err := run(t, audithook.New(s), func(ctx context.Context, l *settlement.Ledger) error {
		if err := l.Take(ctx, usd, alice, types.NewAmount(5)); err != nil {
			return err
		}
		if err := l.Mint(ctx, usd, alice, types.NewAmount(1)); err != nil {
			return err
		}
		return l.Settle(ctx, usd, alice, types.NewAmount(-5))
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionSessionOpened,
		audithook.ActionTake,
		audithook.ActionClaimMinted,
		audithook.ActionSettle,
		audithook.ActionSessionSettled,
	}, s.actions())

	last := s.events[len(s.events)-1]
	assert.Equal(t, 3, last.Metadata["operations"])
	assert.Equal(t, audithook.OutcomeSuccess, last.Outcome)
}

func TestUnsettledSessionIsAudited(t *testing.T) {
	s := &sink{}
	err := run(t, audithook.New(s), func(ctx context.Context, l *settlement.Ledger) error {
		return l.Take(ctx, usd, alice, types.NewAmount(5))
	})
	require.ErrorIs(t, err, settlement.ErrUnsettledBalance)

	actions := s.actions()
	require.Len(t, actions, 4)
	assert.Equal(t, audithook.ActionSettlementFailed, actions[2])
	assert.Equal(t, audithook.ActionSessionAborted, actions[3])

	failed := s.events[2]
	assert.Equal(t, "5", failed.Metadata["residual"])
	assert.Equal(t, audithook.SeverityError, failed.Severity)
	assert.NotEmpty(t, s.events[3].Reason)
}

func TestEnabledActionsFilter(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s, audithook.WithEnabledActions(audithook.ActionSessionSettled))
	require.NoError(t, run(t, ext, func(context.Context, *settlement.Ledger) error { return nil }))
	assert.Equal(t, []string{audithook.ActionSessionSettled}, s.actions())
}

func TestDisabledActionsFilter(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s, audithook.WithDisabledActions(audithook.ActionSessionOpened))
	require.NoError(t, run(t, ext, func(context.Context, *settlement.Ledger) error { return nil }))
	assert.Equal(t, []string{audithook.ActionSessionSettled}, s.actions())
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	assert.NoError(t, run(t, ext, func(context.Context, *settlement.Ledger) error { return nil }))
}
