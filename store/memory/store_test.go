package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/store/memory"
	"github.com/xraph/settlement/types"
)

var (
	alice = types.MustParticipant("0x00000000000000000000000000000000000000a1")
	usdc  = types.MustCurrency("0x00000000000000000000000000000000000000c1")
	weth  = types.MustCurrency("0x00000000000000000000000000000000000000c2")
)

func record(changes ...claim.Change) *session.Record {
	now := time.Now().UTC()
	return &session.Record{
		Entity:   types.NewEntity(),
		ID:       id.NewSessionID(),
		OpenedAt: now,
		ClosedAt: now,
		Claims:   changes,
	}
}

func mint(c types.Currency, v int64) claim.Change {
	return claim.Change{Owner: alice, Currency: c, Amount: types.NewAmount(v), Kind: claim.KindMint}
}

func burn(c types.Currency, v int64) claim.Change {
	return claim.Change{Owner: alice, Currency: c, Amount: types.NewAmount(-v), Kind: claim.KindBurn}
}

func TestCommitSessionAppliesClaims(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.CommitSession(ctx, record(mint(usdc, 100), mint(weth, 7))))
	require.NoError(t, s.CommitSession(ctx, record(burn(usdc, 40))))

	bal, err := s.ClaimBalance(ctx, alice, usdc)
	require.NoError(t, err)
	assert.Equal(t, "60", bal.String())

	claims, err := s.ListClaims(ctx, alice)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, usdc, claims[0].Currency)
	assert.Equal(t, weth, claims[1].Currency)
}

func TestCommitSessionIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.CommitSession(ctx, record(mint(usdc, 10))))

	err := s.CommitSession(ctx, record(mint(weth, 5), burn(usdc, 11)))
	require.ErrorIs(t, err, settlement.ErrInsufficientBalance)

	bal, err := s.ClaimBalance(ctx, alice, weth)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	sessions, err := s.ListSessions(ctx, session.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestCommitSessionRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	rec := record()
	require.NoError(t, s.CommitSession(ctx, rec))
	assert.Error(t, s.CommitSession(ctx, rec))
}

func TestSessionJournal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	first, second, third := record(), record(), record()
	for _, r := range []*session.Record{first, second, third} {
		require.NoError(t, s.CommitSession(ctx, r))
	}

	got, err := s.GetSession(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = s.GetSession(ctx, id.NewSessionID())
	assert.ErrorIs(t, err, settlement.ErrNotFound)

	page, err := s.ListSessions(ctx, session.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, third.ID, page[0].ID)
	assert.Equal(t, second.ID, page[1].ID)

	page, err = s.ListSessions(ctx, session.ListOpts{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestUnknownClaimIsZero(t *testing.T) {
	bal, err := memory.New().ClaimBalance(context.Background(), alice, usdc)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}
