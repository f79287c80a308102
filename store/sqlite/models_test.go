package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

var (
	owner = types.MustParticipant("0x00000000000000000000000000000000000000a1")
	usdc  = types.MustCurrency("0x00000000000000000000000000000000000000c1")
	weth  = types.MustCurrency("0x00000000000000000000000000000000000000c2")
)

func TestSessionModelRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	rec := &session.Record{
		Entity:     types.Entity{CreatedAt: now, UpdatedAt: now},
		ID:         id.NewSessionID(),
		OpenedAt:   now.Add(-time.Second),
		ClosedAt:   now,
		Operations: 2,
		Touched:    []types.Key{{Participant: owner, Currency: usdc}},
		Claims: []claim.Change{
			{Owner: owner, Currency: usdc, Amount: types.NewAmount(5), Kind: claim.KindMint},
		},
	}

	got, err := fromSessionModel(toSessionModel(rec))
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestClaimEntriesFold(t *testing.T) {
	rec := &session.Record{
		ID:       id.NewSessionID(),
		ClosedAt: time.Now().UTC(),
		Claims: []claim.Change{
			{Owner: owner, Currency: usdc, Amount: types.NewAmount(10), Kind: claim.KindMint},
			{Owner: owner, Currency: weth, Amount: types.NewAmount(3), Kind: claim.KindMint},
			{Owner: owner, Currency: usdc, Amount: types.NewAmount(-4), Kind: claim.KindBurn},
		},
	}

	entries := toClaimEntryModels(rec)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, rec.ID.String(), e.SessionID)
		assert.NotEmpty(t, e.ID)
	}

	balances, err := foldClaimEntries(owner, entries)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, usdc, balances[0].Currency)
	assert.Equal(t, "6", balances[0].Amount.String())
	assert.Equal(t, "3", balances[1].Amount.String())
}

func TestClaimEntriesFoldOverflow(t *testing.T) {
	entries := []claimEntryModel{
		{Currency: usdc.String(), Amount: types.MaxAmount.String()},
		{Currency: usdc.String(), Amount: "1"},
	}
	_, err := foldClaimEntries(owner, entries)
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestMigrationsRegistered(t *testing.T) {
	assert.NotNil(t, Migrations)
}
