package mongo

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

func TestSessionModelRoundTrip(t *testing.T) {
	owner := types.MustParticipant("0x00000000000000000000000000000000000000a1")
	usdc := types.MustCurrency("0x00000000000000000000000000000000000000c1")
	now := time.Now().UTC()

	rec := &session.Record{
		Entity:     types.Entity{CreatedAt: now, UpdatedAt: now},
		ID:         id.NewSessionID(),
		OpenedAt:   now,
		ClosedAt:   now,
		Operations: 3,
		Touched:    []types.Key{{Participant: owner, Currency: usdc}},
		Claims: []claim.Change{
			{Owner: owner, Currency: usdc, Amount: types.MustParseAmount("170141183460469231731687303715884105727"), Kind: claim.KindMint},
			{Owner: owner, Currency: usdc, Amount: types.NewAmount(-1), Kind: claim.KindBurn},
		},
	}

	m := toSessionModel(rec)
	assert.Equal(t, rec.ID.String(), m.ID)
	require.Len(t, m.Claims, 2)

	got, err := fromSessionModel(m)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFromChangeModelRejectsGarbage(t *testing.T) {
	_, err := fromChangeModel(&changeModel{Owner: "nope"})
	assert.Error(t, err)

	_, err = fromChangeModel(&changeModel{
		Owner:    "0x00000000000000000000000000000000000000a1",
		Currency: "0x00000000000000000000000000000000000000c1",
		Amount:   "1e9",
	})
	assert.Error(t, err)
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	require.Contains(t, idx, colSessions)
	assert.Len(t, idx[colSessions], 3)
}
