package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// ==================== Session models ====================

// sessionModel embeds the session's claim changes so that a commit is a
// single document insert.
type sessionModel struct {
	grove.BaseModel `grove:"table:settlement_sessions"`

	ID         string        `grove:"id,pk"      bson:"_id"`
	OpenedAt   time.Time     `grove:"opened_at"  bson:"opened_at"`
	ClosedAt   time.Time     `grove:"closed_at"  bson:"closed_at"`
	Operations int           `grove:"operations" bson:"operations"`
	Touched    []keyModel    `grove:"touched"    bson:"touched"`
	Claims     []changeModel `grove:"claims"     bson:"claims,omitempty"`
	CreatedAt  time.Time     `grove:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `grove:"updated_at" bson:"updated_at"`
}

type keyModel struct {
	Participant string `bson:"participant"`
	Currency    string `bson:"currency"`
}

type changeModel struct {
	Owner    string `bson:"owner"`
	Currency string `bson:"currency"`
	Amount   string `bson:"amount"`
	Kind     string `bson:"kind"`
}

func toSessionModel(rec *session.Record) *sessionModel {
	touched := make([]keyModel, len(rec.Touched))
	for i, k := range rec.Touched {
		touched[i] = keyModel{Participant: k.Participant.String(), Currency: k.Currency.String()}
	}

	claims := make([]changeModel, len(rec.Claims))
	for i, c := range rec.Claims {
		claims[i] = changeModel{
			Owner:    c.Owner.String(),
			Currency: c.Currency.String(),
			Amount:   c.Amount.String(),
			Kind:     string(c.Kind),
		}
	}

	return &sessionModel{
		ID:         rec.ID.String(),
		OpenedAt:   rec.OpenedAt,
		ClosedAt:   rec.ClosedAt,
		Operations: rec.Operations,
		Touched:    touched,
		Claims:     claims,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func fromSessionModel(m *sessionModel) (*session.Record, error) {
	sessionID, err := id.ParseSessionID(m.ID)
	if err != nil {
		return nil, err
	}

	touched := make([]types.Key, len(m.Touched))
	for i, k := range m.Touched {
		p, err := types.HexToParticipant(k.Participant)
		if err != nil {
			return nil, fmt.Errorf("settlement/mongo: decode touched key: %w", err)
		}
		c, err := types.HexToCurrency(k.Currency)
		if err != nil {
			return nil, fmt.Errorf("settlement/mongo: decode touched key: %w", err)
		}
		touched[i] = types.Key{Participant: p, Currency: c}
	}

	claims := make([]claim.Change, len(m.Claims))
	for i := range m.Claims {
		c, err := fromChangeModel(&m.Claims[i])
		if err != nil {
			return nil, err
		}
		claims[i] = c
	}

	return &session.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         sessionID,
		OpenedAt:   m.OpenedAt,
		ClosedAt:   m.ClosedAt,
		Operations: m.Operations,
		Touched:    touched,
		Claims:     claims,
	}, nil
}

func fromChangeModel(m *changeModel) (claim.Change, error) {
	owner, err := types.HexToParticipant(m.Owner)
	if err != nil {
		return claim.Change{}, fmt.Errorf("settlement/mongo: decode claim owner: %w", err)
	}
	currency, err := types.HexToCurrency(m.Currency)
	if err != nil {
		return claim.Change{}, fmt.Errorf("settlement/mongo: decode claim currency: %w", err)
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return claim.Change{}, fmt.Errorf("settlement/mongo: decode claim amount: %w", err)
	}
	return claim.Change{
		Owner:    owner,
		Currency: currency,
		Amount:   amount,
		Kind:     claim.Kind(m.Kind),
	}, nil
}
