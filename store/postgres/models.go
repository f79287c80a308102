package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// ==================== Session models ====================

type sessionModel struct {
	grove.BaseModel `grove:"table:settlement_sessions"`

	ID         string          `grove:"id,pk"`
	OpenedAt   time.Time       `grove:"opened_at"`
	ClosedAt   time.Time       `grove:"closed_at"`
	Operations int             `grove:"operations"`
	Touched    json.RawMessage `grove:"touched,type:jsonb"`
	Claims     json.RawMessage `grove:"claims,type:jsonb"`
	CreatedAt  time.Time       `grove:"created_at"`
	UpdatedAt  time.Time       `grove:"updated_at"`
}

func toSessionModel(rec *session.Record) *sessionModel {
	touched, _ := json.Marshal(rec.Touched) //nolint:errcheck // keys always marshal
	claims, _ := json.Marshal(rec.Claims)   //nolint:errcheck // changes always marshal

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

	var touched []types.Key
	if len(m.Touched) > 0 {
		if err := json.Unmarshal(m.Touched, &touched); err != nil {
			return nil, fmt.Errorf("settlement/postgres: decode touched keys: %w", err)
		}
	}

	var claims []claim.Change
	if len(m.Claims) > 0 && string(m.Claims) != "null" {
		if err := json.Unmarshal(m.Claims, &claims); err != nil {
			return nil, fmt.Errorf("settlement/postgres: decode claims: %w", err)
		}
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

// ==================== Claim entry models ====================

type claimEntryModel struct {
	grove.BaseModel `grove:"table:settlement_claim_entries"`

	ID        string    `grove:"id,pk"`
	SessionID string    `grove:"session_id"`
	Owner     string    `grove:"owner"`
	Currency  string    `grove:"currency"`
	Amount    string    `grove:"amount"`
	Kind      string    `grove:"kind"`
	CreatedAt time.Time `grove:"created_at"`
}

func toClaimEntryModels(rec *session.Record) []claimEntryModel {
	models := make([]claimEntryModel, len(rec.Claims))
	for i, c := range rec.Claims {
		models[i] = claimEntryModel{
			ID:        id.NewClaimEntryID().String(),
			SessionID: rec.ID.String(),
			Owner:     c.Owner.String(),
			Currency:  c.Currency.String(),
			Amount:    c.Amount.String(),
			Kind:      string(c.Kind),
			CreatedAt: rec.ClosedAt,
		}
	}
	return models
}

// foldClaimEntries sums entries per currency for a single owner.
func foldClaimEntries(owner types.Participant, models []claimEntryModel) ([]*claim.Balance, error) {
	order := make([]types.Currency, 0)
	byCurrency := make(map[types.Currency]*claim.Balance)

	for i := range models {
		m := &models[i]
		c, err := types.HexToCurrency(m.Currency)
		if err != nil {
			return nil, err
		}
		amount, err := types.ParseAmount(m.Amount)
		if err != nil {
			return nil, err
		}

		b, ok := byCurrency[c]
		if !ok {
			b = &claim.Balance{Owner: owner, Currency: c}
			byCurrency[c] = b
			order = append(order, c)
		}
		if b.Amount, err = b.Amount.Add(amount); err != nil {
			return nil, err
		}
		if m.CreatedAt.After(b.UpdatedAt) {
			b.UpdatedAt = m.CreatedAt
		}
	}

	result := make([]*claim.Balance, 0, len(order))
	for _, c := range order {
		result = append(result, byCurrency[c])
	}
	return result, nil
}
