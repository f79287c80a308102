// Package claim models durable claim balances: internal credits a
// participant holds with the ledger and can redeem in a later session.
package claim

import (
	"time"

	"github.com/xraph/settlement/types"
)

// Kind distinguishes claim creation from claim destruction.
type Kind string

const (
	KindMint Kind = "mint"
	KindBurn Kind = "burn"
)

// Balance is the durable claim a participant holds for one currency.
type Balance struct {
	Owner     types.Participant `json:"owner"`
	Currency  types.Currency    `json:"currency"`
	Amount    types.Amount      `json:"amount"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Change is a signed adjustment to a durable balance staged by a session.
// Mints are positive, burns negative.
type Change struct {
	Owner    types.Participant `json:"owner"    yaml:"owner"`
	Currency types.Currency    `json:"currency" yaml:"currency"`
	Amount   types.Amount      `json:"amount"   yaml:"amount"`
	Kind     Kind              `json:"kind"     yaml:"kind"`
}

// Key returns the ledger key the change applies to.
func (c Change) Key() types.Key {
	return types.Key{Participant: c.Owner, Currency: c.Currency}
}

// Net folds changes per key with checked arithmetic, preserving first-seen
// key order.
func Net(changes []Change) ([]types.Key, map[types.Key]types.Amount, error) {
	order := make([]types.Key, 0, len(changes))
	net := make(map[types.Key]types.Amount, len(changes))
	for _, c := range changes {
		k := c.Key()
		cur, seen := net[k]
		if !seen {
			order = append(order, k)
		}
		next, err := cur.Add(c.Amount)
		if err != nil {
			return nil, nil, err
		}
		net[k] = next
	}
	return order, net, nil
}
