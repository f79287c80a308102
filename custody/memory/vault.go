// Package memory is an in-process custodian: participant wallets and the
// ledger's reserves, held in maps.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/settlement/types"
)

var (
	// ErrInsufficientFunds is returned when a wallet cannot cover a collection.
	ErrInsufficientFunds = errors.New("custody: insufficient funds")

	// ErrInsufficientReserve is returned when a refund exceeds the reserve.
	ErrInsufficientReserve = errors.New("custody: insufficient reserve")
)

// Vault moves funds from participant wallets into per-currency reserves.
type Vault struct {
	mu       sync.Mutex
	wallets  map[types.Key]types.Amount
	reserves map[types.Currency]types.Amount
}

func New() *Vault {
	return &Vault{
		wallets:  make(map[types.Key]types.Amount),
		reserves: make(map[types.Currency]types.Amount),
	}
}

// Fund credits a participant's wallet.
func (v *Vault) Fund(p types.Participant, c types.Currency, amount types.Amount) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := types.Key{Participant: p, Currency: c}
	next, err := v.wallets[key].Add(amount)
	if err != nil {
		return err
	}
	v.wallets[key] = next
	return nil
}

// Collect implements settlement.Custodian. It fails without side effects
// when the payer's wallet is short.
func (v *Vault) Collect(ctx context.Context, c types.Currency, payer types.Participant, amount types.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key := types.Key{Participant: payer, Currency: c}
	wallet := v.wallets[key]
	if wallet.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	remaining, err := wallet.Sub(amount)
	if err != nil {
		return err
	}
	reserve, err := v.reserves[c].Add(amount)
	if err != nil {
		return err
	}

	v.wallets[key] = remaining
	v.reserves[c] = reserve
	return nil
}

// Refund implements settlement.Refunder by moving amount from the reserve
// back to the payer's wallet.
func (v *Vault) Refund(ctx context.Context, c types.Currency, payer types.Participant, amount types.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	reserve := v.reserves[c]
	if reserve.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}

	key := types.Key{Participant: payer, Currency: c}
	wallet, err := v.wallets[key].Add(amount)
	if err != nil {
		return err
	}
	remaining, err := reserve.Sub(amount)
	if err != nil {
		return err
	}

	v.wallets[key] = wallet
	v.reserves[c] = remaining
	return nil
}

// Wallet returns a participant's wallet balance.
func (v *Vault) Wallet(p types.Participant, c types.Currency) types.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.wallets[types.Key{Participant: p, Currency: c}]
}

// Reserve returns the funds collected for a currency.
func (v *Vault) Reserve(c types.Currency) types.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reserves[c]
}
