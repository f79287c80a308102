package settlement

import "github.com/xraph/settlement/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Currency is re-exported from types package.
type Currency = types.Currency

// Participant is re-exported from types package.
type Participant = types.Participant

// Key is re-exported from types package.
type Key = types.Key

// Native is the chain's native currency.
var Native = types.Native

// Re-export Amount constructors
var (
	NewAmount        = types.NewAmount
	ParseAmount      = types.ParseAmount
	HexToCurrency    = types.HexToCurrency
	HexToParticipant = types.HexToParticipant
)
