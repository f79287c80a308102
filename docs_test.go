package settlement_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/settlement"
	custody "github.com/xraph/settlement/custody/memory"
	"github.com/xraph/settlement/store/memory"
	"github.com/xraph/settlement/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from the package docs
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Custodian for transfer-mode settles
		vault := custody.New()

		// Initialize the ledger
		l := settlement.New(store,
			settlement.WithLogger(slog.Default()),
			settlement.WithCustodian(vault),
		)

		// Start the engine
		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		usdc := types.MustCurrency("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
		alice := types.MustParticipant("0x00000000000000000000000000000000000a11ce")

		if err := vault.Fund(alice, usdc, types.NewAmount(100)); err != nil {
			t.Fatal(err)
		}

		// Pay alice out and collect it back within one session
		err := l.Unlock(ctx, func(ctx context.Context) error {
			if err := l.Take(ctx, usdc, alice, types.NewAmount(100)); err != nil {
				return err
			}
			return l.Settle(ctx, usdc, alice, types.NewAmount(-100))
		})
		if err != nil {
			t.Fatal(err)
		}

		log.Printf("Reserve after settlement: %s\n", vault.Reserve(usdc))
	})

	// Test durable claim examples
	t.Run("ClaimExamples", func(t *testing.T) {
		l := settlement.New(memory.New())
		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		bob := types.MustParticipant("0x0000000000000000000000000000000000000b0b")

		// Mint closes without settling: claims are not obligations
		if err := l.Unlock(ctx, func(ctx context.Context) error {
			return l.Mint(ctx, settlement.Native, bob, types.NewAmount(50))
		}); err != nil {
			t.Fatal(err)
		}

		bal, err := l.ClaimBalance(ctx, bob, settlement.Native)
		if err != nil {
			t.Fatal(err)
		}
		if bal.String() != "50" {
			t.Fatalf("expected claim 50, got %s", bal)
		}
	})

	// Test Amount type examples
	t.Run("AmountExamples", func(t *testing.T) {
		a := types.NewAmount(100)
		b := types.MustParseAmount("-40")

		sum, err := a.Add(b) // 60
		if err != nil {
			t.Fatal(err)
		}
		if sum.Cmp(types.NewAmount(60)) != 0 {
			t.Fatalf("expected 60, got %s", sum)
		}

		// Overflow is an error, never a wrap
		if _, err := types.MaxAmount.Add(types.NewAmount(1)); err == nil {
			t.Fatal("expected overflow")
		}
	})
}
