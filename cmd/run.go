package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/claim"
	custody "github.com/xraph/settlement/custody/memory"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/store/memory"
	"github.com/xraph/settlement/types"
)

var errSessionsFailed = errors.New("one or more sessions did not settle")

// script is the YAML document accepted by the run command.
type script struct {
	Wallets  []scriptWallet  `yaml:"wallets"`
	Sessions []scriptSession `yaml:"sessions"`
}

type scriptWallet struct {
	Participant string `yaml:"participant"`
	Currency    string `yaml:"currency"`
	Amount      string `yaml:"amount"`
}

type scriptSession struct {
	Name string     `yaml:"name"`
	Ops  []scriptOp `yaml:"ops"`
}

type scriptOp struct {
	Op          string `yaml:"op"`
	Participant string `yaml:"participant"`
	Currency    string `yaml:"currency"`
	Amount      string `yaml:"amount"`
}

type runReport struct {
	Sessions []sessionReport `yaml:"sessions"`
	Claims   []claimReport   `yaml:"claims,omitempty"`
	Wallets  []claimReport   `yaml:"wallets,omitempty"`
}

type sessionReport struct {
	Name       string         `yaml:"name"`
	ID         string         `yaml:"id,omitempty"`
	Status     string         `yaml:"status"`
	Error      string         `yaml:"error,omitempty"`
	Operations int            `yaml:"operations,omitempty"`
	Touched    []string       `yaml:"touched,omitempty"`
	Claims     []claim.Change `yaml:"claims,omitempty"`
}

type claimReport struct {
	Owner    types.Participant `yaml:"owner"`
	Currency types.Currency    `yaml:"currency"`
	Amount   types.Amount      `yaml:"amount"`
}

func newRunCmd(cfg *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.yaml|->",
		Short: "Run a YAML session script and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readScript(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			var sc script
			if err := yaml.Unmarshal(raw, &sc); err != nil {
				return fmt.Errorf("parse script: %w", err)
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts := []settlement.Option{settlement.WithLogger(logger)}
			if n := cfg.GetInt(keyMaxTouchedKeys); n > 0 {
				opts = append(opts, settlement.WithMaxTouchedKeys(n))
			}

			var vault *custody.Vault
			if cfg.GetBool(keyTransfer) {
				vault = custody.New()
				opts = append(opts, settlement.WithCustodian(vault))
			}
			if len(sc.Wallets) > 0 && vault == nil {
				return fmt.Errorf("wallets need --%s", keyTransfer)
			}
			for i, w := range sc.Wallets {
				p, c, amount, err := parseTriple(w.Participant, w.Currency, w.Amount)
				if err != nil {
					return fmt.Errorf("wallet %d: %w", i, err)
				}
				if err := vault.Fund(p, c, amount); err != nil {
					return fmt.Errorf("wallet %d: %w", i, err)
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			l := settlement.New(memory.New(), opts...)
			if err := l.Start(ctx); err != nil {
				return err
			}
			defer l.Stop() //nolint:errcheck // memory store

			report, err := replay(ctx, l, sc.Sessions)
			if err != nil {
				return err
			}

			if vault != nil {
				for _, w := range sc.Wallets {
					p, c, _, _ := parseTriple(w.Participant, w.Currency, w.Amount) //nolint:errcheck // parsed above
					report.Wallets = append(report.Wallets, claimReport{Owner: p, Currency: c, Amount: vault.Wallet(p, c)})
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}

			for _, s := range report.Sessions {
				if s.Status != "settled" {
					return errSessionsFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool(keyTransfer, false, "collect settles from funded wallets; aborted sessions are refunded")
	_ = cfg.BindPFlag(keyTransfer, cmd.Flags().Lookup(keyTransfer))

	return cmd
}

func readScript(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return raw, nil
}

// replay runs every session in order. A session that fails to settle is
// reported and the next one still runs.
func replay(ctx context.Context, l *settlement.Ledger, sessions []scriptSession) (*runReport, error) {
	report := &runReport{Sessions: make([]sessionReport, 0, len(sessions))}
	owners := make(map[types.Participant]struct{})

	for i, ss := range sessions {
		name := ss.Name
		if name == "" {
			name = fmt.Sprintf("session-%d", i+1)
		}

		sid, err := settlement.Run(ctx, l, func(ctx context.Context) (id.SessionID, error) {
			s, _ := l.FromContext(ctx)
			for j, op := range ss.Ops {
				if err := apply(ctx, l, op); err != nil {
					return s.ID(), fmt.Errorf("op %d (%s): %w", j+1, op.Op, err)
				}
			}
			return s.ID(), nil
		})
		if err != nil {
			report.Sessions = append(report.Sessions, sessionReport{
				Name:   name,
				Status: status(err),
				Error:  err.Error(),
			})
			continue
		}

		rec, err := l.GetSession(ctx, sid)
		if err != nil {
			return nil, err
		}
		sr := sessionReport{
			Name:       name,
			ID:         rec.ID.String(),
			Status:     "settled",
			Operations: rec.Operations,
			Claims:     rec.Claims,
		}
		for _, k := range rec.Touched {
			sr.Touched = append(sr.Touched, k.String())
		}
		for _, c := range rec.Claims {
			owners[c.Owner] = struct{}{}
		}
		report.Sessions = append(report.Sessions, sr)
	}

	for owner := range owners {
		balances, err := l.ListClaims(ctx, owner)
		if err != nil {
			return nil, err
		}
		for _, b := range balances {
			report.Claims = append(report.Claims, claimReport{Owner: b.Owner, Currency: b.Currency, Amount: b.Amount})
		}
	}
	sortClaims(report.Claims)

	return report, nil
}

func apply(ctx context.Context, l *settlement.Ledger, op scriptOp) error {
	p, c, amount, err := parseTriple(op.Participant, op.Currency, op.Amount)
	if err != nil {
		return err
	}
	switch strings.ToLower(op.Op) {
	case "take":
		return l.Take(ctx, c, p, amount)
	case "settle":
		return l.Settle(ctx, c, p, amount)
	case "mint":
		return l.Mint(ctx, c, p, amount)
	case "burn":
		return l.Burn(ctx, c, p, amount)
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

func parseTriple(participant, currency, amount string) (types.Participant, types.Currency, types.Amount, error) {
	p, err := types.HexToParticipant(participant)
	if err != nil {
		return types.Participant{}, types.Currency{}, types.Amount{}, err
	}
	c := types.Native
	if currency != "" && !strings.EqualFold(currency, "native") {
		if c, err = types.HexToCurrency(currency); err != nil {
			return types.Participant{}, types.Currency{}, types.Amount{}, err
		}
	}
	a, err := types.ParseAmount(amount)
	if err != nil {
		return types.Participant{}, types.Currency{}, types.Amount{}, err
	}
	return p, c, a, nil
}

func status(err error) string {
	switch {
	case settlement.IsSettlementViolation(err):
		return "unsettled"
	case settlement.IsArgumentViolation(err):
		return "rejected"
	default:
		return "aborted"
	}
}

func sortClaims(claims []claimReport) {
	slices.SortFunc(claims, func(a, b claimReport) int {
		if a.Owner != b.Owner {
			return bytes.Compare(a.Owner[:], b.Owner[:])
		}
		return bytes.Compare(a.Currency[:], b.Currency[:])
	})
}
