package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	settlementstore "github.com/xraph/settlement/store"
	"github.com/xraph/settlement/types"
)

// compile-time interface check
var _ settlementstore.Store = (*Store)(nil)

// rawQuerier is satisfied by both the pooled database and a transaction.
type rawQuerier interface {
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("settlement/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("settlement/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Claim Store ====================

func (s *Store) ClaimBalance(ctx context.Context, owner types.Participant, currency types.Currency) (types.Amount, error) {
	return claimBalance(ctx, s.pg, owner, currency)
}

func (s *Store) ListClaims(ctx context.Context, owner types.Participant) ([]*claim.Balance, error) {
	var models []claimEntryModel
	err := s.pg.NewSelect(&models).
		Where("owner = $1", owner.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	balances, err := foldClaimEntries(owner, models)
	if err != nil {
		return nil, err
	}

	result := make([]*claim.Balance, 0, len(balances))
	for _, b := range balances {
		if !b.Amount.IsZero() {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Currency.Less(result[j].Currency)
	})
	return result, nil
}

// ==================== Session Store ====================

// CommitSession writes the session row and its claim entries in one
// transaction. Each touched claim key is locked for the duration of the
// transaction, so concurrent commits cannot both spend the same balance.
func (s *Store) CommitSession(ctx context.Context, rec *session.Record) error {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("settlement/postgres: begin commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := checkClaims(ctx, tx, rec); err != nil {
		return err
	}

	if entries := toClaimEntryModels(rec); len(entries) > 0 {
		if _, err := tx.NewInsert(&entries).Exec(ctx); err != nil {
			return fmt.Errorf("settlement/postgres: insert claim entries: %w", err)
		}
	}

	if _, err := tx.NewInsert(toSessionModel(rec)).Exec(ctx); err != nil {
		return fmt.Errorf("settlement/postgres: insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settlement/postgres: commit: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID id.SessionID) (*session.Record, error) {
	m := new(sessionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", sessionID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settlement.ErrNotFound
		}
		return nil, err
	}
	return fromSessionModel(m)
}

func (s *Store) ListSessions(ctx context.Context, opts session.ListOpts) ([]*session.Record, error) {
	var models []sessionModel
	q := s.pg.NewSelect(&models)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("closed_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*session.Record, len(models))
	for i := range models {
		rec, err := fromSessionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// ==================== Helpers ====================

func claimBalance(ctx context.Context, q rawQuerier, owner types.Participant, currency types.Currency) (types.Amount, error) {
	var total string
	err := q.NewRaw(`
		SELECT COALESCE(SUM(amount::NUMERIC), 0)::TEXT FROM settlement_claim_entries
		WHERE owner = $1 AND currency = $2`,
		owner.String(), currency.String()).Scan(ctx, &total)
	if err != nil {
		return types.Amount{}, err
	}
	return types.ParseAmount(total)
}

// checkClaims locks every key the record changes, in a fixed order, then
// rejects a commit that would overflow or drive a durable balance negative.
func checkClaims(ctx context.Context, tx *pgdriver.PgTx, rec *session.Record) error {
	order, net, err := claim.Net(rec.Claims)
	if err != nil {
		return settlement.ErrArithmeticOverflow
	}

	locked := make([]types.Key, len(order))
	copy(locked, order)
	sort.Slice(locked, func(i, j int) bool { return locked[i].String() < locked[j].String() })
	for _, k := range locked {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", k.String()).Exec(ctx); err != nil {
			return fmt.Errorf("settlement/postgres: lock claim %s: %w", k, err)
		}
	}

	for _, k := range order {
		cur, err := claimBalance(ctx, tx, k.Participant, k.Currency)
		if err != nil {
			return err
		}
		total, err := cur.Add(net[k])
		if err != nil {
			return settlement.ErrArithmeticOverflow
		}
		if total.IsNegative() {
			return settlement.ErrInsufficientBalance
		}
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
