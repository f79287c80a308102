package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
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

// selector is satisfied by both the pooled database and a transaction.
type selector interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("settlement/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("settlement/sqlite: migration failed: %w", err)
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
	return claimBalance(ctx, s.sdb, owner, currency)
}

func (s *Store) ListClaims(ctx context.Context, owner types.Participant) ([]*claim.Balance, error) {
	var models []claimEntryModel
	err := s.sdb.NewSelect(&models).
		Where("owner = ?", owner.String()).
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
// transaction, after checking the resulting balances inside it.
func (s *Store) CommitSession(ctx context.Context, rec *session.Record) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("settlement/sqlite: begin commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := checkClaims(ctx, tx, rec); err != nil {
		return err
	}

	if entries := toClaimEntryModels(rec); len(entries) > 0 {
		if _, err := tx.NewInsert(&entries).Exec(ctx); err != nil {
			return fmt.Errorf("settlement/sqlite: insert claim entries: %w", err)
		}
	}

	if _, err := tx.NewInsert(toSessionModel(rec)).Exec(ctx); err != nil {
		return fmt.Errorf("settlement/sqlite: insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settlement/sqlite: commit: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID id.SessionID) (*session.Record, error) {
	m := new(sessionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", sessionID.String()).
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
	q := s.sdb.NewSelect(&models)

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

func claimBalance(ctx context.Context, q selector, owner types.Participant, currency types.Currency) (types.Amount, error) {
	var models []claimEntryModel
	err := q.NewSelect(&models).
		Where("owner = ?", owner.String()).
		Where("currency = ?", currency.String()).
		Scan(ctx)
	if err != nil {
		return types.Amount{}, err
	}

	balances, err := foldClaimEntries(owner, models)
	if err != nil {
		return types.Amount{}, err
	}
	if len(balances) == 0 {
		return types.Amount{}, nil
	}
	return balances[0].Amount, nil
}

// checkClaims rejects a commit that would overflow or drive any durable
// balance negative.
func checkClaims(ctx context.Context, q selector, rec *session.Record) error {
	order, net, err := claim.Net(rec.Claims)
	if err != nil {
		return settlement.ErrArithmeticOverflow
	}
	for _, k := range order {
		cur, err := claimBalance(ctx, q, k.Participant, k.Currency)
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
