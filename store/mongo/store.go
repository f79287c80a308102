package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	settlementstore "github.com/xraph/settlement/store"
	"github.com/xraph/settlement/types"
)

// Collection name constants.
const (
	colSessions = "settlement_sessions"
)

// compile-time interface check
var _ settlementstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all settlement collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("settlement/mongo: migrate %s indexes: %w", col, err)
		}
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
	balances, err := s.balances(ctx, owner, bson.M{
		"claims": bson.M{"$elemMatch": bson.M{
			"owner":    owner.String(),
			"currency": currency.String(),
		}},
	})
	if err != nil {
		return types.Amount{}, err
	}
	if b, ok := balances[currency]; ok {
		return b.Amount, nil
	}
	return types.Amount{}, nil
}

func (s *Store) ListClaims(ctx context.Context, owner types.Participant) ([]*claim.Balance, error) {
	balances, err := s.balances(ctx, owner, bson.M{"claims.owner": owner.String()})
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

// balances folds the owner's claim changes across the sessions matched by
// filter.
func (s *Store) balances(ctx context.Context, owner types.Participant, filter bson.M) (map[types.Currency]*claim.Balance, error) {
	var models []sessionModel
	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "closed_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement/mongo: find claims: %w", err)
	}

	result := make(map[types.Currency]*claim.Balance)
	for i := range models {
		m := &models[i]
		for j := range m.Claims {
			if m.Claims[j].Owner != owner.String() {
				continue
			}
			c, err := fromChangeModel(&m.Claims[j])
			if err != nil {
				return nil, err
			}
			b, ok := result[c.Currency]
			if !ok {
				b = &claim.Balance{Owner: owner, Currency: c.Currency}
				result[c.Currency] = b
			}
			if b.Amount, err = b.Amount.Add(c.Amount); err != nil {
				return nil, settlement.ErrArithmeticOverflow
			}
			b.UpdatedAt = m.ClosedAt
		}
	}
	return result, nil
}

// ==================== Session Store ====================

func (s *Store) CommitSession(ctx context.Context, rec *session.Record) error {
	order, net, err := claim.Net(rec.Claims)
	if err != nil {
		return settlement.ErrArithmeticOverflow
	}
	for _, k := range order {
		cur, err := s.ClaimBalance(ctx, k.Participant, k.Currency)
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

	_, err = s.mdb.NewInsert(toSessionModel(rec)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("settlement/mongo: commit session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID id.SessionID) (*session.Record, error) {
	var m sessionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": sessionID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settlement.ErrNotFound
		}
		return nil, fmt.Errorf("settlement/mongo: get session: %w", err)
	}
	return fromSessionModel(&m)
}

func (s *Store) ListSessions(ctx context.Context, opts session.ListOpts) ([]*session.Record, error) {
	var models []sessionModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "closed_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settlement/mongo: list sessions: %w", err)
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

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all settlement collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSessions: {
			{Keys: bson.D{{Key: "closed_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "claims.owner", Value: 1}, {Key: "claims.currency", Value: 1}}},
			{
				Keys:    bson.D{{Key: "opened_at", Value: 1}},
				Options: options.Index().SetName("idx_settlement_sessions_opened_at"),
			},
		},
	}
}
