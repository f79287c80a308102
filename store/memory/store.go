// Package memory is an in-process Store for tests and single-node use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

type Store struct {
	mu sync.RWMutex

	// Durable claim balances
	claims map[types.Key]*claim.Balance

	// Settled session journal, in commit order
	sessions []*session.Record
	byID     map[string]*session.Record
}

func New() *Store {
	return &Store{
		claims: make(map[types.Key]*claim.Balance),
		byID:   make(map[string]*session.Record),
	}
}

// Claim Store implementation
func (s *Store) ClaimBalance(_ context.Context, owner types.Participant, currency types.Currency) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.claims[types.Key{Participant: owner, Currency: currency}]; ok {
		return b.Amount, nil
	}
	return types.Amount{}, nil
}

func (s *Store) ListClaims(_ context.Context, owner types.Participant) ([]*claim.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*claim.Balance, 0)
	for k, b := range s.claims {
		if k.Participant == owner && !b.Amount.IsZero() {
			cp := *b
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Currency.Less(result[j].Currency)
	})

	return result, nil
}

// Session Store implementation
func (s *Store) CommitSession(_ context.Context, rec *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID.String()]; exists {
		return fmt.Errorf("memory: session %s already committed", rec.ID)
	}

	order, net, err := claim.Net(rec.Claims)
	if err != nil {
		return settlement.ErrArithmeticOverflow
	}

	// Validate every key before writing any of them.
	next := make(map[types.Key]types.Amount, len(order))
	for _, k := range order {
		var cur types.Amount
		if b, ok := s.claims[k]; ok {
			cur = b.Amount
		}
		total, err := cur.Add(net[k])
		if err != nil {
			return settlement.ErrArithmeticOverflow
		}
		if total.IsNegative() {
			return settlement.ErrInsufficientBalance
		}
		next[k] = total
	}

	now := time.Now().UTC()
	for _, k := range order {
		s.claims[k] = &claim.Balance{
			Owner:     k.Participant,
			Currency:  k.Currency,
			Amount:    next[k],
			UpdatedAt: now,
		}
	}

	cp := *rec
	s.sessions = append(s.sessions, &cp)
	s.byID[rec.ID.String()] = &cp
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID id.SessionID) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.byID[sessionID.String()]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, settlement.ErrNotFound
}

func (s *Store) ListSessions(_ context.Context, opts session.ListOpts) ([]*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*session.Record, 0, len(s.sessions))
	for i := len(s.sessions) - 1; i >= 0; i-- {
		cp := *s.sessions[i]
		result = append(result, &cp)
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}
