package settlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/settlement/claim"
	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/lock"
	"github.com/xraph/settlement/plugin"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/store"
	"github.com/xraph/settlement/types"
)

// Custodian moves physical assets into the ledger's custody. It is the
// transfer-mode collaborator of Settle and must not call back into the
// ledger.
type Custodian interface {
	Collect(ctx context.Context, currency types.Currency, payer types.Participant, amount types.Amount) error
}

// Refunder is implemented by custodians that can return collected funds.
// When the ledger's custodian implements it, aborting a session refunds
// every transfer the session collected, newest first.
type Refunder interface {
	Refund(ctx context.Context, currency types.Currency, payer types.Participant, amount types.Amount) error
}

// CustodianFunc adapts a plain function to Custodian.
type CustodianFunc func(ctx context.Context, currency types.Currency, payer types.Participant, amount types.Amount) error

// Collect implements Custodian.
func (f CustodianFunc) Collect(ctx context.Context, currency types.Currency, payer types.Participant, amount types.Amount) error {
	return f(ctx, currency, payer, amount)
}

// Ledger is a session-locked settlement ledger. Each instance owns its own
// lock and state, so independent ledgers never observe each other.
type Ledger struct {
	lock      lock.SessionLock
	store     store.Store
	custodian Custodian
	plugins   *plugin.Registry
	logger    *slog.Logger

	maxTouchedKeys int

	mu     sync.Mutex
	active *Session
}

// New creates a new Ledger backed by s.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		if err := l.plugins.Register(p); err != nil {
			l.logger.Warn("plugin registration skipped", "plugin", p.Name(), "error", err)
		}
	}
}

// WithCustodian switches Settle into transfer mode.
func WithCustodian(c Custodian) Option {
	return func(l *Ledger) {
		l.custodian = c
	}
}

// WithPluginTimeout bounds each after-hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithMaxTouchedKeys caps the distinct keys one session may touch. Zero
// means unbounded.
func WithMaxTouchedKeys(n int) Option {
	return func(l *Ledger) {
		l.maxTouchedKeys = n
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("settlement ledger started",
		"plugins", l.plugins.Count(),
		"transfer_mode", l.custodian != nil,
		"max_touched_keys", l.maxTouchedKeys,
	)

	return nil
}

// Stop aborts any open session, shuts plugins down and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()

	l.mu.Lock()
	s := l.active
	l.mu.Unlock()
	if s != nil {
		if err := s.Abort(ctx, ErrSessionAborted); err != nil {
			l.logger.Error("abort on stop failed", "session_id", s.ID().String(), "error", err)
		}
	}

	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// IsOpen reports whether a session currently holds the lock.
func (l *Ledger) IsOpen() bool {
	return l.lock.IsOpen()
}

// Store returns the backing store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// GetSession returns a settled session from the journal.
func (l *Ledger) GetSession(ctx context.Context, sessionID id.SessionID) (*session.Record, error) {
	return l.store.GetSession(ctx, sessionID)
}

// ListSessions pages through settled sessions, newest first.
func (l *Ledger) ListSessions(ctx context.Context, opts session.ListOpts) ([]*session.Record, error) {
	return l.store.ListSessions(ctx, opts)
}

// ListClaims returns the committed durable balances held by owner.
func (l *Ledger) ListClaims(ctx context.Context, owner types.Participant) ([]*claim.Balance, error) {
	return l.store.ListClaims(ctx, owner)
}
