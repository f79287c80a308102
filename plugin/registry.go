package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/session"
	"github.com/xraph/settlement/types"
)

// DefaultTimeout bounds each after-hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches hooks to the ones
// that implement them. Interfaces are resolved once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit             []OnInit
	onShutdown         []OnShutdown
	onSessionOpened    []OnSessionOpened
	onSessionClosed    []OnSessionClosed
	onSessionAborted   []OnSessionAborted
	onSettlementFailed []OnSettlementFailed
	beforeOperation    []BeforeOperation
	onOperation        []OnOperation
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call bound for after-hooks. Non-positive values
// restore DefaultTimeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d <= 0 {
		d = DefaultTimeout
	}
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var interfaces []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		interfaces = append(interfaces, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		interfaces = append(interfaces, "OnShutdown")
	}
	if v, ok := p.(OnSessionOpened); ok {
		r.onSessionOpened = append(r.onSessionOpened, v)
		interfaces = append(interfaces, "OnSessionOpened")
	}
	if v, ok := p.(OnSessionClosed); ok {
		r.onSessionClosed = append(r.onSessionClosed, v)
		interfaces = append(interfaces, "OnSessionClosed")
	}
	if v, ok := p.(OnSessionAborted); ok {
		r.onSessionAborted = append(r.onSessionAborted, v)
		interfaces = append(interfaces, "OnSessionAborted")
	}
	if v, ok := p.(OnSettlementFailed); ok {
		r.onSettlementFailed = append(r.onSettlementFailed, v)
		interfaces = append(interfaces, "OnSettlementFailed")
	}
	if v, ok := p.(BeforeOperation); ok {
		r.beforeOperation = append(r.beforeOperation, v)
		interfaces = append(interfaces, "BeforeOperation")
	}
	if v, ok := p.(OnOperation); ok {
		r.onOperation = append(r.onOperation, v)
		interfaces = append(interfaces, "OnOperation")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", interfaces,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Veto dispatch
// ──────────────────────────────────────────────────

// RunBeforeOperation calls every BeforeOperation hook in registration order
// on the caller's goroutine and stops at the first error.
func (r *Registry) RunBeforeOperation(ctx context.Context, ev *session.Event) error {
	r.mu.RLock()
	plugins := r.beforeOperation
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := p.BeforeOperation(ctx, ev); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, l)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitSessionOpened emits a session opened event.
func (r *Registry) EmitSessionOpened(ctx context.Context, sessionID id.SessionID) {
	r.mu.RLock()
	plugins := r.onSessionOpened
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSessionOpened", func() error {
			return p.OnSessionOpened(ctx, sessionID)
		})
	}
}

// EmitSessionClosed emits a session settled event.
func (r *Registry) EmitSessionClosed(ctx context.Context, rec *session.Record) {
	r.mu.RLock()
	plugins := r.onSessionClosed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSessionClosed", func() error {
			return p.OnSessionClosed(ctx, rec)
		})
	}
}

// EmitSessionAborted emits a session aborted event.
func (r *Registry) EmitSessionAborted(ctx context.Context, sessionID id.SessionID, cause error) {
	r.mu.RLock()
	plugins := r.onSessionAborted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSessionAborted", func() error {
			return p.OnSessionAborted(ctx, sessionID, cause)
		})
	}
}

// EmitSettlementFailed emits a failed close attempt.
func (r *Registry) EmitSettlementFailed(ctx context.Context, sessionID id.SessionID, key types.Key, residual types.Amount) {
	r.mu.RLock()
	plugins := r.onSettlementFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSettlementFailed", func() error {
			return p.OnSettlementFailed(ctx, sessionID, key, residual)
		})
	}
}

// EmitOperation emits an applied operation.
func (r *Registry) EmitOperation(ctx context.Context, ev *session.Event) {
	r.mu.RLock()
	plugins := r.onOperation
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnOperation", func() error {
			return p.OnOperation(ctx, ev)
		})
	}
}

// dispatch runs one after-hook and logs its failure. After-hooks observe;
// they never change ledger state.
func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
