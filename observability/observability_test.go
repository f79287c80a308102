package observability_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/settlement"
	"github.com/xraph/settlement/observability"
	"github.com/xraph/settlement/plugin"
	"github.com/xraph/settlement/store/memory"
	"github.com/xraph/settlement/types"
)

var (
	alice = types.MustParticipant("0x00000000000000000000000000000000000000a1")
	usd   = types.MustCurrency("0x0000000000000000000000000000000000000d01")
)

type metric struct {
	mu     sync.Mutex
	total  float64
	values []float64
}

func (m *metric) Inc() { m.Add(1) }

func (m *metric) Add(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += v
}

func (m *metric) Observe(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, v)
}

type factory struct {
	mu      sync.Mutex
	metrics map[string]*metric
}

func (f *factory) get(name string) *metric {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metrics == nil {
		f.metrics = make(map[string]*metric)
	}
	m, ok := f.metrics[name]
	if !ok {
		m = &metric{}
		f.metrics[name] = m
	}
	return m
}

func (f *factory) Counter(name string) observability.Counter { return f.get(name) }
func (f *factory) Histogram(name string) observability.Histogram { return f.get(name) }

func exercise(t *testing.T, p plugin.Plugin) {
	t.Helper()
	l := settlement.New(memory.New(), settlement.WithPlugin(p))
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	require.NoError(t, l.Unlock(context.Background(), func(ctx context.Context) error {
		if err := l.Take(ctx, usd, alice, types.NewAmount(3)); err != nil {
			return err
		}
		if err := l.Mint(ctx, usd, alice, types.NewAmount(3)); err != nil {
			return err
		}
		return l.Settle(ctx, usd, alice, types.NewAmount(-3))
	}))

	err := l.Unlock(context.Background(), func(ctx context.Context) error {
		return l.Take(ctx, usd, alice, types.NewAmount(1))
	})
	require.ErrorIs(t, err, settlement.ErrUnsettledBalance)
}

func TestMetricsExtension(t *testing.T) {
	f := &factory{}
	exercise(t, observability.NewMetricsExtension(f))

	assert.Equal(t, 2.0, f.get("settlement.session.opened").total)
	assert.Equal(t, 1.0, f.get("settlement.session.settled").total)
	assert.Equal(t, 1.0, f.get("settlement.session.aborted").total)
	assert.Equal(t, 1.0, f.get("settlement.close.unsettled").total)
	assert.Equal(t, 2.0, f.get("settlement.op.take").total)
	assert.Equal(t, 1.0, f.get("settlement.op.settle").total)
	assert.Equal(t, 1.0, f.get("settlement.op.mint").total)
	assert.Zero(t, f.get("settlement.op.burn").total)
	assert.Equal(t, []float64{3}, f.get("settlement.session.operations").values)
	assert.Equal(t, []float64{1}, f.get("settlement.session.touched_keys").values)
}

func TestTracingExtension(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	exercise(t, observability.NewTracingExtension(tp))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	settled := spans[0]
	assert.Equal(t, "settlement.session", settled.Name())
	assert.Equal(t, codes.Ok, settled.Status().Code)
	require.Len(t, settled.Events(), 3)
	assert.Equal(t, "take", settled.Events()[0].Name)
	assert.Equal(t, "mint", settled.Events()[1].Name)
	assert.Equal(t, "settle", settled.Events()[2].Name)

	aborted := spans[1]
	assert.Equal(t, codes.Error, aborted.Status().Code)
	var names []string
	for _, ev := range aborted.Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"take", "unsettled", "exception"}, names)
}
