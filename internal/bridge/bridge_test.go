package bridge

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/monitoring"
	"github.com/ndrwrbgs/flowtrace/internal/sink"
)

func newTestBridge(t *testing.T, opts ...Option) (*Bridge, *sink.Recorder) {
	t.Helper()
	rec := sink.NewRecorder()
	return New(rec, opts...), rec
}

type step struct {
	kind     event.Kind
	position string
	op       string
}

func steps(events []event.Event) []step {
	out := make([]step, len(events))
	for i, e := range events {
		out[i] = step{kind: e.Kind, position: e.Position, op: e.Operation}
	}
	return out
}

func TestNestedAndSequentialOperations(t *testing.T) {
	b, rec := newTestBridge(t)
	ctx := flow.New(context.Background())

	require.NoError(t, b.Activate(ctx, "A"))
	require.NoError(t, b.Activate(ctx, "B"))
	require.NoError(t, b.Log(ctx, event.F(event.KeyEvent, "hello")))
	require.NoError(t, b.Finish(ctx, "B"))
	require.NoError(t, b.Activate(ctx, "C"))
	require.NoError(t, b.Finish(ctx, "C"))
	require.NoError(t, b.Finish(ctx, "A"))

	assert.Equal(t, []step{
		{event.KindStart, "1", "A"},
		{event.KindStart, "1.1", "B"},
		{event.KindLog, "1.1", ""},
		{event.KindStop, "1.1", "B"},
		{event.KindStart, "1.2", "C"},
		{event.KindStop, "1.2", "C"},
		{event.KindStop, "1", "A"},
	}, steps(rec.Events()))
}

func TestEventFields(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b, rec := newTestBridge(t, WithClock(func() time.Time { return at }))
	ctx := flow.New(context.Background())

	require.NoError(t, b.Activate(ctx, "A"))
	require.NoError(t, b.Log(ctx, event.F(event.KeyEvent, "text"), event.F("k", 1)))
	require.NoError(t, b.SetTag(ctx, "result", true))

	events := rec.Events()
	require.Len(t, events, 3)

	start := events[0]
	assert.Equal(t, event.LevelStart, start.Level)
	assert.Equal(t, event.Fields{
		event.F(event.KeyPosition, "1"),
		event.F(event.KeyOperationName, "A"),
	}, start.Fields)
	assert.Equal(t, flow.ID(ctx), start.Flow)
	assert.Equal(t, flow.Trace(ctx), start.Trace)
	assert.Equal(t, at, start.Time)

	log := events[1]
	assert.Equal(t, event.LevelInfo, log.Level)
	assert.Equal(t, "text", log.Text())
	assert.Equal(t, event.Fields{
		event.F(event.KeyPosition, "1"),
		event.F(event.KeyEvent, "text"),
		event.F("k", 1),
	}, log.Fields)

	tag := events[2]
	assert.Equal(t, event.KindTag, tag.Kind)
	assert.Equal(t, event.LevelInfo, tag.Level)
	assert.Equal(t, event.Fields{
		event.F(event.KeyPosition, "1"),
		event.F("result", true),
	}, tag.Fields)
}

func TestLogLevelFromField(t *testing.T) {
	tests := []struct {
		name   string
		fields []event.Field
		want   event.Level
	}{
		{"default", nil, event.LevelInfo},
		{"typed", []event.Field{event.F(event.KeyLevel, event.LevelWarning)}, event.LevelWarning},
		{"name", []event.Field{event.F(event.KeyLevel, "error")}, event.LevelError},
		{"unknown name", []event.Field{event.F(event.KeyLevel, "loud")}, event.LevelInfo},
		{"wrong type", []event.Field{event.F(event.KeyLevel, 3.5)}, event.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, rec := newTestBridge(t)
			ctx := flow.New(context.Background())
			require.NoError(t, b.Activate(ctx, "A"))
			require.NoError(t, b.Log(ctx, tt.fields...))

			events := rec.Events()
			require.Len(t, events, 2)
			assert.Equal(t, tt.want, events[1].Level)
		})
	}
}

func TestStopMatchesStartPosition(t *testing.T) {
	b, rec := newTestBridge(t)
	ctx := flow.New(context.Background())

	var open func(depth int)
	open = func(depth int) {
		for i := 0; i < 3; i++ {
			require.NoError(t, b.Activate(ctx, "op"))
			if depth > 0 {
				open(depth - 1)
			}
			require.NoError(t, b.Finish(ctx, "op"))
		}
	}
	open(2)

	var stack []string
	for _, e := range rec.Events() {
		switch e.Kind {
		case event.KindStart:
			stack = append(stack, e.Position)
		case event.KindStop:
			require.NotEmpty(t, stack)
			assert.Equal(t, stack[len(stack)-1], e.Position)
			stack = stack[:len(stack)-1]
		}
	}
	assert.Empty(t, stack)
}

func TestForkedChildrenGetDistinctPositions(t *testing.T) {
	b, rec := newTestBridge(t)
	ctx := flow.New(context.Background())
	require.NoError(t, b.Activate(ctx, "Root"))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		flow.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			assert.NoError(t, b.Activate(ctx, "Child"))
			assert.NoError(t, b.Finish(ctx, "Child"))
		})
	}
	wg.Wait()
	require.NoError(t, b.Finish(ctx, "Root"))

	var children []string
	for _, e := range rec.Events() {
		if e.Kind == event.KindStart && e.Operation == "Child" {
			children = append(children, e.Position)
		}
	}
	sort.Strings(children)
	assert.Equal(t, []string{"1.1", "1.2"}, children)
}

func TestManyForksNeverShareAnIndex(t *testing.T) {
	const n = 64
	b, rec := newTestBridge(t)
	ctx := flow.New(context.Background())
	require.NoError(t, b.Activate(ctx, "Root"))

	g := flow.NewGroup(ctx)
	for i := 0; i < n; i++ {
		g.Go(func(ctx context.Context) error {
			if err := b.Activate(ctx, "Child"); err != nil {
				return err
			}
			return b.Finish(ctx, "Child")
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool)
	for _, e := range rec.Events() {
		if e.Kind == event.KindStart && e.Operation == "Child" {
			assert.False(t, seen[e.Position], "duplicate position %s", e.Position)
			seen[e.Position] = true
		}
	}
	assert.Len(t, seen, n)
}

func TestFinishMismatchIsRejected(t *testing.T) {
	b, rec := newTestBridge(t)
	ctx := flow.New(context.Background())

	require.NoError(t, b.Activate(ctx, "Y"))
	before := rec.Len()

	err := b.Finish(ctx, "X")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCausalityViolation)

	var cerr *CausalityError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ReasonMismatch, cerr.Reason)
	assert.Equal(t, "X", cerr.Operation)
	assert.Equal(t, "Y", cerr.Innermost)

	assert.Equal(t, before, rec.Len(), "no event for the rejected call")

	name, pos, err := b.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Y", name)
	assert.Equal(t, "1", pos.String())

	// The flow continues where it left off.
	require.NoError(t, b.Activate(ctx, "Z"))
	_, pos, err = b.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.1", pos.String())
}

func TestFinishWithNothingOpen(t *testing.T) {
	b, rec := newTestBridge(t)
	ctx := flow.New(context.Background())

	err := b.Finish(ctx, "A")
	assert.ErrorIs(t, err, ErrCausalityViolation)

	var cerr *CausalityError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ReasonNotOpen, cerr.Reason)
	assert.Zero(t, rec.Len())
}

func TestLogAndTagRequireOpenOperation(t *testing.T) {
	b, rec := newTestBridge(t)
	ctx := flow.New(context.Background())

	err := b.Log(ctx, event.F(event.KeyEvent, "orphan"))
	assert.ErrorIs(t, err, ErrCausalityViolation)

	err = b.SetTag(ctx, "k", "v")
	assert.ErrorIs(t, err, ErrCausalityViolation)

	var cerr *CausalityError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ReasonNoActiveOperation, cerr.Reason)
	assert.Equal(t, "set-tag", cerr.Op)

	assert.Zero(t, rec.Len())
}

func TestLogAfterLastFinishFails(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := flow.New(context.Background())

	require.NoError(t, b.Activate(ctx, "A"))
	require.NoError(t, b.Finish(ctx, "A"))
	assert.ErrorIs(t, b.Log(ctx), ErrCausalityViolation)
}

func TestNoFlow(t *testing.T) {
	b, rec := newTestBridge(t)
	ctx := context.Background()

	assert.ErrorIs(t, b.Activate(ctx, "A"), ErrNoFlow)
	assert.ErrorIs(t, b.Finish(ctx, "A"), ErrNoFlow)
	assert.ErrorIs(t, b.Log(ctx), ErrNoFlow)
	assert.ErrorIs(t, b.SetTag(ctx, "k", "v"), ErrNoFlow)

	_, _, err := b.Current(ctx)
	assert.ErrorIs(t, err, ErrNoFlow)
	assert.False(t, errors.Is(ErrNoFlow, ErrCausalityViolation))
	assert.Zero(t, rec.Len())
}

func TestSeparateRootFlows(t *testing.T) {
	b, rec := newTestBridge(t)
	first := flow.New(context.Background())
	second := flow.New(context.Background())

	require.NoError(t, b.Activate(first, "A"))
	require.NoError(t, b.Activate(second, "A"))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].Position)
	assert.Equal(t, "1", events[1].Position)
	assert.NotEqual(t, events[0].Trace, events[1].Trace)
}

func TestOpen(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := flow.New(context.Background())

	require.NoError(t, b.Activate(ctx, "A"))
	require.NoError(t, b.Activate(ctx, "B"))
	assert.Equal(t, []string{"A", "B"}, b.Open(ctx))

	child := flow.Fork(ctx)
	require.NoError(t, b.Finish(ctx, "B"))
	assert.Equal(t, []string{"A"}, b.Open(ctx))
	assert.Equal(t, []string{"A", "B"}, b.Open(child))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	b, _ := newTestBridge(t, WithMetrics(metrics))
	ctx := flow.New(context.Background())

	require.NoError(t, b.Activate(ctx, "A"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveOperations))

	require.NoError(t, b.Log(ctx))
	require.NoError(t, b.SetTag(ctx, "k", "v"))
	require.Error(t, b.Finish(ctx, "B"))
	require.NoError(t, b.Finish(ctx, "A"))
	require.Error(t, b.Log(ctx))

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveOperations))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("log")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Violations.WithLabelValues(string(ReasonMismatch))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Violations.WithLabelValues(string(ReasonNoActiveOperation))))

	snap := metrics.Snapshot()
	assert.Equal(t, int64(4), snap.Events)
	assert.Equal(t, int64(2), snap.Violations)
}

func TestMetricsUnderConcurrentFlows(t *testing.T) {
	const n = 64
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	b, rec := newTestBridge(t, WithMetrics(metrics))
	ctx := flow.New(context.Background())
	require.NoError(t, b.Activate(ctx, "Root"))

	g := flow.NewGroup(ctx)
	for i := 0; i < n; i++ {
		g.Go(func(ctx context.Context) error {
			if err := b.Activate(ctx, "Child"); err != nil {
				return err
			}
			if err := b.Log(ctx); err != nil {
				return err
			}
			return b.Finish(ctx, "Child")
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, b.Finish(ctx, "Root"))

	snap := metrics.Snapshot()
	assert.Equal(t, int64(rec.Len()), snap.Events)
	assert.Equal(t, int64(2+3*n), snap.Events)
	assert.Zero(t, snap.Violations)
	assert.Equal(t, float64(n+1), testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("start")))
	assert.Equal(t, float64(n+1), testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("stop")))
	assert.Equal(t, float64(n), testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("log")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveOperations))
}
