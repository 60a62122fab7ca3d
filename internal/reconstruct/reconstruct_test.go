package reconstruct

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
	"github.com/ndrwrbgs/flowtrace/internal/sink"
)

var fixed = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newBridge() (*bridge.Bridge, *sink.Recorder) {
	rec := sink.NewRecorder()
	return bridge.New(rec, bridge.WithClock(func() time.Time { return fixed })), rec
}

func startPositions(events []event.Event) []string {
	var out []string
	for _, e := range events {
		if e.Kind == event.KindStart {
			out = append(out, e.Position)
		}
	}
	return out
}

// Emission order of start positions in a single flow is a pre-order walk of
// the nesting tree.
func TestSingleFlowRoundTrip(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(strconv.FormatUint(seed, 10), func(t *testing.T) {
			r := rand.New(rand.NewPCG(seed, seed*7))
			b, rec := newBridge()
			ctx := flow.New(context.Background())

			var open []string
			for i := 0; i < 200; i++ {
				if len(open) == 0 || (len(open) < 6 && r.IntN(2) == 0) {
					name := "op" + strconv.Itoa(i)
					require.NoError(t, b.Activate(ctx, name))
					open = append(open, name)
					continue
				}
				if r.IntN(4) == 0 {
					require.NoError(t, b.Log(ctx, event.F(event.KeyEvent, "tick")))
				}
				require.NoError(t, b.Finish(ctx, open[len(open)-1]))
				open = open[:len(open)-1]
			}
			for len(open) > 0 {
				require.NoError(t, b.Finish(ctx, open[len(open)-1]))
				open = open[:len(open)-1]
			}

			events := rec.Events()
			forest, err := Build(events)
			require.NoError(t, err)
			assert.Equal(t, startPositions(events), forest.Positions())
		})
	}
}

func TestForkedFlowsInterleaved(t *testing.T) {
	b, rec := newBridge()
	ctx := flow.New(context.Background())
	require.NoError(t, b.Activate(ctx, "Overall"))

	g := flow.NewGroup(ctx)
	for i := 0; i < 5; i++ {
		g.Go(func(ctx context.Context) error {
			if err := b.Activate(ctx, "Span"); err != nil {
				return err
			}
			if err := b.Activate(ctx, "Inner"); err != nil {
				return err
			}
			if err := b.Finish(ctx, "Inner"); err != nil {
				return err
			}
			return b.Finish(ctx, "Span")
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, b.Finish(ctx, "Overall"))

	forest, err := Build(rec.Events())
	require.NoError(t, err)
	require.Len(t, forest.Trees, 1)

	root := forest.Trees[0].Root
	assert.Equal(t, "Overall", root.Operation)
	require.Len(t, root.Children, 5)
	for i, c := range root.Children {
		assert.Equal(t, "1."+strconv.Itoa(i+1), c.Position.String())
		require.Len(t, c.Children, 1)
		assert.Equal(t, c.Position.Child(1), c.Children[0].Position)
		assert.False(t, c.Open())
	}
}

func TestSeparateTracesAndReusedRoot(t *testing.T) {
	b, rec := newBridge()
	first := flow.New(context.Background())
	second := flow.New(context.Background())

	require.NoError(t, b.Activate(first, "A"))
	require.NoError(t, b.Activate(second, "B"))
	require.NoError(t, b.Finish(first, "A"))
	require.NoError(t, b.Activate(first, "C"))
	require.NoError(t, b.Activate(first, "D"))

	forest, err := Build(rec.Events())
	require.NoError(t, err)
	require.Len(t, forest.Trees, 3)

	assert.Equal(t, "A", forest.Trees[0].Root.Operation)
	assert.Equal(t, "B", forest.Trees[1].Root.Operation)
	assert.Equal(t, "C", forest.Trees[2].Root.Operation)
	assert.Equal(t, forest.Trees[0].Trace, forest.Trees[2].Trace)
	assert.NotEqual(t, forest.Trees[0].Trace, forest.Trees[1].Trace)

	require.Len(t, forest.Trees[2].Root.Children, 1)
	assert.True(t, forest.Trees[2].Root.Children[0].Open())
}

func TestLogsAndTagsAttach(t *testing.T) {
	b, rec := newBridge()
	ctx := flow.New(context.Background())

	require.NoError(t, b.Activate(ctx, "A"))
	require.NoError(t, b.SetTag(ctx, "key", "value"))
	require.NoError(t, b.Log(ctx, event.F(event.KeyEvent, "Starting now"), event.F(event.KeyLevel, event.LevelWarning)))
	require.NoError(t, b.Finish(ctx, "A"))

	forest, err := Build(rec.Events())
	require.NoError(t, err)

	root := forest.Trees[0].Root
	require.Len(t, root.Events, 2)
	assert.Equal(t, event.KindTag, root.Events[0].Kind)
	assert.Equal(t, "Starting now", root.Events[1].Text())

	var out bytes.Buffer
	require.NoError(t, forest.Render(&out))
	assert.Equal(t,
		forest.Trees[0].Trace.String()+"\n"+
			"  1 A (0s)\n"+
			"    - tag key=value\n"+
			"    - warning Starting now\n",
		out.String())
}

func TestBuildRejectsMalformedStreams(t *testing.T) {
	startEv := func(pos, op string) event.Event {
		return event.Event{Kind: event.KindStart, Position: pos, Operation: op}
	}
	stopEv := func(pos, op string) event.Event {
		return event.Event{Kind: event.KindStop, Position: pos, Operation: op}
	}

	tests := []struct {
		name   string
		events []event.Event
		want   error
	}{
		{"duplicate start", []event.Event{startEv("1", "A"), startEv("1", "B")}, ErrDuplicateStart},
		{"stop without start", []event.Event{stopEv("1", "A")}, ErrUnmatchedStop},
		{"double stop", []event.Event{startEv("1", "A"), stopEv("1", "A"), stopEv("1", "A")}, ErrUnmatchedStop},
		{"stop names other op", []event.Event{startEv("1", "A"), stopEv("1", "B")}, ErrUnmatchedStop},
		{"orphan child", []event.Event{startEv("1.1", "A")}, ErrOrphan},
		{"orphan log", []event.Event{{Kind: event.KindLog, Position: "1"}}, ErrOrphan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.events)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Build([]event.Event{startEv("x", "A")})
	assert.Error(t, err)
}

func TestWalkSkipsChildren(t *testing.T) {
	b, rec := newBridge()
	ctx := flow.New(context.Background())
	require.NoError(t, b.Activate(ctx, "A"))
	require.NoError(t, b.Activate(ctx, "B"))

	forest, err := Build(rec.Events())
	require.NoError(t, err)

	var seen []string
	forest.Walk(func(_ *Tree, n *Node, _ int) bool {
		seen = append(seen, n.Operation)
		return false
	})
	assert.Equal(t, []string{"A"}, seen)
}
