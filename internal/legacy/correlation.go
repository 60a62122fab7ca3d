package legacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
)

// ErrNoLogicalOperation is returned by StopLogicalOperation when the flow has
// no logical operation open.
var ErrNoLogicalOperation = errors.New("legacy: no logical operation open")

// NullOperationName names operations started with a nil id.
const NullOperationName = "null operationId"

type logicalFrame struct {
	id    any
	name  string
	below *logicalFrame
}

// CorrelationManager keeps a per-flow stack of logical operation ids. Every
// logical operation is also an operation of the bridge, so code instrumented
// only with logical operations still produces a position tree.
type CorrelationManager struct {
	handler bridge.Handler
	top     *flow.Cell[*logicalFrame]
}

// NewCorrelationManager creates a manager reporting to h
func NewCorrelationManager(h bridge.Handler) *CorrelationManager {
	return &CorrelationManager{
		handler: h,
		top:     flow.NewCell[*logicalFrame]("logical-operations"),
	}
}

// StartLogicalOperation opens an operation named after id.
func (m *CorrelationManager) StartLogicalOperation(ctx context.Context, id any) error {
	name := operationName(id)
	if err := m.handler.Activate(ctx, name); err != nil {
		return fmt.Errorf("start logical operation %q: %w", name, err)
	}
	m.top.Set(ctx, &logicalFrame{id: id, name: name, below: m.top.Get(ctx)})
	return nil
}

// StopLogicalOperation closes the most recently started logical operation. It
// fails, leaving the stack as it was, when that operation is not the
// innermost open operation of the flow.
func (m *CorrelationManager) StopLogicalOperation(ctx context.Context) error {
	top := m.top.Get(ctx)
	if top == nil {
		return ErrNoLogicalOperation
	}
	if err := m.handler.Finish(ctx, top.name); err != nil {
		return fmt.Errorf("stop logical operation %q: %w", top.name, err)
	}
	m.top.Set(ctx, top.below)
	return nil
}

// LogicalOperationStack lists the open ids, most recent first.
func (m *CorrelationManager) LogicalOperationStack(ctx context.Context) []any {
	var ids []any
	for f := m.top.Get(ctx); f != nil; f = f.below {
		ids = append(ids, f.id)
	}
	return ids
}

func operationName(id any) string {
	switch v := id.(type) {
	case nil:
		return NullOperationName
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
