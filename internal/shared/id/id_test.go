package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateWithPrefix("flow")
	if !strings.HasPrefix(id, "flow_") {
		t.Errorf("ID should start with 'flow_', got: %s", id)
	}

	parts := strings.Split(id, "_")
	if len(parts) != 2 {
		t.Fatalf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
	}
	if len(parts[1]) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(parts[1]))
	}
}

func TestNewFlowIDUnique(t *testing.T) {
	a := NewFlowID()
	b := NewFlowID()

	if a == b {
		t.Error("Generated flow IDs should be unique")
	}
	if !IsValid(a.String()) {
		t.Errorf("flow ID should be valid: %s", a)
	}
}

func TestTraceOf(t *testing.T) {
	root := NewFlowID()
	trace := TraceOf(root)

	if !strings.HasPrefix(trace.String(), "trace_") {
		t.Errorf("TraceID should start with 'trace_', got: %s", trace)
	}
	if strings.TrimPrefix(trace.String(), "trace_") != strings.TrimPrefix(root.String(), "flow_") {
		t.Errorf("trace %s should share the ULID of root %s", trace, root)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	flow := NewFlowID()

	ts, err := Timestamp(flow.String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) {
		t.Errorf("timestamp %v should not be before %v", ts, before)
	}

	if _, err := Timestamp("flow_not-a-ulid"); err == nil {
		t.Error("Timestamp should fail on invalid ULID")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[FlowID]bool, n)
		wg   sync.WaitGroup
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewFlowID()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate ID generated: %s", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
}
