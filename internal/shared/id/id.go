// Package id provides identifier generation for flows and traces.
//
// Identifiers are prefixed ULIDs:
//   - Lexicographic sortability: flows started later sort later
//   - Prefixed types: "flow_*" and "trace_*" are readable in sink output
//   - Type safety: FlowID and TraceID cannot be mixed up
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// FlowID identifies one logical flow of execution
type FlowID string

// TraceID identifies the root flow a family of forked flows descends from
type TraceID string

const (
	FlowPrefix  = "flow"
	TracePrefix = "trace"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewFlowID generates a new flow ID
func NewFlowID() FlowID {
	return FlowID(Default().GenerateWithPrefix(FlowPrefix))
}

// TraceOf derives the trace ID for a root flow. A root flow and the trace it
// anchors share the same ULID so the two can be correlated in output.
func TraceOf(root FlowID) TraceID {
	_, u, ok := strings.Cut(string(root), "_")
	if !ok {
		return TraceID(TracePrefix + "_" + string(root))
	}
	return TraceID(TracePrefix + "_" + u)
}

func (id FlowID) String() string  { return string(id) }
func (id TraceID) String() string { return string(id) }

// IsValid checks if an ID string, with or without its prefix, is a valid ULID
func IsValid(id string) bool {
	if _, u, ok := strings.Cut(id, "_"); ok {
		id = u
	}
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the creation time from a (prefixed) ID
func Timestamp(id string) (time.Time, error) {
	if _, u, ok := strings.Cut(id, "_"); ok {
		id = u
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
