package clock

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is an operation's place in its flow tree: the sibling index of
// every ancestor from the root down, then its own. Rendered as "1.2.1".
type Position []int

// String renders the position as dot-separated integers.
func (p Position) String() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, v := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

// ParsePosition parses the output of Position.String.
func ParsePosition(s string) (Position, error) {
	if s == "" {
		return nil, fmt.Errorf("parse position: empty")
	}
	parts := strings.Split(s, ".")
	p := make(Position, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse position %q: %w", s, err)
		}
		if v < 1 {
			return nil, fmt.Errorf("parse position %q: component %d is %d, want >= 1", s, i, v)
		}
		p[i] = v
	}
	return p, nil
}

// Depth is the number of operations open when this position was current.
func (p Position) Depth() int { return len(p) }

// Parent returns the enclosing position, or nil for a root position.
func (p Position) Parent() Position {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Child returns the position of the nth child of p.
func (p Position) Child(n int) Position {
	c := make(Position, len(p)+1)
	copy(c, p)
	c[len(p)] = n
	return c
}

// Equal reports whether p and q are the same position.
func (p Position) Equal(q Position) bool {
	return Compare(p, q) == 0
}

// IsAncestorOf reports whether p strictly encloses q.
func (p Position) IsAncestorOf(q Position) bool {
	if len(p) >= len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Compare orders positions in pre-order: an ancestor sorts before its
// descendants, and earlier siblings (with their subtrees) before later ones.
func Compare(p, q Position) int {
	for i := 0; i < len(p) && i < len(q); i++ {
		switch {
		case p[i] < q[i]:
			return -1
		case p[i] > q[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(q):
		return -1
	case len(p) > len(q):
		return 1
	}
	return 0
}
