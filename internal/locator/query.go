package locator

import (
	"fmt"
	"strings"
)

// TestIDAttribute is the attribute every semantic key is matched against.
const TestIDAttribute = "data-testid"

type segmentKind int

const (
	segTestID segmentKind = iota
	segInput
	segChild
	segRole
)

type segment struct {
	kind  segmentKind
	key   string // test id, or role for segRole
	name  string // accessible name for segRole
	index int    // 0-based, segChild only
}

// Query is an immutable description of elements on a page.
// The zero Query matches nothing useful; build one with ByTestID or Role.
type Query struct {
	segs []segment
}

// ByTestID starts a document-scoped query for the element with the given test id.
func ByTestID(key string) Query {
	return Query{}.TestID(key)
}

// ByTestIDf is ByTestID with a formatted key, e.g. ByTestIDf("skill-check-%d-btn", 3).
func ByTestIDf(format string, args ...any) Query {
	return ByTestID(fmt.Sprintf(format, args...))
}

// ByRole starts a document-scoped query on accessible role and name.
func ByRole(role, name string) Query {
	return Query{}.Role(role, name)
}

// TestID narrows the query to descendants carrying the test id.
func (q Query) TestID(key string) Query {
	return q.with(segment{kind: segTestID, key: key})
}

// Input narrows the query to input elements carrying the test id.
func (q Query) Input(key string) Query {
	return q.with(segment{kind: segInput, key: key})
}

// Child narrows the query to the i-th (0-based) direct child of the current match.
func (q Query) Child(i int) Query {
	return q.with(segment{kind: segChild, index: i})
}

// Role narrows the query to descendants with the accessible role and name.
func (q Query) Role(role, name string) Query {
	return q.with(segment{kind: segRole, key: role, name: name})
}

// with copies the segment slice so that queries sharing a prefix never alias.
func (q Query) with(s segment) Query {
	segs := make([]segment, len(q.segs), len(q.segs)+1)
	copy(segs, q.segs)
	return Query{segs: append(segs, s)}
}

// IsZero reports whether the query has no segments.
func (q Query) IsZero() bool {
	return len(q.segs) == 0
}

// Key returns the last semantic key of the query, or "" if there is none.
// Used to label assertion failures.
func (q Query) Key() string {
	for i := len(q.segs) - 1; i >= 0; i-- {
		switch q.segs[i].kind {
		case segTestID, segInput:
			return q.segs[i].key
		case segRole:
			return q.segs[i].key + ":" + q.segs[i].name
		}
	}
	return ""
}

// Equal reports whether two queries describe the same elements.
func (q Query) Equal(other Query) bool {
	if len(q.segs) != len(other.segs) {
		return false
	}
	for i := range q.segs {
		if q.segs[i] != other.segs[i] {
			return false
		}
	}
	return true
}

// Selector renders the query as one Playwright selector.
// CSS segments are joined with descendant or child combinators; role segments
// are chained with ">>".
func (q Query) Selector() string {
	var b strings.Builder
	prevRole := false
	for i, s := range q.segs {
		switch s.kind {
		case segRole:
			if i > 0 {
				b.WriteString(" >> ")
			}
			fmt.Fprintf(&b, "role=%s[name=%s]", s.key, quoteCSS(s.name))
			prevRole = true
			continue
		case segChild:
			switch {
			case i == 0:
			case prevRole:
				b.WriteString(" >> :scope > ")
			default:
				b.WriteString(" > ")
			}
			fmt.Fprintf(&b, "div:nth-child(%d)", s.index+1)
		case segTestID, segInput:
			switch {
			case i == 0:
			case prevRole:
				b.WriteString(" >> ")
			default:
				b.WriteString(" ")
			}
			if s.kind == segInput {
				b.WriteString("input")
			}
			fmt.Fprintf(&b, "[%s=%s]", TestIDAttribute, quoteCSS(s.key))
		}
		prevRole = false
	}
	return b.String()
}

// String implements fmt.Stringer.
func (q Query) String() string {
	return q.Selector()
}

func quoteCSS(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
