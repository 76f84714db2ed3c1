package frame

import (
	"reflect"
)

// Condition is a single key of an ordered query.
type Condition struct {
	Key   string
	Value any
}

type cachedItem struct {
	frame *Frame
	cond  Condition
}

// CachedFrame answers successive queries on the same frame, reusing the
// results of previous queries that share a prefix of conditions.
//
// Every query is applied as a chain of single-key filters. The intermediate
// frames are kept on a stack, so a query whose first conditions (keys, order
// and values) match the previous one only filters what changed:
//
//	stack[0] = frame filtered by simulation_id=1
//	stack[1] = stack[0] filtered by circuit_id=0
//	stack[2] = stack[1] filtered by window="w1"
//
// A CachedFrame is not safe for concurrent use.
type CachedFrame struct {
	base      *Frame
	validKeys map[string]bool
	stack     []cachedItem
	matched   int
}

// NewCachedFrame wraps f.
func NewCachedFrame(f *Frame) *CachedFrame {
	valid := make(map[string]bool, f.Width())
	for _, name := range f.Columns() {
		valid[name] = true
	}
	return &CachedFrame{base: f, validKeys: valid}
}

// Query returns the base frame filtered by all the conditions. With
// ignoreUnknownKeys, conditions on keys that are neither columns nor index
// levels are dropped; otherwise they fail the query.
func (c *CachedFrame) Query(conds []Condition, ignoreUnknownKeys bool) (*Frame, error) {
	if ignoreUnknownKeys {
		kept := make([]Condition, 0, len(conds))
		for _, cond := range conds {
			if c.validKeys[cond.Key] {
				kept = append(kept, cond)
			}
		}
		conds = kept
	}

	c.matched = LongestMatchCount(c.stack, conds, func(item cachedItem, cond Condition) bool {
		return item.cond.Key == cond.Key && reflect.DeepEqual(item.cond.Value, cond.Value)
	})
	c.stack = c.stack[:c.matched]

	f := c.base
	if len(c.stack) > 0 {
		f = c.stack[len(c.stack)-1].frame
	}
	for len(c.stack) < len(conds) {
		cond := conds[len(c.stack)]
		next, err := Query(f, Filter{cond.Key: cond.Value})
		if err != nil {
			return nil, err
		}
		f = next
		c.stack = append(c.stack, cachedItem{frame: f, cond: cond})
	}
	return f, nil
}

// Matched returns how many conditions of the last query were served from
// the stack.
func (c *CachedFrame) Matched() int { return c.matched }

// LongestMatchCount returns the number of matching elements from the
// beginning of a and b.
func LongestMatchCount[A, B any](a []A, b []B, eq func(A, B) bool) int {
	n := 0
	for n < len(a) && n < len(b) && eq(a[n], b[n]) {
		n++
	}
	return n
}
