package term

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

type label struct {
	name string
	m    z.Lit
}

// Context owns the circuit from which Formulas are built. A Context is
// safe for concurrent use and is intended to be shared, read-mostly, by
// any number of kernels.
type Context struct {
	mu     sync.RWMutex
	c      *logic.C
	byName map[string]z.Lit
	names  map[z.Var]string
	order  []z.Lit
	labels []label
	byLbl  map[string]int
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{
		c:      logic.NewC(),
		byName: make(map[string]z.Lit),
		names:  make(map[z.Var]string),
		byLbl:  make(map[string]int),
	}
}

// True returns the constant true formula.
func (c *Context) True() Formula {
	return Formula{m: c.c.T}
}

// False returns the constant false formula.
func (c *Context) False() Formula {
	return Formula{m: c.c.F}
}

// Var returns the atom with the given name, creating it if this is
// the first reference to name.
func (c *Context) Var(name string) Formula {
	c.mu.RLock()
	m, ok := c.byName[name]
	c.mu.RUnlock()
	if ok {
		return Formula{m: m}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.byName[name]; ok {
		return Formula{m: m}
	}
	m = c.c.Lit()
	c.byName[name] = m
	c.names[m.Var()] = name
	c.order = append(c.order, m)
	return Formula{m: m}
}

// Fresh returns a new anonymous atom.
func (c *Context) Fresh() Formula {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Formula{m: c.c.Lit()}
}

// Vars returns every named atom in declaration order.
func (c *Context) Vars() []Formula {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Formula, len(c.order))
	for i, m := range c.order {
		result[i] = Formula{m: m}
	}
	return result
}

// Name returns the name of the atom underlying f, if f is a named atom
// or the negation of one.
func (c *Context) Name(f Formula) (string, bool) {
	if f.IsNull() {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[f.m.Var()]
	return name, ok
}

// IsAtom returns true if f, ignoring polarity, is an input of the
// circuit rather than a constant or a compound formula.
func (c *Context) IsAtom(f Formula) bool {
	if f.IsNull() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isInput(f.m)
}

func (c *Context) isInput(m z.Lit) bool {
	if m.Var() == c.c.T.Var() {
		return false
	}
	a, _ := c.c.Ins(m.Var().Pos())
	return a == z.LitNull
}

// Not returns the negation of f.
func (c *Context) Not(f Formula) Formula {
	if f.IsNull() {
		return f
	}
	return Formula{m: f.m.Not()}
}

// And returns the conjunction of fs, which is True if fs is empty.
func (c *Context) And(fs ...Formula) Formula {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Formula{m: c.c.Ands(lits(fs)...)}
}

// Or returns the disjunction of fs, which is False if fs is empty.
func (c *Context) Or(fs ...Formula) Formula {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Formula{m: c.c.Ors(lits(fs)...)}
}

// Implies returns a formula equivalent to "a implies b".
func (c *Context) Implies(a, b Formula) Formula {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Formula{m: c.c.Implies(a.m, b.m)}
}

// Xor returns a formula equivalent to "a xor b".
func (c *Context) Xor(a, b Formula) Formula {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Formula{m: c.c.Xor(a.m, b.m)}
}

// Iff returns a formula equivalent to "a if and only if b".
func (c *Context) Iff(a, b Formula) Formula {
	return c.Not(c.Xor(a, b))
}

// Ite returns a formula equivalent to "if i then t else e".
func (c *Context) Ite(i, t, e Formula) Formula {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Formula{m: c.c.Choice(i.m, t.m, e.m)}
}

// Label attaches name to f and returns f. Labels are reported by
// relevancy queries when the labelled formula holds in a model.
// Relabelling a name moves it to the new formula.
func (c *Context) Label(name string, f Formula) Formula {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.byLbl[name]; ok {
		c.labels[i].m = f.m
		return f
	}
	c.byLbl[name] = len(c.labels)
	c.labels = append(c.labels, label{name: name, m: f.m})
	return f
}

// Labeled returns the formula carrying the given label.
func (c *Context) Labeled(name string) (Formula, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byLbl[name]
	if !ok {
		return Null, false
	}
	return Formula{m: c.labels[i].m}, true
}

// Labels returns the names of all labels, sorted.
func (c *Context) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]string, 0, len(c.labels))
	for _, l := range c.labels {
		result = append(result, l.name)
	}
	sort.Strings(result)
	return result
}

// LabelsOf returns the names of the labels attached to formulas
// reachable from roots, sorted.
func (c *Context) LabelsOf(roots ...Formula) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cone := c.cone(roots)
	var result []string
	for _, l := range c.labels {
		if cone[l.m.Var()] {
			result = append(result, l.name)
		}
	}
	sort.Strings(result)
	return result
}

// Atoms returns the positive atoms reachable from roots, ordered by
// creation.
func (c *Context) Atoms(roots ...Formula) []Formula {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cone := c.cone(roots)
	vs := make([]z.Var, 0, len(cone))
	for v := range cone {
		if c.isInput(v.Pos()) {
			vs = append(vs, v)
		}
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	result := make([]Formula, len(vs))
	for i, v := range vs {
		result[i] = Formula{m: v.Pos()}
	}
	return result
}

// cone returns the set of variables reachable from roots. The read
// lock must be held.
func (c *Context) cone(roots []Formula) map[z.Var]bool {
	seen := make(map[z.Var]bool)
	stack := make([]z.Lit, 0, len(roots))
	for _, f := range roots {
		if !f.IsNull() {
			stack = append(stack, f.m)
		}
	}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		v := m.Var()
		if seen[v] || v == c.c.T.Var() {
			continue
		}
		seen[v] = true
		if a, b := c.c.Ins(v.Pos()); a != z.LitNull {
			stack = append(stack, a, b)
		}
	}
	return seen
}

// Eval evaluates f under the given valuation of its positive atoms.
func (c *Context) Eval(f Formula, valuation func(atom Formula) bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	memo := make(map[z.Var]bool)
	var eval func(m z.Lit) bool
	eval = func(m z.Lit) bool {
		v := m.Var()
		r, ok := memo[v]
		if !ok {
			switch a, b := c.c.Ins(v.Pos()); {
			case v == c.c.T.Var():
				r = true
			case a == z.LitNull:
				r = valuation(Formula{m: v.Pos()})
			default:
				r = eval(a) && eval(b)
			}
			memo[v] = r
		}
		if !m.IsPos() {
			return !r
		}
		return r
	}
	if f.IsNull() {
		return false
	}
	return eval(f.m)
}

// Encode adds to dst the Tseitin clauses defining every node reachable
// from roots that is not yet marked in marks, and returns the updated
// marks. Callers keep one marks slice per destination.
func (c *Context) Encode(dst inter.Adder, marks []int8, roots ...Formula) []int8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	marks, _ = c.c.CnfSince(dst, marks, lits(roots)...)
	return marks
}

// Len returns the number of circuit nodes, an upper bound on the
// number of variables any encoding of formulas from c can use.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.c.Len()
}

func (c *Context) atomName(v z.Var) string {
	if name, ok := c.names[v]; ok {
		return name
	}
	return fmt.Sprintf("k!%d", v)
}

func lits(fs []Formula) []z.Lit {
	ms := make([]z.Lit, 0, len(fs))
	for _, f := range fs {
		if f.IsNull() {
			continue
		}
		ms = append(ms, f.m)
	}
	return ms
}
