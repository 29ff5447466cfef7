package term

import (
	"io"
	"strings"

	"github.com/go-air/gini/z"
)

// String renders f as an s-expression. Nested conjunctions and
// disjunctions are flattened.
func (c *Context) String(f Formula) string {
	var b strings.Builder
	c.mu.RLock()
	c.write(&b, f.m)
	c.mu.RUnlock()
	return b.String()
}

// Fprint writes the rendering of f to w.
func (c *Context) Fprint(w io.Writer, f Formula) error {
	_, err := io.WriteString(w, c.String(f))
	return err
}

func (c *Context) write(b *strings.Builder, m z.Lit) {
	switch {
	case m == z.LitNull:
		b.WriteString("null")
		return
	case m == c.c.T:
		b.WriteString("true")
		return
	case m == c.c.F:
		b.WriteString("false")
		return
	case c.isInput(m):
		if m.IsPos() {
			b.WriteString(c.atomName(m.Var()))
			return
		}
		b.WriteString("(not ")
		b.WriteString(c.atomName(m.Var()))
		b.WriteString(")")
		return
	}

	var op string
	var args []z.Lit
	if m.IsPos() {
		op, args = "and", c.conjuncts(m, nil)
	} else {
		op, args = "or", c.disjuncts(m, nil)
	}
	b.WriteString("(")
	b.WriteString(op)
	for _, a := range args {
		b.WriteString(" ")
		c.write(b, a)
	}
	b.WriteString(")")
}

// conjuncts flattens the positive and-node m.
func (c *Context) conjuncts(m z.Lit, dst []z.Lit) []z.Lit {
	a, b := c.c.Ins(m.Var().Pos())
	for _, x := range [2]z.Lit{a, b} {
		if x.IsPos() && !c.isInput(x) && x != c.c.T {
			dst = c.conjuncts(x, dst)
			continue
		}
		dst = append(dst, x)
	}
	return dst
}

// disjuncts flattens the negated and-node m.
func (c *Context) disjuncts(m z.Lit, dst []z.Lit) []z.Lit {
	a, b := c.c.Ins(m.Var().Pos())
	for _, x := range [2]z.Lit{a, b} {
		d := x.Not()
		if !d.IsPos() && !c.isInput(d) && d != c.c.F {
			dst = c.disjuncts(d, dst)
			continue
		}
		dst = append(dst, d)
	}
	return dst
}
