package term

import (
	"fmt"

	"github.com/go-air/gini/z"
)

// Formula values are opaque handles to nodes of a Context's circuit.
// Two Formulas are equal if and only if they denote the same
// hash-consed node with the same polarity, so Formula values may be
// compared with == and used as map keys.
type Formula struct {
	m z.Lit
}

// Null is the zero Formula. It denotes no formula at all.
var Null = Formula{}

// FromLit returns the Formula corresponding to a circuit literal.
func FromLit(m z.Lit) Formula {
	return Formula{m: m}
}

// Lit returns the circuit literal underlying f.
func (f Formula) Lit() z.Lit {
	return f.m
}

// IsNull returns true if and only if f is the zero Formula.
func (f Formula) IsNull() bool {
	return f.m == z.LitNull
}

// Negated returns true if f is the negation of a circuit node.
func (f Formula) Negated() bool {
	return f.m != z.LitNull && !f.m.IsPos()
}

// Positive returns the non-negated form of f.
func (f Formula) Positive() Formula {
	if f.Negated() {
		return Formula{m: f.m.Not()}
	}
	return f
}

func (f Formula) String() string {
	if f.IsNull() {
		return "null"
	}
	return fmt.Sprintf("#%s", f.m)
}
