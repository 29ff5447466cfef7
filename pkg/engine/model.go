package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-air/gini/z"

	"github.com/operator-framework/satkernel/pkg/term"
)

// Model is a snapshot of the assignment found by a satisfiable check.
// It remains valid after the producing Engine moves on.
type Model struct {
	ctx    *term.Context
	values map[z.Var]bool
}

// NewModel returns a Model in which the atom with variable v is true
// if and only if values[v] is true. Variables absent from values are
// false.
func NewModel(ctx *term.Context, values map[z.Var]bool) *Model {
	return &Model{ctx: ctx, values: values}
}

func (m *Model) atom(f term.Formula) bool {
	return m.values[f.Lit().Var()]
}

// Value evaluates f in the model.
func (m *Model) Value(f term.Formula) bool {
	return m.ctx.Eval(f, m.atom)
}

// Lit returns the value of a single variable of the underlying
// encoding.
func (m *Model) Lit(l z.Lit) bool {
	value := m.atom(term.FromLit(l.Var().Pos()))
	if !l.IsPos() {
		return !value
	}
	return value
}

// Atoms returns the named atoms that are true in the model, in
// declaration order.
func (m *Model) Atoms() []term.Formula {
	var result []term.Formula
	for _, f := range m.ctx.Vars() {
		if m.atom(f) {
			result = append(result, f)
		}
	}
	return result
}

// Fprint writes the value of every named atom to w.
func (m *Model) Fprint(w io.Writer) error {
	_, err := io.WriteString(w, m.String())
	return err
}

func (m *Model) String() string {
	var b strings.Builder
	b.WriteString("(model")
	for _, f := range m.ctx.Vars() {
		fmt.Fprintf(&b, "\n  (%s %t)", m.ctx.String(f), m.atom(f))
	}
	b.WriteString(")")
	return b.String()
}
