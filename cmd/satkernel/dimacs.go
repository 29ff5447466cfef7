package main

import (
	"io"
	"strconv"

	"github.com/go-air/gini/dimacs"
	"github.com/go-air/gini/z"

	"github.com/operator-framework/satkernel/pkg/term"
)

type asserter interface {
	Assert(f term.Formula)
}

// loader turns DIMACS clauses into assertions. DIMACS variable n is
// the atom named "xn".
type loader struct {
	ctx    *term.Context
	dst    asserter
	clause []term.Formula

	// incremental input only
	assumptions []term.Formula
	check       func(assumptions []term.Formula)
}

func atomName(v z.Var) string {
	return "x" + strconv.Itoa(int(v))
}

func (l *loader) literal(m z.Lit) term.Formula {
	f := l.ctx.Var(atomName(m.Var()))
	if !m.IsPos() {
		f = l.ctx.Not(f)
	}
	return f
}

// Init ignores the header counts. Atoms are created on first use.
func (l *loader) Init(v, c int) {}

func (l *loader) Add(m z.Lit) {
	if m != z.LitNull {
		l.clause = append(l.clause, l.literal(m))
		return
	}
	l.dst.Assert(l.ctx.Or(l.clause...))
	l.clause = l.clause[:0]
}

func (l *loader) Assume(m z.Lit) {
	if m != z.LitNull {
		l.assumptions = append(l.assumptions, l.literal(m))
		return
	}
	if l.check != nil {
		l.check(l.assumptions)
	}
	l.assumptions = nil
}

func (l *loader) Eof() {
	if len(l.clause) > 0 {
		l.Add(z.LitNull)
	}
}

// readCNF asserts every clause of a "p cnf" document.
func readCNF(r io.Reader, ctx *term.Context, dst asserter) error {
	l := &loader{ctx: ctx, dst: dst}
	if err := dimacs.ReadCnf(r, l); err != nil {
		return err
	}
	// the reader does not report a final clause missing its terminator
	l.Eof()
	return nil
}

// readICNF asserts the clauses of a "p inccnf" document and calls
// check at the end of every assumption line.
func readICNF(r io.Reader, ctx *term.Context, dst asserter, check func([]term.Formula)) error {
	return dimacs.ReadICnf(r, &loader{ctx: ctx, dst: dst, check: check})
}
