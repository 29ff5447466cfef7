package sat

import (
	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/term"
)

func (e *Engine) Model() (*engine.Model, error) {
	if !e.cfg.Model {
		return nil, engine.ErrModelDisabled
	}
	if e.last == nil || e.last.model == nil {
		return nil, engine.ErrNoResult
	}
	return e.last.model, nil
}

func (e *Engine) Proof() (*engine.Proof, error) {
	if !e.cfg.Proof {
		return nil, engine.ErrProofDisabled
	}
	if e.last == nil || e.last.proof == nil {
		return nil, engine.ErrNoResult
	}
	return e.last.proof, nil
}

func (e *Engine) UnsatCoreSize() int {
	if e.last == nil {
		return 0
	}
	return len(e.last.core)
}

// UnsatCoreAt returns the i'th formula of the unsat core, or Null if i
// is out of range.
func (e *Engine) UnsatCoreAt(i int) term.Formula {
	if e.last == nil || i < 0 || i >= len(e.last.core) {
		return term.Null
	}
	return e.last.core[i]
}

func (e *Engine) LastFailure() engine.Failure {
	if e.last == nil {
		return engine.None
	}
	return e.last.failure
}

func (e *Engine) LastFailureDescription() string {
	if e.last == nil {
		return ""
	}
	return e.last.description
}

// Assignments returns the value in the last model of every named atom
// occurring in the live assertions or assumptions, as a literal.
func (e *Engine) Assignments() []term.Formula {
	if e.last == nil || e.last.model == nil {
		return nil
	}
	var result []term.Formula
	for _, atom := range e.ctx.Atoms(e.roots(e.last)...) {
		if _, ok := e.ctx.Name(atom); !ok {
			continue
		}
		result = append(result, literal(e.ctx, atom, e.last.model.Value(atom)))
	}
	return result
}

func (e *Engine) RelevantLabels(constraint term.Formula) []string {
	if e.last == nil || e.last.model == nil {
		return nil
	}
	roots := e.roots(e.last)
	if !constraint.IsNull() {
		roots = []term.Formula{constraint}
	}
	var result []string
	for _, name := range e.ctx.LabelsOf(roots...) {
		if f, ok := e.ctx.Labeled(name); ok && e.last.model.Value(f) {
			result = append(result, name)
		}
	}
	return result
}

// RelevantLiterals returns the literals of the last model that bear
// on the live assertions. When relevancy is disabled every named atom
// is reported. If includeLabels is set, labelled formulas that hold
// are appended.
func (e *Engine) RelevantLiterals(includeLabels bool) []term.Formula {
	if e.last == nil || e.last.model == nil {
		return nil
	}
	atoms := e.ctx.Vars()
	if e.cfg.Relevancy {
		atoms = e.ctx.Atoms(e.roots(e.last)...)
	}
	var result []term.Formula
	for _, atom := range atoms {
		if _, ok := e.ctx.Name(atom); !ok {
			continue
		}
		result = append(result, literal(e.ctx, atom, e.last.model.Value(atom)))
	}
	if includeLabels {
		for _, name := range e.RelevantLabels(term.Null) {
			f, _ := e.ctx.Labeled(name)
			result = append(result, f)
		}
	}
	return result
}

func (e *Engine) GuessedLiterals() []term.Formula {
	if e.last == nil {
		return nil
	}
	return e.last.guessed
}

// QuantifierInstance always returns Null since the engine is
// propositional.
func (e *Engine) QuantifierInstance() term.Formula {
	return term.Null
}
