package kernel

import (
	"fmt"
	"io"

	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/term"
)

// Size returns the number of live assertions.
func (k *Kernel) Size() int {
	return k.current().Size()
}

// Formulas returns the live assertions, outermost scope first.
func (k *Kernel) Formulas() []term.Formula {
	return k.current().Formulas()
}

func (k *Kernel) ScopeLevel() int {
	return k.current().ScopeLevel()
}

func (k *Kernel) Inconsistent() bool {
	return k.current().Inconsistent()
}

// Model returns the model of the last satisfiable check, or
// engine.ErrNoResult if there is none.
func (k *Kernel) Model() (*engine.Model, error) {
	return k.current().Model()
}

func (k *Kernel) Proof() (*engine.Proof, error) {
	return k.current().Proof()
}

func (k *Kernel) UnsatCoreSize() int {
	return k.current().UnsatCoreSize()
}

func (k *Kernel) UnsatCoreAt(i int) term.Formula {
	return k.current().UnsatCoreAt(i)
}

// UnsatCore returns every formula of the unsat core.
func (k *Kernel) UnsatCore() []term.Formula {
	e := k.current()
	result := make([]term.Formula, e.UnsatCoreSize())
	for i := range result {
		result[i] = e.UnsatCoreAt(i)
	}
	return result
}

func (k *Kernel) LastFailure() engine.Failure {
	return k.current().LastFailure()
}

func (k *Kernel) LastFailureDescription() string {
	return k.current().LastFailureDescription()
}

func (k *Kernel) Assignments() []term.Formula {
	return k.current().Assignments()
}

func (k *Kernel) RelevantLabels(constraint term.Formula) []string {
	return k.current().RelevantLabels(constraint)
}

func (k *Kernel) RelevantLiterals(includeLabels bool) []term.Formula {
	return k.current().RelevantLiterals(includeLabels)
}

func (k *Kernel) GuessedLiterals() []term.Formula {
	return k.current().GuessedLiterals()
}

func (k *Kernel) QuantifierInstance() term.Formula {
	return k.current().QuantifierInstance()
}

func (k *Kernel) Statistics() engine.Statistics {
	return k.current().Statistics()
}

func (k *Kernel) ResetStatistics() {
	k.current().ResetStatistics()
}

func (k *Kernel) DisplayStatistics(w io.Writer) error {
	return k.current().DisplayStatistics(w)
}

// Display writes the live assertions to w.
func (k *Kernel) Display(w io.Writer) error {
	fs := k.Formulas()
	if _, err := io.WriteString(w, "(kernel"); err != nil {
		return err
	}
	for _, f := range fs {
		if _, err := fmt.Fprintf(w, "\n  %s", k.ctx.String(f)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, ")")
	return err
}
