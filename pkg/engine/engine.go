// Package engine defines the capabilities a Kernel needs from a
// satisfiability engine and the artifacts an engine produces.
package engine

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/term"
)

var (
	// ErrNoResult is returned by result accessors when no check has
	// completed since the last assertion, push, or pop.
	ErrNoResult = errors.New("no result available")
	// ErrModelDisabled is returned by Model when model production is
	// turned off.
	ErrModelDisabled = errors.New("model production is disabled")
	// ErrProofDisabled is returned by Proof when proof production is
	// turned off.
	ErrProofDisabled = errors.New("proof production is disabled")
)

// Engine is one solving session. An Engine owns its assertion stack
// and the artifacts of its most recent check. Apart from
// SetCancelFlag, CancelFlag and Statistics, methods must not be
// called concurrently.
type Engine interface {
	// Assert adds f to the assertion set at the current scope. A
	// non-nil pr is recorded as the justification of f.
	Assert(f term.Formula, pr *Proof)
	Push()
	// Pop removes the n innermost scopes. It fails without effect if
	// n exceeds ScopeLevel.
	Pop(n int) error
	// SetLogic selects the logic of the session. It returns false if
	// the name is not recognized or assertions have already been
	// made.
	SetLogic(name string) bool
	SetupAndCheck() Result
	// Check searches for a model of the assertion set extended by
	// assumptions, which hold for this call only.
	Check(assumptions ...term.Formula) Result
	// Inconsistent returns true if the assertion set is known to be
	// unsatisfiable without search.
	Inconsistent() bool
	// Reduce drops assertions already entailed by earlier ones and
	// reports whether the assertion set changed.
	Reduce() bool

	Model() (*Model, error)
	Proof() (*Proof, error)
	UnsatCoreSize() int
	UnsatCoreAt(i int) term.Formula
	LastFailure() Failure
	LastFailureDescription() string
	Assignments() []term.Formula
	// RelevantLabels returns the labels of formulas that hold in the
	// last model and contribute to constraint, or to the live
	// assertions if constraint is Null.
	RelevantLabels(constraint term.Formula) []string
	RelevantLiterals(includeLabels bool) []term.Formula
	GuessedLiterals() []term.Formula
	QuantifierInstance() term.Formula

	ScopeLevel() int
	Size() int
	Formulas() []term.Formula

	SetCancelFlag(flag bool)
	CancelFlag() bool

	Statistics() Statistics
	ResetStatistics()
	DisplayStatistics(w io.Writer) error
	SetProgressCallback(fn ProgressFunc)

	Config() config.Config
	// Close releases the session. The Engine must not be used
	// afterwards.
	Close() error
}

// ProgressFunc receives periodic statistics from a running check.
type ProgressFunc func(Statistics)

// Options are the construction inputs of an Engine.
type Options struct {
	Context *term.Context
	Config  config.Config
	// Cancel, if non-nil, is shared with the caller so that a check
	// can be cancelled without reference to the Engine.
	Cancel *CancelFlag
	Logger logrus.FieldLogger
	Tracer Tracer
}

// Factory constructs Engines.
type Factory interface {
	New(o Options) (Engine, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(o Options) (Engine, error)

func (f FactoryFunc) New(o Options) (Engine, error) {
	return f(o)
}
