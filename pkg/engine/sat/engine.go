// Package sat implements engine.Engine on top of the gini CDCL
// solver. Every assertion is guarded by a selector literal which is
// assumed on each check, so that failed selectors identify the
// asserted formulas responsible for an unsatisfiable result and
// retracting a scope only requires disabling its selectors.
//
// Each Engine numbers its solver variables independently of the
// shared term context. Circuit variables are mapped on first use and
// selectors exist only in the solver, so the context is never
// extended by a session.
package sat

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/term"
)

type assertion struct {
	f   term.Formula
	sel z.Lit
	pr  *engine.Proof
}

// outcome holds the artifacts of the most recent check.
type outcome struct {
	result      engine.Result
	failure     engine.Failure
	description string
	assumptions []term.Formula
	model       *engine.Model
	core        []term.Formula
	proof       *engine.Proof
	guessed     []term.Formula
}

type Engine struct {
	id     string
	ctx    *term.Context
	cfg    config.Config
	log    logrus.FieldLogger
	tracer engine.Tracer
	cancel *engine.CancelFlag

	g     *gini.Gini
	marks []int8
	// vars maps circuit variables to solver variables. circuit is the
	// inverse, indexed by solver variable, with zero for selectors.
	vars    map[z.Var]z.Var
	circuit []z.Var

	assertions []assertion
	scopes     []int
	logic      string
	setup      bool
	last       *outcome
	closed     bool

	statsMu  sync.Mutex
	stats    engine.Statistics
	progress engine.ProgressFunc
	limiter  *rate.Limiter
}

var _ engine.Engine = &Engine{}

// Factory constructs gini-backed engines.
var Factory = engine.FactoryFunc(func(o engine.Options) (engine.Engine, error) {
	return New(o)
})

// New returns an Engine for a single solving session.
func New(o engine.Options) (*Engine, error) {
	if o.Context == nil {
		return nil, errors.New("engine requires a term context")
	}
	if o.Config.PollInterval <= 0 {
		return nil, errors.Errorf("poll interval must be positive, got %s", o.Config.PollInterval)
	}
	e := &Engine{
		id:     uuid.New().String(),
		ctx:    o.Context,
		cfg:    o.Config,
		log:    o.Logger,
		tracer: o.Tracer,
		cancel: o.Cancel,
		g:       gini.New(),
		vars:    make(map[z.Var]z.Var),
		circuit: []z.Var{0},
		logic:   o.Config.Logic,
	}
	if e.log == nil {
		e.log = logrus.New()
	}
	e.log = e.log.WithField("session", e.id)
	if e.tracer == nil {
		e.tracer = engine.DefaultTracer{}
	}
	if e.cancel == nil {
		e.cancel = &engine.CancelFlag{}
	}
	limit := rate.Inf
	if o.Config.ProgressInterval > 0 {
		limit = rate.Every(o.Config.ProgressInterval)
	}
	e.limiter = rate.NewLimiter(limit, 1)
	return e, nil
}

// ID identifies the session.
func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) Config() config.Config {
	return e.cfg
}

func (e *Engine) Assert(f term.Formula, pr *engine.Proof) {
	if e.closed {
		return
	}
	if f.IsNull() {
		e.log.Warn("ignoring assertion of null formula")
		return
	}
	e.last = nil
	e.marks = e.ctx.Encode(e, e.marks, f)
	sel := e.newVar(0).Pos()
	e.add(sel.Not())
	e.add(e.local(f.Lit()))
	e.add(z.LitNull)
	e.assertions = append(e.assertions, assertion{f: f, sel: sel, pr: pr})

	e.statsMu.Lock()
	e.stats.Assertions++
	e.statsMu.Unlock()
}

// Add receives clause literals over circuit variables from the term
// context and forwards them to the solver.
func (e *Engine) Add(m z.Lit) {
	if m == z.LitNull {
		e.add(m)
		return
	}
	e.add(e.local(m))
}

func (e *Engine) add(m z.Lit) {
	e.g.Add(m)
	if m == z.LitNull {
		e.statsMu.Lock()
		e.stats.Clauses++
		e.statsMu.Unlock()
	}
}

// newVar allocates a solver variable standing for the circuit
// variable src, or for nothing if src is zero.
func (e *Engine) newVar(src z.Var) z.Var {
	v := z.Var(len(e.circuit))
	e.circuit = append(e.circuit, src)
	return v
}

// local returns the solver literal for the circuit literal m,
// allocating its variable on first use.
func (e *Engine) local(m z.Lit) z.Lit {
	v, ok := e.vars[m.Var()]
	if !ok {
		v = e.newVar(m.Var())
		e.vars[m.Var()] = v
	}
	if m.IsPos() {
		return v.Pos()
	}
	return v.Neg()
}

// numVars is the number of solver variables used by the session.
func (e *Engine) numVars() int {
	return len(e.circuit) - 1
}

func (e *Engine) Push() {
	e.last = nil
	e.scopes = append(e.scopes, len(e.assertions))
	e.statsMu.Lock()
	e.stats.Pushes++
	e.statsMu.Unlock()
}

func (e *Engine) Pop(n int) error {
	if e.closed {
		return errors.New("session closed")
	}
	if n < 0 || n > len(e.scopes) {
		return errors.Errorf("cannot pop %d scopes at level %d", n, len(e.scopes))
	}
	if n == 0 {
		return nil
	}
	e.last = nil
	mark := e.scopes[len(e.scopes)-n]
	for _, a := range e.assertions[mark:] {
		e.add(a.sel.Not())
		e.add(z.LitNull)
	}
	e.assertions = e.assertions[:mark]
	e.scopes = e.scopes[:len(e.scopes)-n]

	e.statsMu.Lock()
	e.stats.Pops += n
	e.statsMu.Unlock()
	return nil
}

func (e *Engine) SetLogic(name string) bool {
	if !config.KnownLogic(name) || len(e.assertions) > 0 {
		return false
	}
	e.logic = name
	return true
}

// Logic returns the logic of the session, empty until chosen.
func (e *Engine) Logic() string {
	return e.logic
}

func (e *Engine) SetupAndCheck() engine.Result {
	if !e.setup {
		if e.logic == "" {
			e.logic = config.LogicBool
		}
		e.setup = true
		e.log.WithField("logic", e.logic).Debug("session setup complete")
	}
	return e.Check()
}

func (e *Engine) Inconsistent() bool {
	if e.closed {
		return false
	}
	e.g.Assume(e.selectors()...)
	result, _ := e.g.Test(nil)
	e.g.Untest()
	return result == int(engine.Unsat)
}

// Reduce retracts every live assertion that unit propagation derives
// from the live assertions made before it, which are never in a
// deeper scope. It reports whether anything was retracted. An
// inconsistent assertion set is left alone.
func (e *Engine) Reduce() bool {
	if e.closed || len(e.assertions) == 0 || e.Inconsistent() {
		return false
	}
	keep := make([]bool, len(e.assertions))
	// Test reports propagated literals only into a non-nil slice.
	var support []z.Lit
	buf := make([]z.Lit, 0, 64)
	for i, a := range e.assertions {
		if a.f == e.ctx.True() {
			continue
		}
		e.g.Assume(support...)
		result, out := e.g.Test(buf[:0])
		e.g.Untest()
		if out != nil {
			buf = out
		}
		keep[i] = result == int(engine.Unsat) || !slices.Contains(out, e.local(a.f.Lit()))
		if keep[i] {
			support = append(support, a.sel)
		}
	}

	// retracted[i] counts the retracted assertions below index i.
	retracted := make([]int, len(e.assertions)+1)
	var kept []assertion
	for i, a := range e.assertions {
		retracted[i+1] = retracted[i]
		if keep[i] {
			kept = append(kept, a)
			continue
		}
		retracted[i+1]++
		e.add(a.sel.Not())
		e.add(z.LitNull)
	}
	n := retracted[len(e.assertions)]
	if n == 0 {
		return false
	}
	for i, mark := range e.scopes {
		e.scopes[i] = mark - retracted[mark]
	}
	e.assertions = kept
	e.last = nil

	e.statsMu.Lock()
	e.stats.Reduced += n
	e.statsMu.Unlock()
	e.log.WithField("retracted", n).Debug("assertions reduced")
	return true
}

func (e *Engine) ScopeLevel() int {
	return len(e.scopes)
}

func (e *Engine) Size() int {
	return len(e.assertions)
}

func (e *Engine) Formulas() []term.Formula {
	result := make([]term.Formula, len(e.assertions))
	for i, a := range e.assertions {
		result[i] = a.f
	}
	return result
}

func (e *Engine) selectors() []z.Lit {
	result := make([]z.Lit, len(e.assertions))
	for i, a := range e.assertions {
		result[i] = a.sel
	}
	return result
}

func (e *Engine) SetCancelFlag(flag bool) {
	e.cancel.Set(flag)
}

func (e *Engine) CancelFlag() bool {
	return e.cancel.IsSet()
}

func (e *Engine) Statistics() engine.Statistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *Engine) ResetStatistics() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats = engine.Statistics{}
}

func (e *Engine) DisplayStatistics(w io.Writer) error {
	return e.Statistics().Fprint(w)
}

func (e *Engine) SetProgressCallback(fn engine.ProgressFunc) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.progress = fn
}

func (e *Engine) reportProgress() {
	e.statsMu.Lock()
	fn, stats := e.progress, e.stats
	e.statsMu.Unlock()
	if fn != nil && e.limiter.Allow() {
		fn(stats)
	}
}

func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.last = nil
	e.assertions = nil
	e.scopes = nil
	e.marks = nil
	e.vars = nil
	e.circuit = nil
	e.g = nil
	e.log.Debug("session closed")
	return nil
}

// Check runs a search over the live assertions extended by
// assumptions.
func (e *Engine) Check(assumptions ...term.Formula) engine.Result {
	if e.closed {
		e.last = (&outcome{}).fail(engine.Internal, "session closed")
		return engine.Unknown
	}
	start := time.Now()
	o := e.check(assumptions)
	elapsed := time.Since(start)
	e.last = o

	e.statsMu.Lock()
	e.stats.Add(o.result, elapsed)
	e.stats.Vars = e.numVars()
	e.statsMu.Unlock()

	log := e.log.WithFields(logrus.Fields{
		"result":      o.result,
		"assertions":  len(e.assertions),
		"assumptions": len(o.assumptions),
		"elapsed":     elapsed,
	})
	if o.result == engine.Unknown {
		log = log.WithField("reason", o.failure)
	}
	log.Debug("check complete")
	return o.result
}

func (e *Engine) check(assumptions []term.Formula) *outcome {
	o := &outcome{}
	for _, f := range assumptions {
		if !f.IsNull() {
			o.assumptions = append(o.assumptions, f)
		}
	}

	if e.cancel.IsSet() {
		return o.fail(engine.Canceled, "canceled before search")
	}

	e.marks = e.ctx.Encode(e, e.marks, o.assumptions...)
	assumed := make([]z.Lit, len(o.assumptions))
	for i, f := range o.assumptions {
		assumed[i] = e.local(f.Lit())
	}
	if max, n := e.cfg.MaxVars, e.numVars(); max > 0 && n > max {
		return o.fail(engine.ResourceExhausted, "variable budget of %d exceeded by %d", max, n)
	}

	e.g.Assume(e.selectors()...)
	e.g.Assume(assumed...)

	result, failure := e.search()
	if result == engine.Unknown {
		return o.fail(failure, "search interrupted")
	}
	o.result = result
	if err := e.snapshot(o); err != nil {
		return o.fail(engine.Internal, "%v", err)
	}
	return o
}

// firstPoll is the delay before the first poll of a search. Later
// polls back off exponentially to the configured poll interval.
const firstPoll = 50 * time.Microsecond

// search runs the solver in the background and waits for a result,
// observing the cancellation flag and the configured timeout.
func (e *Engine) search() (engine.Result, engine.Failure) {
	s := e.g.GoSolve()

	wait := firstPoll
	if wait > e.cfg.PollInterval {
		wait = e.cfg.PollInterval
	}
	poll := time.NewTimer(wait)
	defer poll.Stop()
	var deadline <-chan time.Time
	if e.cfg.Timeout > 0 {
		timer := time.NewTimer(e.cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	canceled := e.cancel.Done()

	for {
		select {
		case <-canceled:
			s.Stop()
			return engine.Unknown, engine.Canceled
		case <-deadline:
			s.Stop()
			return engine.Unknown, engine.Timeout
		case <-poll.C:
			e.statsMu.Lock()
			e.stats.Polls++
			e.statsMu.Unlock()

			if result, ok := s.Test(); ok {
				if e.cancel.IsSet() {
					// A result that races with cancellation is
					// discarded.
					return engine.Unknown, engine.Canceled
				}
				return engine.Result(result), engine.None
			}
			e.reportProgress()
			if wait *= 2; wait > e.cfg.PollInterval {
				wait = e.cfg.PollInterval
			}
			poll.Reset(wait)
		}
	}
}

func (o *outcome) fail(f engine.Failure, format string, args ...interface{}) *outcome {
	o.result = engine.Unknown
	o.failure = f
	o.description = fmt.Sprintf(format, args...)
	o.model, o.core, o.proof, o.guessed = nil, nil, nil, nil
	return o
}

// snapshot captures the artifacts of a definite result before any
// further clause addition backtracks the solver.
func (e *Engine) snapshot(o *outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("internal solver failure: %v", r)
		}
	}()
	switch o.result {
	case engine.Sat:
		e.snapshotModel(o)
	case engine.Unsat:
		return e.snapshotConflict(o)
	}
	return nil
}

func (e *Engine) snapshotModel(o *outcome) {
	// Variables mapped for an abandoned check may be unknown to the
	// solver.
	max := e.g.MaxVar()
	values := make(map[z.Var]bool, len(e.vars))
	for v, src := range e.circuit {
		if src != 0 && z.Var(v) <= max {
			values[src] = e.g.Value(z.Var(v).Pos())
		}
	}
	o.model = engine.NewModel(e.ctx, values)

	assumed := make(map[z.Var]struct{}, len(o.assumptions))
	for _, f := range o.assumptions {
		assumed[f.Lit().Var()] = struct{}{}
	}
	var buf []z.Lit
	for _, atom := range e.ctx.Atoms(e.roots(o)...) {
		src := atom.Lit().Var()
		v, ok := e.vars[src]
		if !ok || v > max {
			continue
		}
		if _, ok := e.ctx.Name(atom); !ok {
			continue
		}
		if _, ok := assumed[src]; ok {
			continue
		}
		if buf = e.g.Reasons(buf[:0], v.Pos()); len(buf) > 0 {
			continue
		}
		o.guessed = append(o.guessed, literal(e.ctx, atom, values[src]))
	}
}

func (e *Engine) snapshotConflict(o *outcome) error {
	bySel := make(map[z.Lit]int, len(e.assertions))
	for i, a := range e.assertions {
		bySel[a.sel] = i
	}
	byLit := make(map[z.Lit]term.Formula, len(o.assumptions))
	for _, f := range o.assumptions {
		byLit[e.local(f.Lit())] = f
	}

	var asserted []int
	var assumed []term.Formula
	seen := make(map[z.Lit]struct{})
	for _, m := range e.g.Why(nil) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		if i, ok := bySel[m]; ok {
			asserted = append(asserted, i)
			continue
		}
		if f, ok := byLit[m]; ok {
			assumed = append(assumed, f)
			continue
		}
		return errors.Errorf("failed assumption %s has no source", m)
	}
	slices.Sort(asserted)

	var premises []engine.Premise
	var conflicts []term.Formula
	for _, i := range asserted {
		a := e.assertions[i]
		premises = append(premises, engine.Premise{Formula: a.f, Justification: a.pr})
		conflicts = append(conflicts, a.f)
	}
	for _, f := range assumed {
		premises = append(premises, engine.Premise{Formula: f, Assumption: true})
		conflicts = append(conflicts, f)
	}

	if e.cfg.UnsatCore {
		o.core = conflicts
	}
	if e.cfg.Proof {
		o.proof = engine.NewProof(e.ctx, engine.RuleCore, e.ctx.False(), premises...)
	}

	e.tracer.Trace(position{ctx: e.ctx, assumptions: e.roots(o), conflicts: conflicts})
	return nil
}

// roots returns the live assertions and the assumptions of o.
func (e *Engine) roots(o *outcome) []term.Formula {
	return append(e.Formulas(), o.assumptions...)
}

func literal(ctx *term.Context, atom term.Formula, value bool) term.Formula {
	if value {
		return atom
	}
	return ctx.Not(atom)
}

type position struct {
	ctx         *term.Context
	assumptions []term.Formula
	conflicts   []term.Formula
}

func (p position) Context() *term.Context {
	return p.ctx
}

func (p position) Assumptions() []term.Formula {
	return p.assumptions
}

func (p position) Conflicts() []term.Formula {
	return p.conflicts
}
