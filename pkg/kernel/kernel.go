// Package kernel provides a long-lived handle over a sequence of
// solving sessions. A Kernel forwards assertions, scopes and checks to
// its current engine, and replaces that engine wholesale on Reset
// while keeping its configuration.
//
// Assertions, scopes, checks and queries on one Kernel must come from
// a single goroutine. Reset, Close, SetCancel and IsCancelled may be
// called from any goroutine, including while a check is running. A
// Reset (or Close) racing with a running check cancels it, waits for
// it to return, and only then replaces the engine. A check that starts
// while a Reset is in progress waits for the Reset and runs on the new
// engine.
package kernel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/engine/sat"
	"github.com/operator-framework/satkernel/pkg/metrics"
	"github.com/operator-framework/satkernel/pkg/term"
)

var (
	ErrInvalidPop   = errors.New("pop exceeds scope level")
	ErrUnknownLogic = errors.New("unknown logic")
	ErrLogicLocked  = errors.New("logic cannot be changed after assertions")
	ErrClosed       = errors.New("kernel is closed")
)

type Kernel struct {
	id      string
	ctx     *term.Context
	factory engine.Factory
	log     logrus.FieldLogger
	metrics metrics.Recorder
	tracer  engine.Tracer
	cancel  engine.CancelFlag

	// session is the live engine. It is replaced only while mu is
	// held, resetting is set and no check is running.
	session atomic.Pointer[engine.Engine]
	closed  atomic.Bool

	mu        sync.Mutex
	cond      *sync.Cond
	cfg       config.Config
	resetting bool
	searching int
	requested bool
	progress  engine.ProgressFunc
}

// New returns a Kernel with a fresh engine over ctx. The context is
// borrowed and may be shared with other Kernels.
func New(ctx *term.Context, options ...Option) (*Kernel, error) {
	if ctx == nil {
		return nil, errors.New("kernel requires a term context")
	}
	k := &Kernel{
		id:  uuid.New().String(),
		ctx: ctx,
		cfg: config.Default(),
	}
	k.cond = sync.NewCond(&k.mu)
	for _, option := range append(options, defaults...) {
		if err := option(k); err != nil {
			return nil, err
		}
	}
	k.log = k.log.WithField("kernel", k.id)

	e, err := k.newEngine()
	if err != nil {
		return nil, errors.Wrap(err, "creating engine")
	}
	k.session.Store(&e)
	k.metrics.KernelOpened()
	k.log.WithField("config", k.cfg.Hash()).Debug("kernel opened")
	return k, nil
}

type Option func(k *Kernel) error

// WithConfig replaces the configuration used for every session.
func WithConfig(c config.Config) Option {
	return func(k *Kernel) error {
		k.cfg = c
		return nil
	}
}

// WithParams applies named options on top of the configuration
// established by earlier options.
func WithParams(p config.Params) Option {
	return func(k *Kernel) error {
		cfg, err := k.cfg.Translate(p)
		if err != nil {
			return err
		}
		k.cfg = cfg
		return nil
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(k *Kernel) error {
		k.log = log
		return nil
	}
}

func WithEngineFactory(f engine.Factory) Option {
	return func(k *Kernel) error {
		k.factory = f
		return nil
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(k *Kernel) error {
		k.metrics = r
		return nil
	}
}

func WithTracer(t engine.Tracer) Option {
	return func(k *Kernel) error {
		k.tracer = t
		return nil
	}
}

var defaults = []Option{
	func(k *Kernel) error {
		if k.factory == nil {
			k.factory = sat.Factory
		}
		return nil
	},
	func(k *Kernel) error {
		if k.log == nil {
			k.log = logrus.New()
		}
		return nil
	},
	func(k *Kernel) error {
		if k.metrics == nil {
			k.metrics = metrics.NewMetricsNil()
		}
		return nil
	},
	func(k *Kernel) error {
		if k.tracer == nil {
			k.tracer = engine.DefaultTracer{}
		}
		return nil
	},
}

// newEngine builds an engine from the stored configuration. mu must
// be held, or k must not yet be shared.
func (k *Kernel) newEngine() (engine.Engine, error) {
	e, err := k.factory.New(engine.Options{
		Context: k.ctx,
		Config:  k.cfg,
		Cancel:  &k.cancel,
		Logger:  k.log,
		Tracer:  k.tracer,
	})
	if err != nil {
		return nil, err
	}
	if k.progress != nil {
		e.SetProgressCallback(k.progress)
	}
	return e, nil
}

func (k *Kernel) current() engine.Engine {
	return *k.session.Load()
}

// ID returns the identity of the Kernel, stable across resets.
func (k *Kernel) ID() string {
	return k.id
}

// Context returns the borrowed term context.
func (k *Kernel) Context() *term.Context {
	return k.ctx
}

func (k *Kernel) Assert(f term.Formula) {
	k.AssertWithProof(f, nil)
}

// AssertWithProof asserts f at the current scope, recording pr as its
// justification.
func (k *Kernel) AssertWithProof(f term.Formula, pr *engine.Proof) {
	if k.closed.Load() {
		k.log.Warn("assertion on closed kernel ignored")
		return
	}
	k.current().Assert(f, pr)
}

func (k *Kernel) Push() {
	if k.closed.Load() {
		return
	}
	k.current().Push()
}

// Pop removes the n innermost scopes. If n is negative or exceeds the
// scope level, Pop returns ErrInvalidPop and changes nothing.
func (k *Kernel) Pop(n int) error {
	if k.closed.Load() {
		return ErrClosed
	}
	e := k.current()
	if n < 0 || n > e.ScopeLevel() {
		return errors.Wrapf(ErrInvalidPop, "cannot pop %d scopes at level %d", n, e.ScopeLevel())
	}
	return e.Pop(n)
}

// Reduce retracts assertions that earlier assertions already entail
// and reports whether the assertion set changed.
func (k *Kernel) Reduce() bool {
	if k.closed.Load() {
		return false
	}
	return k.current().Reduce()
}

// CheckSat clears the cancellation flag and searches for a model of
// the assertions extended by assumptions.
func (k *Kernel) CheckSat(assumptions ...term.Formula) engine.Result {
	return k.search(func(e engine.Engine) engine.Result {
		return e.Check(assumptions...)
	})
}

// SetupAndCheck performs one-time session setup, then checks with no
// assumptions.
func (k *Kernel) SetupAndCheck() engine.Result {
	return k.search(engine.Engine.SetupAndCheck)
}

func (k *Kernel) search(check func(e engine.Engine) engine.Result) engine.Result {
	k.mu.Lock()
	for k.resetting {
		k.cond.Wait()
	}
	if k.closed.Load() {
		k.mu.Unlock()
		return engine.Unknown
	}
	e := k.current()
	k.requested = false
	e.SetCancelFlag(false)
	k.searching++
	k.mu.Unlock()

	defer func() {
		k.mu.Lock()
		k.searching--
		k.cond.Broadcast()
		k.mu.Unlock()
	}()

	start := time.Now()
	result := check(e)
	k.metrics.Check(result.String(), e.LastFailure().String(), time.Since(start))
	return result
}

// Reset discards every assertion and scope by replacing the engine
// with a fresh one built from the current configuration. A running
// check is cancelled and awaited first. The cancellation flag is left
// as last requested through SetCancel.
func (k *Kernel) Reset() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	old, err := k.quiesce()
	if err != nil {
		return err
	}
	defer k.settle()

	e, err := k.newEngine()
	if err != nil {
		return errors.Wrap(err, "creating engine")
	}
	k.session.Store(&e)
	if err := old.Close(); err != nil {
		k.log.WithError(err).Warn("error closing previous session")
	}
	k.metrics.Reset()
	k.log.WithFields(logrus.Fields{
		"from":   sessionID(old),
		"to":     sessionID(e),
		"config": k.cfg.Hash(),
	}).Debug("kernel reset")
	return nil
}

// Close cancels and awaits any running check and releases the
// engine. Subsequent checks return Unknown.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	old, err := k.quiesce()
	if err != nil {
		return err
	}
	defer k.settle()

	k.closed.Store(true)
	k.metrics.KernelClosed()
	k.log.Debug("kernel closed")
	return old.Close()
}

// quiesce interrupts the live engine and waits until no check is
// running on it. mu must be held; it is released while waiting.
func (k *Kernel) quiesce() (engine.Engine, error) {
	for k.resetting {
		k.cond.Wait()
	}
	if k.closed.Load() {
		return nil, ErrClosed
	}
	k.resetting = true
	old := k.current()
	old.SetCancelFlag(true)
	for k.searching > 0 {
		k.cond.Wait()
	}
	return old, nil
}

// settle restores the caller's cancellation request on the live
// engine and releases waiters. mu must be held.
func (k *Kernel) settle() {
	k.current().SetCancelFlag(k.requested)
	k.resetting = false
	k.cond.Broadcast()
}

// SetCancel sets or clears the cancellation flag. Setting it stops a
// running check, which then returns Unknown with reason Canceled.
// During a Reset the request is recorded and applied to the engine
// that ends up live.
func (k *Kernel) SetCancel(flag bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.requested = flag
	if flag {
		k.metrics.Cancel()
	}
	if k.resetting {
		return
	}
	k.current().SetCancelFlag(flag)
}

func (k *Kernel) IsCancelled() bool {
	return k.current().CancelFlag()
}

// UpdateParams translates p onto the stored configuration. The new
// configuration applies from the next Reset; the live engine keeps
// its own. On error nothing changes.
func (k *Kernel) UpdateParams(p config.Params) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	cfg, err := k.cfg.Translate(p)
	if err != nil {
		return err
	}
	log := k.log.WithField("config", cfg.Hash())
	if cfg.Hash() == k.cfg.Hash() {
		log.Debug("parameters unchanged")
		return nil
	}
	k.cfg = cfg
	log.Debug("parameters updated")
	return nil
}

// Config returns the configuration the next session will use.
func (k *Kernel) Config() config.Config {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cfg
}

// SessionConfig returns the configuration of the live session.
func (k *Kernel) SessionConfig() config.Config {
	return k.current().Config()
}

func (k *Kernel) SetLogic(name string) error {
	if k.closed.Load() {
		return ErrClosed
	}
	if !config.KnownLogic(name) {
		return errors.Wrapf(ErrUnknownLogic, "%q", name)
	}
	if !k.current().SetLogic(name) {
		return errors.Wrapf(ErrLogicLocked, "%q", name)
	}
	return nil
}

// SetProgressCallback installs fn on the live engine and on every
// engine created by later resets.
func (k *Kernel) SetProgressCallback(fn engine.ProgressFunc) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.progress = fn
	k.current().SetProgressCallback(fn)
}

// Descriptors lists the recognized configuration options.
func Descriptors() []config.Descriptor {
	return config.Descriptors()
}

func sessionID(e engine.Engine) string {
	if ider, ok := e.(interface{ ID() string }); ok {
		return ider.ID()
	}
	return ""
}
