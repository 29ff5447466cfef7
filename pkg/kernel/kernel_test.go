package kernel

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/engine/sat"
	"github.com/operator-framework/satkernel/pkg/term"
)

// TestBlockingEngine blocks in Check until cancellation is requested,
// standing in for an arbitrarily slow search.
type TestBlockingEngine struct {
	started  chan<- struct{}
	returned *atomic.Int32
	engine.Engine
}

func (e *TestBlockingEngine) Check(assumptions ...term.Formula) engine.Result {
	e.started <- struct{}{}
	for !e.CancelFlag() {
		time.Sleep(time.Millisecond)
	}
	defer e.returned.Add(1)
	return e.Engine.Check(assumptions...)
}

func blockingFactory(started chan<- struct{}, returned *atomic.Int32) engine.Factory {
	return engine.FactoryFunc(func(o engine.Options) (engine.Engine, error) {
		e, err := sat.New(o)
		if err != nil {
			return nil, err
		}
		return &TestBlockingEngine{started: started, returned: returned, Engine: e}, nil
	})
}

// TestClosingEngine waits for a signal before completing Close.
type TestClosingEngine struct {
	release <-chan struct{}
	engine.Engine
}

func (e *TestClosingEngine) Close() error {
	<-e.release
	return e.Engine.Close()
}

type TestRecorder struct {
	mu                     sync.Mutex
	opened, closed, resets int
	cancels                int
	checks                 []string
}

func (r *TestRecorder) KernelOpened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened++
}

func (r *TestRecorder) KernelClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *TestRecorder) Check(result, reason string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, result+"/"+reason)
}

func (r *TestRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *TestRecorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
}

func newKernel(t *testing.T, ctx *term.Context, options ...Option) *Kernel {
	t.Helper()
	logger, _ := test.NewNullLogger()
	k, err := New(ctx, append([]Option{WithLogger(logger)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	return k
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(term.NewContext(), WithParams(config.Params{"bogus": 1}))
	var cerr config.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "bogus", cerr[0].Name)

	k := newKernel(t, term.NewContext(), WithParams(config.Params{"proof": true}))
	assert.NotEmpty(t, k.ID())
	assert.True(t, k.Config().Proof)
	assert.True(t, k.SessionConfig().Proof)
}

func TestBacktrackingLaw(t *testing.T) {
	ctx := term.NewContext()
	atoms := []term.Formula{ctx.Var("a"), ctx.Var("b"), ctx.Var("c"), ctx.Var("d")}
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 20; run++ {
		k := newKernel(t, ctx)
		var saved [][]term.Formula
		for step := 0; step < 40; step++ {
			switch op := rng.Intn(4); {
			case op == 0:
				saved = append(saved, k.Formulas())
				k.Push()
			case op == 1 && len(saved) > 0:
				n := 1 + rng.Intn(len(saved))
				require.NoError(t, k.Pop(n))
				expected := saved[len(saved)-n]
				saved = saved[:len(saved)-n]
				if diff := cmp.Diff(expected, k.Formulas(), cmp.Comparer(func(a, b term.Formula) bool { return a == b })); diff != "" {
					t.Fatalf("run %d step %d: assertions differ after pop(%d) (-want +got):\n%s", run, step, n, diff)
				}
			default:
				f := atoms[rng.Intn(len(atoms))]
				if rng.Intn(2) == 0 {
					f = ctx.Not(f)
				}
				k.Assert(f)
			}
			require.Equal(t, len(saved), k.ScopeLevel())
			if step%10 == 0 {
				k.CheckSat()
			}
		}
	}
}

func TestPopIsCheckedAgainstScopeLevel(t *testing.T) {
	ctx := term.NewContext()
	a := ctx.Var("a")

	for _, tt := range []struct {
		Name   string
		Pushes int
		Pop    int
		Valid  bool
	}{
		{Name: "zero at level zero", Pop: 0, Valid: true},
		{Name: "one at level zero", Pop: 1},
		{Name: "negative", Pushes: 1, Pop: -1},
		{Name: "exact", Pushes: 2, Pop: 2, Valid: true},
		{Name: "one too many", Pushes: 2, Pop: 3},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			k := newKernel(t, ctx)
			for i := 0; i < tt.Pushes; i++ {
				k.Push()
				k.Assert(a)
			}
			before := k.Formulas()

			err := k.Pop(tt.Pop)
			if tt.Valid {
				assert.NoError(t, err)
				assert.Equal(t, tt.Pushes-tt.Pop, k.ScopeLevel())
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidPop), "unexpected error %v", err)
			assert.Equal(t, tt.Pushes, k.ScopeLevel())
			assert.Equal(t, before, k.Formulas())
		})
	}
}

func TestResetPostconditions(t *testing.T) {
	ctx := term.NewContext()
	k := newKernel(t, ctx)
	for i := 0; i < 5; i++ {
		k.Assert(ctx.Var("a"))
		k.Push()
	}
	require.NoError(t, k.UpdateParams(config.Params{"timeout": "3s"}))
	assert.Zero(t, k.SessionConfig().Timeout, "live session keeps its configuration")

	require.NoError(t, k.Reset())
	assert.Equal(t, 0, k.ScopeLevel())
	assert.Equal(t, 0, k.Size())
	assert.Empty(t, k.Formulas())
	assert.Equal(t, 3*time.Second, k.SessionConfig().Timeout)
	assert.Equal(t, k.Config(), k.SessionConfig())
	assert.Equal(t, engine.Sat, k.CheckSat())
}

func TestUpdateParamsRejectsAndKeepsConfig(t *testing.T) {
	k := newKernel(t, term.NewContext())
	before := k.Config()
	err := k.UpdateParams(config.Params{"timeout": "10s", "restarts": "luby"})
	require.Error(t, err)
	var cerr config.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []config.OptionError{{Name: "restarts", Reason: "unrecognized option"}}, []config.OptionError(cerr))
	assert.Equal(t, before, k.Config())

	require.NoError(t, k.Reset())
	assert.Equal(t, before, k.SessionConfig())
}

func TestCheckClearsCancellation(t *testing.T) {
	ctx := term.NewContext()
	k := newKernel(t, ctx)
	k.Assert(ctx.Var("a"))

	k.SetCancel(true)
	assert.True(t, k.IsCancelled())
	assert.Equal(t, engine.Sat, k.CheckSat())
	assert.False(t, k.IsCancelled())
	assert.Equal(t, engine.Sat, k.SetupAndCheck())
}

func TestCancelDuringCheck(t *testing.T) {
	ctx := term.NewContext()
	started := make(chan struct{}, 1)
	recorder := &TestRecorder{}
	k := newKernel(t, ctx, WithEngineFactory(blockingFactory(started, &atomic.Int32{})), WithMetrics(recorder))
	k.Assert(ctx.Var("a"))

	done := make(chan engine.Result)
	go func() { done <- k.CheckSat() }()
	<-started
	k.SetCancel(true)

	select {
	case r := <-done:
		assert.Equal(t, engine.Unknown, r)
	case <-time.After(5 * time.Second):
		t.Fatal("check did not observe cancellation")
	}
	assert.Equal(t, engine.Canceled, k.LastFailure())
	assert.Equal(t, []string{"unknown/canceled"}, recorder.checks)
	assert.Equal(t, 1, recorder.cancels)
}

func TestResetDuringCheck(t *testing.T) {
	ctx := term.NewContext()
	started := make(chan struct{}, 1)
	var returned atomic.Int32
	k := newKernel(t, ctx, WithEngineFactory(blockingFactory(started, &returned)))
	for i := 0; i < 3; i++ {
		k.Push()
		k.Assert(ctx.Var("a"))
	}

	done := make(chan engine.Result, 1)
	go func() { done <- k.CheckSat() }()
	<-started

	require.NoError(t, k.Reset())
	assert.Equal(t, int32(1), returned.Load(), "reset returned before the running check")
	assert.Equal(t, engine.Unknown, <-done)
	assert.Equal(t, 0, k.ScopeLevel())
	assert.Equal(t, 0, k.Size())
	assert.False(t, k.IsCancelled(), "reset does not leak its own cancellation")
}

func TestCancelDuringResetAppliesToLiveEngine(t *testing.T) {
	ctx := term.NewContext()
	release := make(chan struct{})
	var engines []engine.Engine
	factory := engine.FactoryFunc(func(o engine.Options) (engine.Engine, error) {
		e, err := sat.New(o)
		if err != nil {
			return nil, err
		}
		wrapped := &TestClosingEngine{release: release, Engine: e}
		engines = append(engines, wrapped)
		return wrapped, nil
	})
	k := newKernel(t, ctx, WithEngineFactory(factory))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, k.Reset())
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		k.SetCancel(true)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Len(t, engines, 2)
	assert.True(t, k.IsCancelled())
	assert.True(t, engines[1].CancelFlag())
	assert.Equal(t, engine.Unknown, engines[1].Check())
}

func TestResetKeepsRequestedCancellation(t *testing.T) {
	k := newKernel(t, term.NewContext())
	k.SetCancel(true)
	require.NoError(t, k.Reset())
	assert.True(t, k.IsCancelled())
	k.SetCancel(false)
	require.NoError(t, k.Reset())
	assert.False(t, k.IsCancelled())
}

func TestSetLogic(t *testing.T) {
	ctx := term.NewContext()
	k := newKernel(t, ctx)
	assert.True(t, errors.Is(k.SetLogic("QF_NIA"), ErrUnknownLogic))
	assert.NoError(t, k.SetLogic(config.LogicBool))
	k.Assert(ctx.Var("a"))
	assert.True(t, errors.Is(k.SetLogic(config.LogicAll), ErrLogicLocked))
	require.NoError(t, k.Reset())
	assert.NoError(t, k.SetLogic(config.LogicAll))
}

func TestNeutralQueriesOnFreshKernel(t *testing.T) {
	k := newKernel(t, term.NewContext())
	_, err := k.Model()
	assert.True(t, errors.Is(err, engine.ErrNoResult))
	_, err = k.Proof()
	assert.True(t, errors.Is(err, engine.ErrProofDisabled))
	assert.Equal(t, 0, k.UnsatCoreSize())
	assert.Empty(t, k.UnsatCore())
	assert.Equal(t, term.Null, k.UnsatCoreAt(3))
	assert.Equal(t, engine.None, k.LastFailure())
	assert.Empty(t, k.LastFailureDescription())
	assert.Empty(t, k.Assignments())
	assert.Empty(t, k.RelevantLabels(term.Null))
	assert.Empty(t, k.RelevantLiterals(false))
	assert.Empty(t, k.GuessedLiterals())
	assert.Equal(t, term.Null, k.QuantifierInstance())
	assert.False(t, k.Inconsistent())
	assert.Equal(t, 0, k.Statistics().Checks)
}

func TestDisplay(t *testing.T) {
	ctx := term.NewContext()
	k := newKernel(t, ctx)

	var buf bytes.Buffer
	require.NoError(t, k.Display(&buf))
	assert.Equal(t, "(kernel)", buf.String())

	a, b := ctx.Var("a"), ctx.Var("b")
	k.Assert(a)
	k.Assert(ctx.Or(ctx.Not(a), b))
	buf.Reset()
	require.NoError(t, k.Display(&buf))
	assert.Equal(t, "(kernel\n  a\n  (or (not a) b))", buf.String())

	k.CheckSat()
	buf.Reset()
	require.NoError(t, k.DisplayStatistics(&buf))
	assert.Contains(t, buf.String(), ":checks 1")
	k.ResetStatistics()
	assert.Equal(t, 0, k.Statistics().Checks)
}

func TestProgressCallbackSurvivesReset(t *testing.T) {
	ctx := term.NewContext()
	k := newKernel(t, ctx, WithParams(config.Params{"poll_interval": "1ms", "timeout": "50ms"}))
	var mu sync.Mutex
	calls := 0
	k.SetProgressCallback(func(engine.Statistics) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})
	require.NoError(t, k.Reset())

	pigeonhole(ctx, k, 12)
	assert.Equal(t, engine.Unknown, k.CheckSat())
	assert.Equal(t, engine.Timeout, k.LastFailure())
	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, calls, 0)
}

func TestClose(t *testing.T) {
	ctx := term.NewContext()
	recorder := &TestRecorder{}
	k, err := New(ctx, WithMetrics(recorder))
	require.NoError(t, err)
	k.Assert(ctx.Var("a"))

	require.NoError(t, k.Close())
	assert.True(t, errors.Is(k.Close(), ErrClosed))
	assert.True(t, errors.Is(k.Reset(), ErrClosed))
	assert.True(t, errors.Is(k.Pop(0), ErrClosed))
	assert.Equal(t, engine.Unknown, k.CheckSat())
	assert.True(t, errors.Is(k.SetLogic(config.LogicAll), ErrClosed))
	assert.False(t, k.Reduce())
	k.Assert(ctx.Var("b"))
	k.Push()
	assert.Equal(t, 1, recorder.opened)
	assert.Equal(t, 1, recorder.closed)
}

func TestResetLogsSessions(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	k, err := New(term.NewContext(), WithLogger(logger))
	require.NoError(t, err)
	defer k.Close()

	require.NoError(t, k.Reset())
	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "kernel reset" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, k.ID(), entry.Data["kernel"])
	assert.NotEmpty(t, entry.Data["from"])
	assert.NotEqual(t, entry.Data["from"], entry.Data["to"])
}

func TestKernelsShareContext(t *testing.T) {
	ctx := term.NewContext()
	a := ctx.Var("a")
	k1 := newKernel(t, ctx)
	k2 := newKernel(t, ctx)

	k1.Assert(a)
	k2.Assert(ctx.Not(a))
	assert.Equal(t, engine.Sat, k1.CheckSat())
	assert.Equal(t, engine.Sat, k2.CheckSat())

	m1, err := k1.Model()
	require.NoError(t, err)
	m2, err := k2.Model()
	require.NoError(t, err)
	assert.True(t, m1.Value(a))
	assert.False(t, m2.Value(a))
	assert.Same(t, ctx, k1.Context())
}

func TestResetDoesNotAccumulateVariables(t *testing.T) {
	ctx := term.NewContext()
	a := ctx.Var("a")
	k := newKernel(t, ctx, WithParams(config.Params{"max_vars": 20}))
	size := ctx.Len()

	for i := 0; i < 50; i++ {
		k.Assert(a)
		k.Assert(a)
		k.Assert(a)
		require.Equal(t, engine.Sat, k.CheckSat(), "session %d: %s", i, k.LastFailureDescription())
		require.NoError(t, k.Reset())
	}
	assert.Equal(t, size, ctx.Len(), "sessions do not extend the shared context")
}

func TestKernelVariableBudgetsAreIndependent(t *testing.T) {
	ctx := term.NewContext()
	big := newKernel(t, ctx)
	for i := 0; i < 200; i++ {
		big.Assert(ctx.Var(fmt.Sprintf("v%d", i)))
	}
	require.Equal(t, engine.Sat, big.CheckSat())

	small := newKernel(t, ctx, WithParams(config.Params{"max_vars": 50}))
	small.Assert(ctx.Var("a"))
	assert.Equal(t, engine.Sat, small.CheckSat(), small.LastFailureDescription())
	assert.LessOrEqual(t, small.Statistics().Vars, 3)

	m, err := small.Model()
	require.NoError(t, err)
	assert.True(t, m.Value(ctx.Var("a")))
}

func TestReduce(t *testing.T) {
	ctx := term.NewContext()
	a, b := ctx.Var("a"), ctx.Var("b")
	k := newKernel(t, ctx)
	assert.False(t, k.Reduce())

	k.Assert(a)
	k.Assert(a)
	k.Push()
	k.Assert(ctx.Or(a, b))
	k.Assert(b)
	require.Equal(t, engine.Sat, k.CheckSat())

	assert.True(t, k.Reduce())
	assert.Equal(t, []term.Formula{a, b}, k.Formulas())
	assert.Equal(t, 1, k.ScopeLevel())
	_, err := k.Model()
	assert.True(t, errors.Is(err, engine.ErrNoResult))
	assert.False(t, k.Reduce())

	require.NoError(t, k.Pop(1))
	assert.Equal(t, []term.Formula{a}, k.Formulas())
	assert.Equal(t, engine.Unsat, k.CheckSat(ctx.Not(a)))
	assert.Equal(t, engine.Sat, k.CheckSat(ctx.Not(b)))
}

// pigeonhole asserts that n+1 pigeons fit in n holes.
func pigeonhole(ctx *term.Context, k *Kernel, n int) {
	p := func(i, j int) term.Formula {
		return ctx.Var("p" + string(rune('A'+i)) + string(rune('a'+j)))
	}
	for i := 0; i <= n; i++ {
		var holes []term.Formula
		for j := 0; j < n; j++ {
			holes = append(holes, p(i, j))
		}
		k.Assert(ctx.Or(holes...))
	}
	for j := 0; j < n; j++ {
		for i := 0; i <= n; i++ {
			for l := i + 1; l <= n; l++ {
				k.Assert(ctx.Or(ctx.Not(p(i, j)), ctx.Not(p(l, j))))
			}
		}
	}
}
