package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/kernel"
	"github.com/operator-framework/satkernel/pkg/lib/server"
	"github.com/operator-framework/satkernel/pkg/lib/signals"
	"github.com/operator-framework/satkernel/pkg/term"
)

type checkOptions struct {
	kernelOptions

	timeout     time.Duration
	model       bool
	core        bool
	proof       bool
	trace       bool
	metricsAddr string
	profiling   bool
}

func newCheckCmd(logger *logrus.Logger) *cobra.Command {
	o := checkOptions{}

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Check a DIMACS CNF or incremental CNF file",
		Long: `Check reads a DIMACS file and reports sat, unsat or unknown.

Files ending in .icnf are read as incremental CNF ("p inccnf"), and every
assumption line ("a ... 0") triggers a check under those assumptions.
Other files are read as plain CNF and checked once.

        $ satkernel check --timeout 10s --model problem.cnf
        `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), logger, cmd.OutOrStdout(), args[0])
		},
	}

	o.addFlags(cmd.Flags())
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "cancel each check after this long, 0 disables")
	cmd.Flags().BoolVar(&o.model, "model", false, "print the model of satisfiable checks")
	cmd.Flags().BoolVar(&o.core, "core", false, "print the unsat core of unsatisfiable checks")
	cmd.Flags().BoolVar(&o.proof, "proof", false, "print a proof of unsatisfiable checks")
	cmd.Flags().BoolVar(&o.trace, "trace", false, "trace conflicts to stderr")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while checking")
	cmd.Flags().BoolVar(&o.profiling, "profiling", false, "serve pprof handlers to loopback clients on --metrics-addr")

	return cmd
}

func (o *checkOptions) run(ctx context.Context, logger logrus.FieldLogger, out io.Writer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.proof {
		o.set = append(o.set, "proof=true")
	}
	var extra []kernel.Option
	if o.trace {
		extra = append(extra, kernel.WithTracer(engine.LoggingTracer{Writer: os.Stderr}))
	}

	tctx := term.NewContext()
	k, err := o.open(tctx, logger, extra...)
	if err != nil {
		return err
	}
	defer k.Close()

	ctx, stop := signals.Context(ctx, k)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// the server stops once every check has run
	sctx, stopServing := context.WithCancel(gctx)
	defer stopServing()
	if o.metricsAddr != "" {
		srv := server.New(
			server.WithAddress(o.metricsAddr),
			server.WithLogger(logger),
			server.WithProfiling(o.profiling),
		)
		g.Go(func() error {
			return srv.Run(sctx)
		})
	}

	g.Go(func() error {
		defer stopServing()
		// a failed metrics server interrupts the running check
		stop := context.AfterFunc(gctx, func() { k.SetCancel(true) })
		defer stop()
		return o.solve(gctx, k, out, path)
	})
	return g.Wait()
}

func (o *checkOptions) solve(ctx context.Context, k *kernel.Kernel, out io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var reportErr error
	check := func(assumptions []term.Formula) {
		if reportErr != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			reportErr = err
			return
		}
		reportErr = o.check(k, out, assumptions)
	}

	if filepath.Ext(path) == ".icnf" {
		err = readICNF(f, k.Context(), k, check)
	} else {
		err = readCNF(f, k.Context(), k)
		if err == nil {
			check(nil)
		}
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	return reportErr
}

func (o *checkOptions) check(k *kernel.Kernel, out io.Writer, assumptions []term.Formula) error {
	if o.timeout > 0 {
		timer := time.AfterFunc(o.timeout, func() { k.SetCancel(true) })
		defer timer.Stop()
	}
	result := k.CheckSat(assumptions...)
	return report(k, out, result, o.model, o.core, o.proof)
}

// report prints the result of the last check and the artifacts asked
// for.
func report(k *kernel.Kernel, out io.Writer, result engine.Result, model, core, proof bool) error {
	switch result {
	case engine.Unknown:
		if _, err := fmt.Fprintf(out, "unknown (%s: %s)\n", k.LastFailure(), k.LastFailureDescription()); err != nil {
			return err
		}
		return nil
	default:
		if _, err := fmt.Fprintln(out, result); err != nil {
			return err
		}
	}

	if result == engine.Sat && model {
		m, err := k.Model()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, m); err != nil {
			return err
		}
	}
	if result == engine.Unsat && core {
		if err := printFormulas(out, k.Context(), "core", k.UnsatCore()); err != nil {
			return err
		}
	}
	if result == engine.Unsat && proof {
		pr, err := k.Proof()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, pr); err != nil {
			return err
		}
	}
	return nil
}

// printFormulas writes fs as "(head\n  f1\n  f2)".
func printFormulas(out io.Writer, ctx *term.Context, head string, fs []term.Formula) error {
	if _, err := fmt.Fprintf(out, "(%s", head); err != nil {
		return err
	}
	for _, f := range fs {
		if _, err := fmt.Fprintf(out, "\n  %s", ctx.String(f)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(out, ")")
	return err
}
