package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/kernel"
	"github.com/operator-framework/satkernel/pkg/lib/filemonitor"
	"github.com/operator-framework/satkernel/pkg/term"
)

type shellOptions struct {
	kernelOptions

	watch bool
}

func newShellCmd(logger *logrus.Logger) *cobra.Command {
	o := shellOptions{}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Drive a kernel interactively",
		Long: `Shell reads one command per line from stdin. Formulas are written as
s-expressions, for example "(or a (not b))". Type "help" for the list of
commands.

        $ satkernel shell --config params.yaml --watch
        `,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), logger, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	o.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&o.watch, "watch", false, "reload --config when it changes, effective on the next reset")

	return cmd
}

func (o *shellOptions) run(ctx context.Context, logger logrus.FieldLogger, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.watch && o.configPath == "" {
		return errors.New("--watch requires --config")
	}

	k, err := o.open(term.NewContext(), logger)
	if err != nil {
		return err
	}
	defer k.Close()

	if o.watch {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if _, err := filemonitor.WatchParams(ctx, logger, o.configPath, k.UpdateParams); err != nil {
			return errors.Wrapf(err, "watching %s", o.configPath)
		}
	}

	return newShell(k, out).run(in)
}

type command struct {
	usage string
	run   func(args string) error
}

type shell struct {
	k        *kernel.Kernel
	ctx      *term.Context
	out      io.Writer
	commands map[string]command
}

func newShell(k *kernel.Kernel, out io.Writer) *shell {
	s := &shell{k: k, ctx: k.Context(), out: out}
	s.commands = map[string]command{
		"assert":      {"assert F...", s.assert},
		"push":        {"push", s.push},
		"pop":         {"pop [N]", s.pop},
		"check":       {"check [ASSUMPTION...]", s.check},
		"setup-check": {"setup-check", s.setupCheck},
		"reset":       {"reset", s.reset},
		"reduce":      {"reduce", s.reduce},
		"cancel":      {"cancel [true|false]", s.cancel},
		"model":       {"model", s.model},
		"core":        {"core", s.core},
		"proof":       {"proof", s.proof},
		"reason":      {"reason", s.reason},
		"assertions":  {"assertions", s.assertions},
		"labels":      {"labels [F]", s.labels},
		"relevant":    {"relevant [labels]", s.relevant},
		"guessed":     {"guessed", s.guessed},
		"assignments": {"assignments", s.assignments},
		"level":       {"level", s.level},
		"logic":       {"logic NAME", s.logic},
		"set":         {"set KEY=VALUE...", s.set},
		"stats":       {"stats", s.stats},
		"display":     {"display", s.display},
		"help":        {"help", s.help},
	}
	return s
}

// run executes commands until "exit" or end of input. A failing
// command prints an error and the shell continues.
func (s *shell) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		name, args, _ := strings.Cut(line, " ")
		if name == "exit" || name == "quit" {
			return nil
		}
		c, ok := s.commands[name]
		if !ok {
			s.printf("error: unknown command %q\n", name)
			continue
		}
		if err := c.run(strings.TrimSpace(args)); err != nil {
			s.printf("error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (s *shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) printFormulas(head string, fs []term.Formula) error {
	return printFormulas(s.out, s.ctx, head, fs)
}

func (s *shell) assert(args string) error {
	fs, err := s.ctx.ParseAll(args)
	if err != nil {
		return err
	}
	if len(fs) == 0 {
		return errors.New("nothing to assert")
	}
	for _, f := range fs {
		s.k.Assert(f)
	}
	return nil
}

func (s *shell) push(string) error {
	s.k.Push()
	return nil
}

func (s *shell) pop(args string) error {
	n := 1
	if args != "" {
		var err error
		if n, err = strconv.Atoi(args); err != nil {
			return errors.Wrap(err, "pop")
		}
	}
	return s.k.Pop(n)
}

func (s *shell) check(args string) error {
	assumptions, err := s.ctx.ParseAll(args)
	if err != nil {
		return err
	}
	return s.result(s.k.CheckSat(assumptions...))
}

func (s *shell) setupCheck(string) error {
	return s.result(s.k.SetupAndCheck())
}

func (s *shell) result(r engine.Result) error {
	if r == engine.Unknown {
		s.printf("unknown (%s)\n", s.k.LastFailure())
		return nil
	}
	s.printf("%s\n", r)
	return nil
}

func (s *shell) reset(string) error {
	return s.k.Reset()
}

func (s *shell) reduce(string) error {
	s.printf("%t\n", s.k.Reduce())
	return nil
}

func (s *shell) cancel(args string) error {
	flag := true
	if args != "" {
		var err error
		if flag, err = strconv.ParseBool(args); err != nil {
			return errors.Wrap(err, "cancel")
		}
	}
	s.k.SetCancel(flag)
	return nil
}

func (s *shell) model(string) error {
	m, err := s.k.Model()
	if err != nil {
		return err
	}
	s.printf("%s\n", m)
	return nil
}

func (s *shell) core(string) error {
	return s.printFormulas("core", s.k.UnsatCore())
}

func (s *shell) proof(string) error {
	pr, err := s.k.Proof()
	if err != nil {
		return err
	}
	s.printf("%s\n", pr)
	return nil
}

func (s *shell) reason(string) error {
	s.printf("%s: %s\n", s.k.LastFailure(), s.k.LastFailureDescription())
	return nil
}

func (s *shell) assertions(string) error {
	return s.printFormulas("assertions", s.k.Formulas())
}

func (s *shell) labels(args string) error {
	constraint := term.Null
	if args != "" {
		var err error
		if constraint, err = s.ctx.Parse(args); err != nil {
			return err
		}
	}
	s.printf("(labels%s)\n", prefixEach(s.k.RelevantLabels(constraint)))
	return nil
}

func (s *shell) relevant(args string) error {
	return s.printFormulas("relevant", s.k.RelevantLiterals(args == "labels"))
}

func (s *shell) guessed(string) error {
	return s.printFormulas("guessed", s.k.GuessedLiterals())
}

func (s *shell) assignments(string) error {
	return s.printFormulas("assignments", s.k.Assignments())
}

func (s *shell) level(string) error {
	s.printf("%d\n", s.k.ScopeLevel())
	return nil
}

func (s *shell) logic(args string) error {
	return s.k.SetLogic(args)
}

func (s *shell) set(args string) error {
	p := config.Params{}
	for _, kv := range strings.Fields(args) {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return errors.Errorf("expected key=value, got %q", kv)
		}
		p[name] = value
	}
	return s.k.UpdateParams(p)
}

func (s *shell) stats(string) error {
	return s.k.DisplayStatistics(s.out)
}

func (s *shell) display(string) error {
	if err := s.k.Display(s.out); err != nil {
		return err
	}
	s.printf("\n")
	return nil
}

func (s *shell) help(string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.printf("  %s\n", s.commands[name].usage)
	}
	s.printf("  exit\n")
	return nil
}

func prefixEach(names []string) string {
	var b strings.Builder
	for _, name := range names {
		b.WriteString(" ")
		b.WriteString(name)
	}
	return b.String()
}
