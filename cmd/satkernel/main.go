package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/operator-framework/satkernel/pkg/metrics"
	"github.com/operator-framework/satkernel/pkg/version"
)

func init() {
	metrics.RegisterKernel()
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	debug   bool
	version bool
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	o := rootOptions{}
	logger := logrus.New()
	logger.SetOutput(errOut)

	cmd := &cobra.Command{
		Use:          "satkernel",
		Short:        "Incremental satisfiability checking",
		Long:         `A driver for an incremental SAT kernel with scopes, cancellation and reset.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if o.debug {
				logger.SetLevel(logrus.DebugLevel)
			}
			logger.Debugf("log level %s", logger.Level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.version {
				fmt.Fprint(out, version.String())
				return nil
			}
			return cmd.Help()
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "use debug log level")
	cmd.Flags().BoolVar(&o.version, "version", false, "displays the satkernel version")

	cmd.AddCommand(
		newCheckCmd(logger),
		newShellCmd(logger),
		newParamsCmd(),
	)
	return cmd
}
