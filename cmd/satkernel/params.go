package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/kernel"
)

func newParamsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "params",
		Short: "List the recognized kernel parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDescriptors(cmd.OutOrStdout(), output, kernel.Descriptors())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format, one of: yaml, defaults")

	return cmd
}

func printDescriptors(out io.Writer, format string, ds []config.Descriptor) error {
	switch format {
	case "":
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tDEFAULT\tDESCRIPTION")
		for _, d := range ds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Type, d.Default, d.Help)
		}
		return w.Flush()
	case "yaml":
		data, err := yaml.Marshal(ds)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "defaults":
		// a parameters file that --config accepts
		data, err := config.Marshal(config.Default().Params())
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	return errors.Errorf("unknown output format %q", format)
}
