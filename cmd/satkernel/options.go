package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/kernel"
	"github.com/operator-framework/satkernel/pkg/metrics"
	"github.com/operator-framework/satkernel/pkg/term"
)

// kernelOptions are the flags shared by every command that opens a
// kernel.
type kernelOptions struct {
	configPath string
	set        []string
}

func (o *kernelOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to a YAML file of kernel parameters")
	fs.StringArrayVar(&o.set, "set", nil, "set a kernel parameter as key=value, may be repeated")
}

// params merges the config file with --set values, which take
// precedence.
func (o *kernelOptions) params() (config.Params, error) {
	p := config.Params{}
	if o.configPath != "" {
		fromFile, err := config.ReadFile(o.configPath)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", o.configPath)
		}
		for name, value := range fromFile {
			p[name] = value
		}
	}
	for _, kv := range o.set {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("invalid --set %q, expected key=value", kv)
		}
		p[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return p, nil
}

func (o *kernelOptions) open(ctx *term.Context, logger logrus.FieldLogger, extra ...kernel.Option) (*kernel.Kernel, error) {
	p, err := o.params()
	if err != nil {
		return nil, err
	}
	options := append([]kernel.Option{
		kernel.WithLogger(logger),
		kernel.WithMetrics(metrics.NewMetricsKernel()),
		kernel.WithParams(p),
	}, extra...)
	return kernel.New(ctx, options...)
}
