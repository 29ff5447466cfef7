package engine

import (
	"fmt"
	"io"

	"github.com/operator-framework/satkernel/pkg/term"
)

type SearchPosition interface {
	Context() *term.Context
	Assumptions() []term.Formula
	Conflicts() []term.Formula
}

type Tracer interface {
	Trace(p SearchPosition)
}

type DefaultTracer struct{}

func (DefaultTracer) Trace(_ SearchPosition) {
}

type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(p SearchPosition) {
	ctx := p.Context()
	fmt.Fprintf(t.Writer, "---\nAssumptions:\n")
	for _, f := range p.Assumptions() {
		fmt.Fprintf(t.Writer, "- %s\n", ctx.String(f))
	}
	fmt.Fprintf(t.Writer, "Conflicts:\n")
	for _, f := range p.Conflicts() {
		fmt.Fprintf(t.Writer, "- %s\n", ctx.String(f))
	}
}
