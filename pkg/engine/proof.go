package engine

import (
	"fmt"
	"strings"

	"github.com/go-air/gini"
	"github.com/pkg/errors"

	"github.com/operator-framework/satkernel/pkg/term"
)

const (
	// RuleAsserted justifies a formula by fiat.
	RuleAsserted = "asserted"
	// RuleCore concludes false from an unsatisfiable set of premises.
	RuleCore = "unsat-core"
)

// Premise is one input to a proof step.
type Premise struct {
	Formula term.Formula
	// Assumption is true for check assumptions and false for
	// asserted formulas.
	Assumption bool
	// Justification is the proof supplied with an asserted formula,
	// if any.
	Justification *Proof
}

// Proof is a certificate that Conclusion follows from Premises.
type Proof struct {
	ctx        *term.Context
	Rule       string
	Conclusion term.Formula
	Premises   []Premise
}

// NewProof returns a proof step.
func NewProof(ctx *term.Context, rule string, conclusion term.Formula, premises ...Premise) *Proof {
	return &Proof{ctx: ctx, Rule: rule, Conclusion: conclusion, Premises: premises}
}

// Axiom returns a proof that accepts f without premises.
func Axiom(ctx *term.Context, f term.Formula) *Proof {
	return NewProof(ctx, RuleAsserted, f)
}

// Verify checks that the conjunction of the premises entails the
// conclusion, and that every premise justification verifies.
// Axioms verify trivially.
func (p *Proof) Verify() error {
	if p.Rule == RuleAsserted {
		return nil
	}
	for i, pr := range p.Premises {
		if pr.Justification == nil {
			continue
		}
		if err := pr.Justification.Verify(); err != nil {
			return errors.Wrapf(err, "premise %d", i)
		}
		if pr.Justification.Conclusion != pr.Formula {
			return errors.Errorf("premise %d: justification concludes %s, not %s",
				i, p.ctx.String(pr.Justification.Conclusion), p.ctx.String(pr.Formula))
		}
	}

	roots := []term.Formula{p.ctx.Not(p.Conclusion)}
	for _, pr := range p.Premises {
		roots = append(roots, pr.Formula)
	}
	g := gini.New()
	p.ctx.Encode(g, nil, roots...)
	for _, f := range roots {
		g.Assume(f.Lit())
	}
	if g.Solve() != int(Unsat) {
		return errors.Errorf("premises do not entail %s", p.ctx.String(p.Conclusion))
	}
	return nil
}

func (p *Proof) String() string {
	var b strings.Builder
	p.write(&b, 0)
	return b.String()
}

func (p *Proof) write(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s(%s", indent, p.Rule)
	for _, pr := range p.Premises {
		b.WriteString("\n")
		if pr.Justification != nil && pr.Justification.Rule != RuleAsserted {
			pr.Justification.write(b, depth+1)
			continue
		}
		kind := "asserted"
		if pr.Assumption {
			kind = "assumed"
		}
		fmt.Fprintf(b, "%s  (%s %s)", indent, kind, p.ctx.String(pr.Formula))
	}
	fmt.Fprintf(b, "\n%s  %s)", indent, p.ctx.String(p.Conclusion))
}
