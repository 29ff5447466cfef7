package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/satkernel/pkg/term"
)

type collector struct {
	ctx *term.Context
	fs  []string
}

func (c *collector) Assert(f term.Formula) {
	c.fs = append(c.fs, c.ctx.String(f))
}

func TestReadCNF(t *testing.T) {
	for _, tt := range []struct {
		Name     string
		Input    string
		Expected []string
	}{
		{
			Name:     "header and comments",
			Input:    "c example\np cnf 3 2\n1 -2 0\n3 0\n",
			Expected: []string{"(or x1 (not x2))", "x3"},
		},
		{
			Name:     "no header",
			Input:    "-1 0\n",
			Expected: []string{"(not x1)"},
		},
		{
			Name:     "unterminated last clause",
			Input:    "p cnf 2 2\n1 0\n-1 2",
			Expected: []string{"x1", "(or (not x1) x2)"},
		},
		{
			Name:     "empty clause",
			Input:    "p cnf 1 1\n0\n",
			Expected: []string{"false"},
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			c := &collector{ctx: term.NewContext()}
			require.NoError(t, readCNF(strings.NewReader(tt.Input), c.ctx, c))
			assert.Equal(t, tt.Expected, c.fs)
		})
	}
}

func TestReadCNFRejectsBadHeader(t *testing.T) {
	c := &collector{ctx: term.NewContext()}
	assert.Error(t, readCNF(strings.NewReader("p dnf 1 1\n1 0\n"), c.ctx, c))
}

func TestReadICNF(t *testing.T) {
	ctx := term.NewContext()
	c := &collector{ctx: ctx}
	var checks [][]string
	check := func(assumptions []term.Formula) {
		var names []string
		for _, a := range assumptions {
			names = append(names, ctx.String(a))
		}
		checks = append(checks, names)
	}

	input := "p inccnf\n1 2 0\na -1 0\n-2 0\na 0\n"
	require.NoError(t, readICNF(strings.NewReader(input), ctx, c, check))

	assert.Equal(t, []string{"(or x1 x2)", "(not x2)"}, c.fs)
	assert.Equal(t, [][]string{{"(not x1)"}, nil}, checks)
}
