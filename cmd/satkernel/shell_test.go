package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/satkernel/pkg/kernel"
	"github.com/operator-framework/satkernel/pkg/term"
)

func runShell(t *testing.T, script string) string {
	t.Helper()
	logger, _ := test.NewNullLogger()
	k, err := kernel.New(term.NewContext(), kernel.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })

	var out bytes.Buffer
	require.NoError(t, newShell(k, &out).run(strings.NewReader(script)))
	return out.String()
}

func TestShell(t *testing.T) {
	type tc struct {
		Name     string
		Script   string
		Expected string
	}
	for _, tt := range []tc{
		{
			Name: "scopes",
			Script: `assert a
push
assert (not a)
check
level
pop
check
level
`,
			Expected: "unsat\n1\nsat\n0\n",
		},
		{
			Name: "core",
			Script: `assert a (=> a b)
check (not b)
core
`,
			Expected: "unsat\n(core\n  a\n  (or (not a) b)\n  (not b))\n",
		},
		{
			Name: "model",
			Script: `assert (and a (not b))
check
model
assignments
`,
			Expected: "sat\n(model\n  (a true)\n  (b false))\n(assignments\n  a\n  (not b))\n",
		},
		{
			Name: "reset",
			Script: `assert false
push
reset
level
assertions
check
`,
			Expected: "0\n(assertions)\nsat\n",
		},
		{
			Name: "reduce",
			Script: `assert a (or a b) b
reduce
assertions
reduce
`,
			Expected: "true\n(assertions\n  a\n  b)\nfalse\n",
		},
		{
			Name: "labels",
			Script: `assert (! (or a b) :named ab)
check a
labels
`,
			Expected: "sat\n(labels ab)\n",
		},
		{
			Name: "errors do not stop the shell",
			Script: `frobnicate
pop 3
assert (and
logic NOPE
check
`,
			Expected: "error: unknown command \"frobnicate\"\n" +
				"error: cannot pop 3 scopes at level 0: pop exceeds scope level\n" +
				"error: unclosed '(' at offset 0\n" +
				"error: \"NOPE\": unknown logic\n" +
				"sat\n",
		},
		{
			Name: "exit",
			Script: `check
exit
check
`,
			Expected: "sat\n",
		},
		{
			Name: "display",
			Script: `; comment
assert a
display
`,
			Expected: "(kernel\n  a)\n",
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			assert.Equal(t, tt.Expected, runShell(t, tt.Script))
		})
	}
}

func TestShellSet(t *testing.T) {
	logger, _ := test.NewNullLogger()
	k, err := kernel.New(term.NewContext(), kernel.WithLogger(logger))
	require.NoError(t, err)
	defer k.Close()

	var out bytes.Buffer
	s := newShell(k, &out)
	require.NoError(t, s.run(strings.NewReader("set proof=true timeout=2s\nset bogus=1\n")))

	assert.True(t, k.Config().Proof)
	assert.False(t, k.SessionConfig().Proof, "new parameters wait for a reset")
	assert.Contains(t, out.String(), "error: ")
	assert.Contains(t, out.String(), "bogus")
}

func TestShellCancel(t *testing.T) {
	out := runShell(t, "cancel\nreason\ncheck\n")
	assert.Equal(t, "none: \nsat\n", out, "check clears a cancellation requested before it")
}

func TestShellCommand(t *testing.T) {
	params := writeFile(t, "params.yaml", "proof: true\n")
	out, err := execute(t, "assert a (not a)\ncheck\nproof\n", "shell", "--config", params, "--watch")
	require.NoError(t, err)
	assert.Equal(t, "unsat\n(unsat-core\n  (asserted a)\n  (asserted (not a))\n  false)\n", out)

	_, err = execute(t, "", "shell", "--watch")
	assert.Error(t, err, "--watch requires --config")
}
