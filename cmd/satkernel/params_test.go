package main

import (
	"strings"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/satkernel/pkg/config"
)

func TestParams(t *testing.T) {
	out, err := execute(t, "", "params")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(config.Descriptors())+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, out, "poll_interval")
}

func TestParamsYAML(t *testing.T) {
	out, err := execute(t, "", "params", "-o", "yaml")
	require.NoError(t, err)

	var ds []config.Descriptor
	require.NoError(t, yaml.Unmarshal([]byte(out), &ds))
	assert.Equal(t, config.Descriptors(), ds)
}

func TestParamsDefaults(t *testing.T) {
	out, err := execute(t, "", "params", "-o", "defaults")
	require.NoError(t, err)

	p, err := config.Unmarshal([]byte(out))
	require.NoError(t, err)
	c, err := config.Default().Translate(p)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}

func TestParamsUnknownFormat(t *testing.T) {
	_, err := execute(t, "", "params", "-o", "xml")
	assert.Error(t, err)
}
