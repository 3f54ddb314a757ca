package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCmd(t *testing.T) {
	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"estimate", `[{"jsonrpc":"2.0","id":1,"method":"eth_getBalance","params":[]},{"jsonrpc":"2.0","id":2,"method":"eth_call","params":[]}]`})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"eth_getBalance", "1000"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"eth_call", "5000"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"total", "6000"}, strings.Fields(lines[2]))
}

func TestEstimateCmdStdin(t *testing.T) {
	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"eth_feeHistory","params":[]}`))
	cmd.SetArgs([]string{"estimate"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "2000")
}

func TestEstimateCmdInvalid(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"estimate", `not json`})
	assert.Error(t, cmd.Execute())
}
