package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSuperscalarCommand(t *testing.T) {
	out, err := run(t, "superscalar", "--key", "test key 000", "--index", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "program 3:")
	assert.NotContains(t, out, "program 2:")
	assert.Contains(t, out, "address register: r")

	_, err = run(t, "superscalar", "--key", "test key 000", "--index", "8")
	assert.Error(t, err)
}

func TestDisasmCommand(t *testing.T) {
	out, err := run(t, "disasm", "--input", "This is a test")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ma="))
	assert.Contains(t, out, "255: ")
	assert.Contains(t, out, "branches=")

	_, err = run(t, "disasm", "--input", "zz", "--hex")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rxhash dev")
}

func TestFlagErrors(t *testing.T) {
	_, err := run(t, "hash", "--input", "x")
	assert.Error(t, err, "key is required")

	_, err = run(t, "--log-level", "loud", "version")
	assert.Error(t, err)

	_, err = run(t, "verify", "--key", "k", "--expected", "0x1234")
	assert.Error(t, err)
}

func TestHashCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("argon2 cache fill in short mode")
	}
	out, err := run(t, "hash", "--key", "test key 000", "--input", "This is a test")
	require.NoError(t, err)
	assert.Equal(t, "639183aae1bf4c9a35884cb46b09cad9175f04efd7684e7262a0ac1c2f0b4e3f\n", out)

	out, err = run(t, "verify", "--key", "test key 000", "--input", "This is a test",
		"--expected", "639183aae1bf4c9a35884cb46b09cad9175f04efd7684e7262a0ac1c2f0b4e3f")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}
