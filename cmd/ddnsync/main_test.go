package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMissingConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, options{configFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, out.String())
}

func TestRunLocked(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "ipaddress")
	cfgPath := filepath.Join(dir, "ddnsync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
record:
  zone: example.com
  name: home.example.com
resolver:
  method: static
  address: 203.0.113.7
provider:
  cloudflare:
    api_token: abc
`), 0o600))

	held := flock.New(state + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	var out bytes.Buffer
	err = run(context.Background(), &out, options{configFile: cfgPath, stateFile: state})
	assert.ErrorContains(t, err, "another instance")
	_, statErr := os.Stat(state)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "state must not be touched")
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	var stderr bytes.Buffer
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	assert.Error(t, cmd.Execute(), "positional arguments are rejected")
	assert.NotContains(t, stderr.String(), "Error:")

	assert.True(t, cmd.SilenceErrors, "failures are logged once by run")
	assert.True(t, cmd.SilenceUsage)

	f := cmd.Flags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, "ddnsync.yaml", f.DefValue)
	assert.Equal(t, "c", f.Shorthand)
}
