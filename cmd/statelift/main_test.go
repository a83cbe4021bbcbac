package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/statelift/internal/config"
	"github.com/vango-dev/statelift/internal/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "--dir", dir, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, config.ConfigFileName))

	_, err = execute(t, "--dir", dir, "config", "init")
	assert.True(t, errors.HasCode(err, "SL203"))

	_, err = execute(t, "--dir", dir, "config", "init", "--force")
	require.NoError(t, err)

	t.Setenv("STATELIFT_BENCH_ROWS", "42")
	out, err := execute(t, "--dir", dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"rows": 42`)
}

func TestBenchSummary(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "--dir", dir, "--log-level", "warn",
		"bench", "--rows=20", "--lots=30", "-n", "1", "--ops=create,select")
	require.NoError(t, err)
	assert.Contains(t, out, "create")
	assert.Contains(t, out, "select")
	assert.NotContains(t, out, "createLots")
}

func TestBenchJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	_, err := execute(t, "--dir", dir, "--log-level", "warn",
		"bench", "--rows=10", "-n", "1", "--ops=update", "--json", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"op": "update"`)
}

func TestBenchInvalidUpload(t *testing.T) {
	_, err := execute(t, "--dir", t.TempDir(), "bench", "--upload", "bucket/prefix")
	assert.True(t, errors.HasCode(err, "SL300"))
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := execute(t, "--dir", t.TempDir(), "--log-format", "xml", "bench", "--rows=10", "-n", "1", "--ops=create")
	assert.True(t, errors.HasCode(err, "SL203"))
}
