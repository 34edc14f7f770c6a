package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
history:
  backend: sqlite
  path: ~/history.db
execution:
  shell: /bin/sh
security:
  enabled: true
  rules_file: ~/guardrail.yaml
`

func newTestRoot(t *testing.T, home, input string) (func(args ...string) (string, error), func()) {
	t.Helper()
	configPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(configPath); err != nil {
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0o600))
	}

	var out bytes.Buffer
	root, closer, err := NewRootCmd(context.Background(), Options{
		ConfigPath: configPath,
		In:         strings.NewReader(input),
		Out:        &out,
	})
	require.NoError(t, err)

	run := func(args ...string) (string, error) {
		out.Reset()
		root.SetArgs(args)
		err := root.ExecuteContext(context.Background())
		return out.String(), err
	}
	return run, func() { closer.Close() }
}

func TestAskThenHistoryList(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	run, done := newTestRoot(t, home, "")
	out, err := run("ask", "what", "time", "is", "it")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated Command:")
	assert.Contains(t, out, "date")
	assert.Contains(t, out, "Command executed successfully")
	done()

	run, done = newTestRoot(t, home, "")
	defer done()
	out, err = run("history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Today")
	assert.Contains(t, out, "| date")

	out, err = run("history", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Success rate: 100.0%")
}

func TestChatSessionCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	run, done := newTestRoot(t, home, "list files\n/clear\n/history\n/quit\n")
	defer done()

	out, err := run("chat")
	require.NoError(t, err)
	assert.Contains(t, out, "ls -la")
	assert.Contains(t, out, "Started session")
	assert.Contains(t, out, "Today")
}

func TestChatEndsOnEOF(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	run, done := newTestRoot(t, home, "")
	defer done()
	_, err := run("chat")
	assert.NoError(t, err)
}

func TestGuardrailCheckAndConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	run, done := newTestRoot(t, home, "")
	defer done()

	out, err := run("guardrail", "check", "rm -rf /")
	require.NoError(t, err)
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "ExactTextConfirm")

	out, err = run("config", "get", "execution.shell")
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh\n", out)

	out, err = run("config", "set", "stream.retry_attempts", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated stream.retry_attempts")

	out, err = run("config", "get", "stream.retry_attempts")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "SHAI version")

	out, err = run("version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestHistoryDeleteUnknownIsNotFound(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	run, done := newTestRoot(t, home, "")
	defer done()
	_, err := run("history", "delete", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = run("history", "rerun", "nope")
	require.Error(t, err)
}
