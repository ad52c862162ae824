package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated configuration directory for running commands
// in-process.
type testEnv struct {
	t         *testing.T
	ConfigDir string
	DataDir   string
	opts      []Option
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	t.Setenv("PLANNER_CONFIG_DIR", "")
	t.Setenv("PLANNER_DATA_DIR", "")
	t.Setenv("PLANNER_BACKEND", "")
	dir := t.TempDir()
	return &testEnv{
		t:         t,
		ConfigDir: filepath.Join(dir, "config"),
		DataDir:   filepath.Join(dir, "config", "data"),
		opts:      opts,
	}
}

// cmdResult holds the outcome of one command.
type cmdResult struct {
	Stdout   string
	Stderr   string
	Err      error
	ExitCode int
}

// run executes planner with args against the environment's config dir.
func (e *testEnv) run(args ...string) cmdResult {
	e.t.Helper()
	root := NewRootCmd(e.opts...)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(append([]string{"--config-dir", e.ConfigDir}, args...))
	err := root.ExecuteContext(context.Background())
	return cmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Err:      err,
		ExitCode: exitCode(err),
	}
}

// mustRun executes planner and fails the test on a non-zero exit.
func (e *testEnv) mustRun(args ...string) cmdResult {
	e.t.Helper()
	res := e.run(args...)
	if res.ExitCode != 0 {
		e.t.Fatalf("planner %v failed with exit code %d: %v\nstdout: %s\nstderr: %s",
			args, res.ExitCode, res.Err, res.Stdout, res.Stderr)
	}
	return res
}

// readData returns a file from the data directory.
func (e *testEnv) readData(name string) string {
	e.t.Helper()
	data, err := os.ReadFile(filepath.Join(e.DataDir, name))
	require.NoError(e.t, err)
	return string(data)
}

// writeData replaces a file in the data directory.
func (e *testEnv) writeData(name, content string) {
	e.t.Helper()
	require.NoError(e.t, os.MkdirAll(e.DataDir, 0o755))
	require.NoError(e.t, os.WriteFile(filepath.Join(e.DataDir, name), []byte(content), 0o644))
}

func parseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}
