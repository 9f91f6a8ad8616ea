package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/storepulse/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clean.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func TestNewScriptRunner_MissingInterpreter(t *testing.T) {
	_, err := NewScriptRunner("no-such-interpreter-xyz", "clean.py", 0, zap.NewNop())
	assert.Error(t, err)
}

func TestNewScriptRunner_MissingScript(t *testing.T) {
	_, err := NewScriptRunner("sh", "", 0, zap.NewNop())
	assert.Error(t, err)
}

func TestRun_Success(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\ncp \"$1\" \"$2\"\n")
	runner, err := NewScriptRunner("sh", script, 10*time.Second, zap.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "in_cleaned.csv")
	require.NoError(t, os.WriteFile(input, []byte("title\npuzzle\n"), 0644))

	err = runner.Run(context.Background(), input, output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "title\npuzzle\n", string(data))
}

func TestRun_NonZeroExit(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\necho \"bad input\" >&2\nexit 3\n")
	runner, err := NewScriptRunner("sh", script, 10*time.Second, zap.NewNop())
	require.NoError(t, err)

	err = runner.Run(context.Background(), "in.csv", "out.csv")
	require.Error(t, err)

	var transformErr *domain.TransformError
	require.ErrorAs(t, err, &transformErr)
	assert.Equal(t, 3, transformErr.ExitCode)
	assert.Contains(t, transformErr.Stderr, "bad input")
}

func TestRun_Timeout(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nsleep 5\n")
	runner, err := NewScriptRunner("sh", script, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	err = runner.Run(context.Background(), "in.csv", "out.csv")
	assert.Error(t, err)
}
