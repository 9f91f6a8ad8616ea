// Package transform runs the external data-cleaning process on exported files.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/storepulse/backend/internal/domain"
	"go.uber.org/zap"
)

const defaultTimeout = 120 * time.Second

// Ensure ScriptRunner implements the domain port
var _ domain.TransformRunner = (*ScriptRunner)(nil)

// ScriptRunner invokes an interpreter with a cleaning script and two path
// arguments (input, output). The script owns the transformation semantics;
// this side only cares about the exit code.
type ScriptRunner struct {
	interpreter string
	script      string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewScriptRunner creates a runner. The interpreter is resolved through PATH
// at construction time so a missing binary fails at startup.
func NewScriptRunner(interpreter, script string, timeout time.Duration, logger *zap.Logger) (*ScriptRunner, error) {
	if script == "" {
		return nil, errors.New("transform script path is required")
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}

	resolved, err := exec.LookPath(interpreter)
	if err != nil {
		return nil, fmt.Errorf("transform interpreter not found: %q: %w", interpreter, err)
	}

	return &ScriptRunner{
		interpreter: resolved,
		script:      script,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Run executes the script against inputPath, writing to outputPath. A
// non-zero exit is reported as *domain.TransformError with captured stderr.
func (r *ScriptRunner) Run(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.interpreter, r.script, inputPath, outputPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("transform timed out after %v: %w", r.timeout, err)
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		r.logger.Error("transform failed",
			zap.String("input", inputPath),
			zap.Int("exit_code", exitCode),
			zap.String("stderr", stderr.String()),
			zap.String("stdout", stdout.String()))

		return &domain.TransformError{ExitCode: exitCode, Stderr: stderr.String()}
	}

	r.logger.Info("transform completed",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Duration("duration", time.Since(start)))
	return nil
}
