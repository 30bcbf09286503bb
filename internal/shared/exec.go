package shared

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner runs external tools through os/exec.
type ExecRunner struct{}

// Run executes name with args and returns its standard output. When the tool
// exits non-zero the error carries the tail of its standard error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("%s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s failed: %w: %s", name, err, TruncateString(strings.TrimSpace(string(exitErr.Stderr)), 500))
		}
		return out, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}
