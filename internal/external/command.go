// Package external runs the helper programs the pipeline delegates to.
package external

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// maxStderr bounds how much helper stderr is carried into errors.
const maxStderr = 512

// DefaultRunner runs binary with exec.CommandContext. Non-zero exits include
// the tail of stderr in the returned error.
func DefaultRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if len(stderr) > maxStderr {
				stderr = stderr[len(stderr)-maxStderr:]
			}
			if stderr != "" {
				return out, fmt.Errorf("%s: %w: %s", binary, err, stderr)
			}
		}
		return out, fmt.Errorf("%s: %w", binary, err)
	}
	return out, nil
}
