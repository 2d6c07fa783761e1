// Package retarget applies BVH motion to avatars and expires the results.
package retarget

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/motionlab/backend/internal/external"
)

// ErrRetargeterUnavailable indicates the retargeting program is not configured.
var ErrRetargeterUnavailable = errors.New("retargeter unavailable")

// Runner invokes the retargeting program as
// <binary> <args...> -- <bvh> <avatar> <output>.
type Runner struct {
	Binary  string
	Args    []string
	Run     external.CommandRunner
	Timeout time.Duration
}

// NewRunner constructs a Runner for binary.
func NewRunner(binary string, args []string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{
		Binary:  strings.TrimSpace(binary),
		Args:    append([]string{}, args...),
		Run:     external.DefaultRunner,
		Timeout: timeout,
	}
}

// Retarget writes a GLB to outPath and checks that it was produced.
func (r *Runner) Retarget(ctx context.Context, bvhPath, avatarPath, outPath string) error {
	if r == nil || r.Binary == "" {
		return ErrRetargeterUnavailable
	}
	run := r.Run
	if run == nil {
		run = external.DefaultRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := append([]string{}, r.Args...)
	args = append(args, "--", bvhPath, avatarPath, outPath)

	if _, err := run(execCtx, r.Binary, args...); err != nil {
		return fmt.Errorf("retarget: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("retarget output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("retarget output is empty")
	}
	return nil
}
