package pose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/motionlab/backend/internal/external"
)

var (
	// ErrExtractorUnavailable indicates the extractor binary is not configured.
	ErrExtractorUnavailable = errors.New("pose extractor unavailable")
	// ErrNoMotion is returned when the extractor finds nobody to track.
	ErrNoMotion = errors.New("no motion extracted from video")
)

// Options tune a single extraction.
type Options struct {
	XSensitivity float64
	YSensitivity float64
	Stationary   bool
	OutputFormat string
}

// Extractor shells out to the motion extraction program. The program writes
// BVH files into the output directory and prints {"bvh_files":[...]} on stdout.
type Extractor struct {
	Binary  string
	Args    []string
	Run     external.CommandRunner
	Timeout time.Duration
}

// NewExtractor constructs an Extractor for binary.
func NewExtractor(binary string, args []string, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Extractor{
		Binary:  strings.TrimSpace(binary),
		Args:    append([]string{}, args...),
		Run:     external.DefaultRunner,
		Timeout: timeout,
	}
}

// Extract converts videoPath into BVH files under outDir and returns their paths.
func (e *Extractor) Extract(ctx context.Context, videoPath, outDir string, opts Options) ([]string, error) {
	if e == nil || e.Binary == "" {
		return nil, ErrExtractorUnavailable
	}
	run := e.Run
	if run == nil {
		run = external.DefaultRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	args := append([]string{}, e.Args...)
	args = append(args,
		"--input", videoPath,
		"--output", outDir,
		"--x-sensitivity", strconv.FormatFloat(opts.XSensitivity, 'f', 2, 64),
		"--y-sensitivity", strconv.FormatFloat(opts.YSensitivity, 'f', 2, 64),
	)
	if opts.Stationary {
		args = append(args, "--stationary")
	}
	if opts.OutputFormat != "" {
		args = append(args, "--format", opts.OutputFormat)
	}

	out, err := run(execCtx, e.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("pose extract: %w", err)
	}

	var payload struct {
		BVHFiles []string `json:"bvh_files"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("parse extractor response: %w", err)
	}
	if len(payload.BVHFiles) == 0 {
		return nil, ErrNoMotion
	}

	paths := make([]string, 0, len(payload.BVHFiles))
	for _, p := range payload.BVHFiles {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(outDir, p)
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("extractor wrote outside output dir: %s", p)
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, ErrNoMotion
	}
	return paths, nil
}
