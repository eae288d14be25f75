// Package gitrepo wraps libgit2 for reading cloned repositories and shells
// out to git for the clone itself, which needs shallow-clone and progress
// control that libgit2 does not expose.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"time"
)

// Clone failure classes.
var (
	ErrCloneTimeout  = errors.New("clone deadline exceeded")
	ErrCloneStalled  = errors.New("clone throughput below minimum")
	ErrCloneOversize = errors.New("clone exceeded disk budget")
)

// CloneOptions bounds a clone in time, bandwidth and disk.
type CloneOptions struct {
	URL     string
	Dir     string
	Timeout time.Duration

	// DiskBudgetBytes aborts the clone once the target directory grows past
	// this size. Zero disables the check.
	DiskBudgetBytes int64

	// MinThroughputBytesPerSec together with ThroughputWindow aborts a clone
	// that makes no meaningful progress for a sustained period.
	MinThroughputBytesPerSec int64
	ThroughputWindow         time.Duration

	// Depth > 0 performs a shallow single-branch clone.
	Depth int
}

// Clone fetches opts.URL into opts.Dir. Interactive credential prompts are
// disabled so private repositories fail fast instead of hanging.
func Clone(ctx context.Context, opts CloneOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := []string{"clone", "--no-tags"}
	if opts.Depth > 0 {
		args = append(args, fmt.Sprintf("--depth=%d", opts.Depth), "--single-branch")
	}
	args = append(args, opts.URL, opts.Dir)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = []string{
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=true",
		"HOME=/nonexistent",
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start git clone: %w", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	abort := make(chan error, 1)
	go watchClone(watchCtx, opts, abort)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case reason := <-abort:
		_ = cmd.Process.Kill()
		<-done
		return reason
	case err := <-done:
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ErrCloneTimeout
		}
		return fmt.Errorf("git clone: %w", err)
	}
}

// watchClone polls the clone directory size, flagging disk-budget breaches
// and sustained low throughput.
func watchClone(ctx context.Context, opts CloneOptions, abort chan<- error) {
	const pollInterval = 2 * time.Second

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastSize int64
	stalledSince := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		size := dirSize(opts.Dir)

		if opts.DiskBudgetBytes > 0 && size > opts.DiskBudgetBytes {
			abort <- ErrCloneOversize
			return
		}

		if opts.MinThroughputBytesPerSec > 0 && opts.ThroughputWindow > 0 {
			rate := (size - lastSize) / int64(pollInterval/time.Second)
			if rate < opts.MinThroughputBytesPerSec {
				if stalledSince.IsZero() {
					stalledSince = time.Now()
				} else if time.Since(stalledSince) > opts.ThroughputWindow {
					abort <- ErrCloneStalled
					return
				}
			} else {
				stalledSince = time.Time{}
			}
		}
		lastSize = size
	}
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
