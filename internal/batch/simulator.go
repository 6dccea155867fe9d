// Package batch runs one simulator invocation per run configuration across a
// bounded worker pool and reports a tagged outcome for every job.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultBinary is the simulator executable looked up on PATH.
const DefaultBinary = "sumo"

// Simulator runs the external simulator against one run configuration.
type Simulator interface {
	// Run blocks until the simulator exits. A non-nil error means the run
	// failed; detail carries whatever the simulator wrote to stderr.
	Run(ctx context.Context, configPath string) (detail string, err error)
}

// ExecSimulator invokes <Binary> [Args...] -c <config> as a child process.
type ExecSimulator struct {
	Binary string
	// Args are placed before the -c flag.
	Args []string
	// Env entries are appended to the parent environment.
	Env []string
}

// Run implements Simulator. Cancelling ctx does not stop a run: once
// started, the simulator always runs to completion.
func (s ExecSimulator) Run(ctx context.Context, configPath string) (string, error) {
	bin := s.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	args := append(append([]string{}, s.Args...), "-c", configPath)

	cmd := exec.CommandContext(context.WithoutCancel(ctx), bin, args...)
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return detail, fmt.Errorf("%s -c %s: %w", bin, configPath, err)
	}
	return strings.TrimSpace(stderr.String()), nil
}
