package launcher

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Spec is everything needed to start one game server process.
type Spec struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a started game server.
type Process interface {
	// Wait blocks until the process exits. A non-nil error carrying an
	// ExitCode() method reports a non-zero exit status.
	Wait() error
	Kill() error
	Pid() int
}

// StartFunc starts a process and returns without waiting for it to exit.
type StartFunc func(ctx context.Context, spec Spec) (Process, error)

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error { return p.cmd.Wait() }
func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }
func (p *execProcess) Pid() int    { return p.cmd.Process.Pid }

// ExecStart runs spec as an operating system process.
func ExecStart(ctx context.Context, spec Spec) (Process, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}
