// Package launchertest provides a StartFunc that records what would have been
// started and lets tests decide when each fake process exits.
package launchertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/playhub/lobby/internal/launcher"
)

// ExitError mimics exec.ExitError for a non-zero exit code.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }
func (e *ExitError) ExitCode() int { return e.Code }

// Process is a fake game server.
type Process struct {
	Spec launcher.Spec
	pid  int

	once sync.Once
	exit chan error
}

func (p *Process) Wait() error { return <-p.exit }
func (p *Process) Pid() int    { return p.pid }

// Kill makes the process exit as if it had been signalled.
func (p *Process) Kill() error {
	p.Exit(errors.New("signal: killed"))
	return nil
}

// Exit makes Wait return err. Only the first call has any effect.
func (p *Process) Exit(err error) {
	p.once.Do(func() { p.exit <- err })
}

// Starter records every spec it is asked to start.
type Starter struct {
	// Err, if set, is returned instead of starting anything.
	Err error

	mu        sync.Mutex
	processes []*Process
}

// Start satisfies launcher.StartFunc.
func (s *Starter) Start(_ context.Context, spec launcher.Spec) (launcher.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	p := &Process{Spec: spec, pid: 1000 + len(s.processes), exit: make(chan error, 1)}
	s.processes = append(s.processes, p)
	return p, nil
}

// Processes returns everything started so far, oldest first.
func (s *Starter) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.processes...)
}

// Last returns the most recently started process, or nil.
func (s *Starter) Last() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.processes) == 0 {
		return nil
	}
	return s.processes[len(s.processes)-1]
}
