// Package launcher starts one game server process per room, hands each a port
// from a managed pool and supervises it until it exits.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playhub/lobby/internal/catalog"
)

var ErrLaunchFailed = errors.New("launch failed")

// Status of a game server process.
type Status string

const (
	Spawning Status = "spawning"
	Ready    Status = "ready"
	Exited   Status = "exited"
)

// Request names the room a server is being started for.
type Request struct {
	RoomID  int
	MatchID string
	Game    catalog.Game
	// Players in turn order.
	Players []string
	// OnExit, if set, runs once the process exits but before its port is
	// released, so the room can leave the running state first.
	OnExit func(ExitReport)
}

// ExitReport is published once when a process exits for any reason.
type ExitReport struct {
	RoomID   int
	MatchID  string
	Port     int
	ExitCode int
	Err      error
}

// Handle is a room's reference to its game server. Only the launcher changes it.
type Handle struct {
	RoomID    int
	MatchID   string
	Port      int
	SpawnedAt time.Time

	mu     sync.Mutex
	status Status
	report ExitReport
	proc   Process
	done   chan struct{}
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Done is closed once the process has exited and its port has been released.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Report returns the exit report. Only meaningful after Done is closed.
func (h *Handle) Report() ExitReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report
}

// Kill terminates the process. The exit is still reported through Done.
func (h *Handle) Kill() error {
	h.mu.Lock()
	proc, status := h.proc, h.status
	h.mu.Unlock()

	if proc == nil || status == Exited {
		return nil
	}
	return proc.Kill()
}

// Config holds what the launcher substitutes into every command.
type Config struct {
	// Host game servers bind to.
	Host string
	// BrokerAddr is where game servers connect to report results.
	BrokerAddr string
	// RootDir is the directory under which each game's path is resolved.
	RootDir string
}

type Launcher struct {
	config Config
	ports  *PortPool
	start  StartFunc
	logger *logrus.Logger

	ctx context.Context
	wg  sync.WaitGroup

	mu   sync.Mutex
	live map[int]*Handle
}

// New returns a Launcher. A nil start uses ExecStart. Processes are started
// with ctx, so cancelling it kills every live game server.
func New(ctx context.Context, config Config, ports *PortPool, start StartFunc, logger *logrus.Logger) *Launcher {
	if start == nil {
		start = ExecStart
	}
	return &Launcher{
		config: config,
		ports:  ports,
		start:  start,
		logger: logger,
		ctx:    ctx,
		live:   make(map[int]*Handle),
	}
}

// Launch reserves a port and starts the game's server command. It returns as
// soon as the process has started; the caller treats the server as ready and
// the game client's own retries cover the moment before it accepts
// connections. Every failure wraps ErrLaunchFailed and leaves no port reserved.
func (l *Launcher) Launch(req Request) (*Handle, error) {
	if len(req.Game.Server.Command) == 0 || req.Game.Server.Command[0] == "" {
		return nil, fmt.Errorf("%w: game %d has no server command", ErrLaunchFailed, req.Game.ID)
	}

	port, err := l.ports.Acquire()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	h := &Handle{
		RoomID:    req.RoomID,
		MatchID:   req.MatchID,
		Port:      port,
		SpawnedAt: time.Now(),
		status:    Spawning,
		done:      make(chan struct{}),
	}

	log := l.logger.WithFields(logrus.Fields{
		"room_id":  req.RoomID,
		"match_id": req.MatchID,
		"game":     req.Game.Name,
		"port":     port,
	})
	stdout := log.WriterLevel(logrus.InfoLevel)
	stderr := log.WriterLevel(logrus.WarnLevel)

	args := l.substitute(req, port)
	spec := Spec{
		Path:   args[0],
		Args:   args[1:],
		Dir:    filepath.Join(l.config.RootDir, req.Game.Path),
		Env:    l.environment(req, port),
		Stdout: stdout,
		Stderr: stderr,
	}

	proc, err := l.start(l.ctx, spec)
	if err != nil {
		stdout.Close()
		stderr.Close()
		l.ports.Release(port)
		return nil, fmt.Errorf("%w: starting %s: %v", ErrLaunchFailed, spec.Path, err)
	}

	h.mu.Lock()
	h.proc = proc
	h.status = Ready
	h.mu.Unlock()

	l.mu.Lock()
	l.live[port] = h
	l.mu.Unlock()

	log.WithField("pid", proc.Pid()).Info("started game server")

	l.wg.Add(1)
	go l.supervise(h, proc, req.OnExit, log, stdout, stderr)

	return h, nil
}

// supervise waits for the process to exit, notifies onExit and only then
// releases the port and publishes the exit report.
func (l *Launcher) supervise(h *Handle, proc Process, onExit func(ExitReport), log *logrus.Entry, outputs ...io.Closer) {
	defer l.wg.Done()

	err := proc.Wait()
	for _, c := range outputs {
		c.Close()
	}

	report := ExitReport{RoomID: h.RoomID, MatchID: h.MatchID, Port: h.Port, Err: err}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		report.ExitCode = coded.ExitCode()
	} else if err != nil {
		report.ExitCode = -1
	}

	if onExit != nil {
		onExit(report)
	}

	h.mu.Lock()
	h.status = Exited
	h.report = report
	h.mu.Unlock()

	l.mu.Lock()
	delete(l.live, h.Port)
	l.mu.Unlock()
	l.ports.Release(h.Port)
	close(h.done)

	if err != nil {
		log.Warnf("game server exited abnormally (code %d): %v", report.ExitCode, err)
	} else {
		log.Info("game server exited")
	}
}

// Live returns the handles of every process that hasn't exited yet.
func (l *Launcher) Live() []*Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	handles := make([]*Handle, 0, len(l.live))
	for _, h := range l.live {
		handles = append(handles, h)
	}
	return handles
}

// Shutdown kills every live process and waits for their supervisors to finish.
func (l *Launcher) Shutdown() {
	for _, h := range l.Live() {
		if err := h.Kill(); err != nil {
			l.logger.Warnf("failed to kill game server for room %d: %v", h.RoomID, err)
		}
	}
	l.wg.Wait()
}

func (l *Launcher) substitute(req Request, port int) []string {
	replacer := strings.NewReplacer(
		"{host}", l.config.Host,
		"{port}", strconv.Itoa(port),
		"{room_id}", strconv.Itoa(req.RoomID),
		"{match_id}", req.MatchID,
		"{players}", strings.Join(req.Players, ","),
		"{broker}", l.config.BrokerAddr,
	)

	args := make([]string, len(req.Game.Server.Command))
	for i, arg := range req.Game.Server.Command {
		args[i] = replacer.Replace(arg)
	}
	return args
}

func (l *Launcher) environment(req Request, port int) []string {
	env := []string{
		"LOBBY_HOST=" + l.config.Host,
		"LOBBY_PORT=" + strconv.Itoa(port),
		"LOBBY_ROOM_ID=" + strconv.Itoa(req.RoomID),
		"LOBBY_MATCH_ID=" + req.MatchID,
		"LOBBY_PLAYERS=" + strings.Join(req.Players, ","),
		"LOBBY_BROKER_ADDR=" + l.config.BrokerAddr,
	}
	for k, v := range req.Game.Server.Env {
		env = append(env, k+"="+v)
	}
	return env
}
