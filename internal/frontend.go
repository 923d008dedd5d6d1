package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/playhub/lobby/internal/core"
	"github.com/playhub/lobby/internal/core/client"
	coredebug "github.com/playhub/lobby/internal/core/debug"
	"github.com/playhub/lobby/internal/lobby"
	"github.com/playhub/lobby/internal/packets"
)

// frontend implements the concurrent client connection logic.
//
// Frames are read from any connected clients and passed to a backend instance, abstracting
// the lower level connection details away from the Backends.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	listener  *net.TCPListener
	connected int64
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}
	f.listener = socket

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// Addr is the address the frontend is listening on, once started.
func (f *frontend) Addr() net.Addr {
	return f.listener.Addr()
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), socket.Addr())

	connections := make(chan *net.TCPConn)
	go func() {
		defer close(connections)
		for {
			connection, err := socket.AcceptTCP()
			if errors.Is(err, net.ErrClosed) {
				return
			} else if err != nil {
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			if f.Config.MaxConnections > 0 && atomic.LoadInt64(&f.connected) >= int64(f.Config.MaxConnections) {
				f.Logger.Warnf("[%s] rejected connection from %s: at maximum of %d connections",
					f.Backend.Identifier(), connection.RemoteAddr(), f.Config.MaxConnections)
				_ = connection.Close()
				continue
			}
			atomic.AddInt64(&f.connected, 1)
			connections <- connection
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection, ok := <-connections:
			if !ok {
				break handleLoop
			}
			clientWg.Add(1)
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	_ = socket.Close()
	// Drain anything accepted after the shutdown began.
	for connection := range connections {
		atomic.AddInt64(&f.connected, -1)
		_ = connection.Close()
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient sets up the Client for a new connection and moves into the
// message processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := client.NewClient(connection, f.Config.Lobby.SendQueueSize)
	f.Backend.SetUpClient(c)

	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())

	// Reads block, so closing the connection is what unblocks the loop on shutdown.
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.Done():
		}
	}()

	f.processPackets(ctx, c)
}

// processPackets starts a blocking loop dedicated to reading frames sent from
// a client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	var buffer []byte
	var err error

	for {
		buffer, err = packets.ReadFrame(c, buffer)
		if err == io.EOF {
			return
		} else if err != nil {
			select {
			case <-c.Done():
				// Closed from our side.
			default:
				f.Logger.Warnf("[%s] error reading from %s: %v", f.Backend.Identifier(), c.IPAddr(), err)
			}
			return
		}

		if f.Config.Debugging.FrameLoggingEnabled {
			coredebug.LogFrame(f.Logger, f.Backend.Identifier(), c.IPAddr(), "server", buffer)
		}

		if err = f.Backend.Handle(ctx, c, buffer); err != nil {
			if !errors.Is(err, lobby.ErrSessionEnded) && !errors.Is(err, client.ErrClosed) {
				f.Logger.Warn("error in client communication: " + err.Error())
			}
			return
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes them from the backend regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.Backend.TearDown(c)
	atomic.AddInt64(&f.connected, -1)

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}
