package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playhub/lobby/internal/packets"
)

const writeTimeout = 10 * time.Second

var ErrClosed = errors.New("connection closed")

// Client represents a single connection to the lobby, either from a player's
// client or from a game server reporting a result. Outbound messages are queued
// and written by a dedicated goroutine so that pushes never block the sender.
type Client struct {
	id         string
	connection net.Conn
	ipAddr     string

	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewClient wraps connection and starts its writer. queueSize bounds the number
// of messages that can be waiting to be written.
func NewClient(connection net.Conn, queueSize int) *Client {
	if queueSize < 1 {
		queueSize = 1
	}
	ipAddr := connection.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(ipAddr); err == nil {
		ipAddr = host
	}

	c := &Client{
		id:         uuid.NewString(),
		connection: connection,
		ipAddr:     ipAddr,
		outbound:   make(chan []byte, queueSize),
		done:       make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Client) ID() string     { return c.id }
func (c *Client) IPAddr() string { return c.ipAddr }

// Read consumes the available bytes directly from the client's TCP connection.
func (c *Client) Read(b []byte) (int, error) {
	return c.connection.Read(b)
}

// Done is closed once the connection has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close the connection. Safe to call more than once; later calls return the
// result of the first.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.connection.Close()
	})
	return c.closeErr
}

// Send queues msg, waiting for room in the queue if necessary. Used for
// replies, which must not be lost while the connection is alive.
func (c *Client) Send(msg packets.ServerMessage) error {
	frame, err := encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outbound <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// TrySend queues msg without blocking, reporting whether it was accepted.
func (c *Client) TrySend(msg packets.ServerMessage) bool {
	frame, err := encode(msg)
	if err != nil {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbound <- frame:
		return true
	default:
		return false
	}
}

// Drain closes the connection once every message queued before the call has
// been written, giving up after the write timeout.
func (c *Client) Drain() {
	select {
	case c.outbound <- nil:
	case <-c.done:
		return
	}

	select {
	case <-c.done:
	case <-time.After(writeTimeout):
		_ = c.Close()
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbound:
			// A nil frame is queued by Drain.
			if frame == nil {
				_ = c.Close()
				return
			}
			if err := c.transmit(frame); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// transmit writes the whole frame to the connection.
func (c *Client) transmit(frame []byte) error {
	if err := c.connection.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	for sent := 0; sent < len(frame); {
		n, err := c.connection.Write(frame[sent:])
		if err != nil {
			return fmt.Errorf("failed to send to client %v: %w", c.IPAddr(), err)
		}
		sent += n
	}
	return nil
}

func encode(msg packets.ServerMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("error encoding %T: %w", msg, err)
	}
	return packets.EncodeFrame(body)
}
