// Package lobbyclient is a Go client for the lobby protocol. Requests carry a
// request_id so any number may be outstanding; pushes are delivered on a
// separate channel and never mistaken for replies.
package lobbyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/playhub/lobby/internal/packets"
)

// ErrClosed is returned for requests made on, or pending when, the connection closes.
var ErrClosed = errors.New("lobby connection closed")

const pushBuffer = 64

// StatusError is a reply whose status isn't ok.
type StatusError struct {
	Action string
	Status string
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Action, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Status)
}

// HasStatus reports whether err is a StatusError carrying status.
func HasStatus(err error, status string) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}

type Client struct {
	conn net.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[string]chan *packets.Reply
	err     error

	pushes chan *packets.Push
	done   chan struct{}
}

// Dial connects to the lobby at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan *packets.Reply),
		pushes:  make(chan *packets.Push, pushBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Pushes delivers unsolicited server messages. It is closed when the
// connection closes. Pushes arriving while the buffer is full are dropped.
func (c *Client) Pushes() <-chan *packets.Push {
	return c.pushes
}

// Done is closed once the connection has closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Do sends a request and waits for its reply, whatever the status.
func (c *Client) Do(ctx context.Context, action string, data interface{}) (*packets.Reply, error) {
	ch := make(chan *packets.Reply, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req, err := packets.NewRequest(action, id, data)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	err = packets.WriteFrame(c.conn, body)
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call sends a request, decoding the reply's data into out (which may be nil).
// A reply with any status other than ok is returned as a *StatusError.
func (c *Client) Call(ctx context.Context, action string, in, out interface{}) error {
	reply, err := c.Do(ctx, action, in)
	if err != nil {
		return err
	}
	if !reply.OK() {
		var reason packets.Reason
		_ = reply.Bind(&reason)
		return &StatusError{Action: action, Status: reply.Status, Reason: reason.Reason}
	}
	if out == nil {
		return nil
	}
	return reply.Bind(out)
}

func (c *Client) readLoop() {
	var buf []byte
	var err error
	for {
		buf, err = packets.ReadFrame(c.conn, buf)
		if err != nil {
			break
		}

		msg, decodeErr := packets.DecodeServerMessage(buf)
		if decodeErr != nil {
			continue
		}
		switch m := msg.(type) {
		case *packets.Push:
			select {
			case c.pushes <- m:
			default:
			}
		case *packets.Reply:
			c.deliver(m)
		}
	}

	c.mu.Lock()
	c.err = ErrClosed
	c.mu.Unlock()
	close(c.done)
	close(c.pushes)
}

// deliver hands a reply to the request it answers. A reply without a request
// id is matched to the only outstanding request, if there is exactly one.
func (c *Client) deliver(reply *packets.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.pending[reply.RequestID]; ok {
		ch <- reply
		delete(c.pending, reply.RequestID)
		return
	}
	if reply.RequestID == "" && len(c.pending) == 1 {
		for id, ch := range c.pending {
			ch <- reply
			delete(c.pending, id)
		}
	}
}
