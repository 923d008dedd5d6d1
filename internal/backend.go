package internal

import (
	"context"

	"github.com/playhub/lobby/internal/core/client"
)

// Backend is an interface for a server that handles the messages read from
// its connections by a frontend.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient performs any initialization on the Client needed to be
	// able to begin the session.
	SetUpClient(c *client.Client)

	// Handle is the main entry point for processing client messages. It's
	// responsible for handling every message from a client as well as sending
	// any replies. A returned error ends the connection.
	Handle(ctx context.Context, c *client.Client, data []byte) error

	// TearDown releases anything held for a client once its connection has closed.
	TearDown(c *client.Client)
}
