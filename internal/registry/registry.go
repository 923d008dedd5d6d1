// Package registry tracks every open connection, the account it authenticated
// as and whether it is that account's primary or monitor connection.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/playhub/lobby/internal/packets"
)

// Role of a connection with respect to its account.
type Role string

const (
	// Primary connections carry the request/reply stream.
	Primary Role = "primary"
	// Monitor connections exist only to receive pushes.
	Monitor Role = "monitor"
)

var (
	ErrAlreadyPrimary  = errors.New("account already has a primary connection")
	ErrAccountMismatch = errors.New("connection is bound to a different account")
	ErrNotRegistered   = errors.New("connection is not registered")
	ErrInvalidRole     = errors.New("role must be primary or monitor")
)

// ParseRole converts a protocol role name, defaulting to Primary when empty.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", Primary:
		return Primary, nil
	case Monitor:
		return Monitor, nil
	}
	return "", ErrInvalidRole
}

// Conn is the part of a connection the registry and its callers need.
type Conn interface {
	ID() string
	TrySend(msg packets.ServerMessage) bool
}

// Binding is the set of connections currently resolved for one account.
type Binding struct {
	Primary Conn
	Monitor Conn
}

type entry struct {
	conn    Conn
	account string
	role    Role
}

type binding struct {
	primary string
	monitor string
}

// Registry is safe for concurrent use. Every mutation happens in a single
// critical section so readers never see a half-applied binding.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*entry
	accounts map[string]*binding
}

func New() *Registry {
	return &Registry{
		conns:    make(map[string]*entry),
		accounts: make(map[string]*binding),
	}
}

// Register adds an unauthenticated connection and returns its id.
func (r *Registry) Register(c Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = &entry{conn: c}
	return c.ID()
}

// Identify binds the connection to account in the given role. A primary
// binding fails with ErrAlreadyPrimary while another connection holds the
// account's primary slot; the existing session is never evicted. A monitor
// binding always succeeds and replaces any older monitor for the account.
// Once bound, a connection can never be rebound to a different account.
func (r *Registry) Identify(id, account string, role Role) error {
	if role != Primary && role != Monitor {
		return ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return ErrNotRegistered
	}
	if e.account != "" && e.account != account {
		return ErrAccountMismatch
	}

	b := r.accounts[account]
	if b == nil {
		b = &binding{}
	}
	if role == Primary && b.primary != "" && b.primary != id {
		return ErrAlreadyPrimary
	}

	// Switching roles on the same connection vacates the old slot.
	if e.role == Primary && role == Monitor && b.primary == id {
		b.primary = ""
	} else if e.role == Monitor && role == Primary && b.monitor == id {
		b.monitor = ""
	}

	if role == Primary {
		b.primary = id
	} else {
		b.monitor = id
	}
	e.account = account
	e.role = role
	r.accounts[account] = b
	return nil
}

// Resolve returns the connections bound to account. Either may be nil.
func (r *Registry) Resolve(account string) Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var resolved Binding
	b, ok := r.accounts[account]
	if !ok {
		return resolved
	}
	if e, ok := r.conns[b.primary]; ok {
		resolved.Primary = e.conn
	}
	if e, ok := r.conns[b.monitor]; ok {
		resolved.Monitor = e.conn
	}
	return resolved
}

// AccountOf returns the account and role a connection is bound to. ok is false
// for unknown or unauthenticated connections.
func (r *Registry) AccountOf(id string) (account string, role Role, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, found := r.conns[id]
	if !found || e.account == "" {
		return "", "", false
	}
	return e.account, e.role, true
}

// Lookup returns a registered connection by id.
func (r *Registry) Lookup(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Online returns, sorted, every account that currently has a primary connection.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []string
	for account, b := range r.accounts {
		if b.primary != "" {
			accounts = append(accounts, account)
		}
	}
	sort.Strings(accounts)
	return accounts
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Unregister removes the connection and any binding pointing at it. Bindings
// held by the account's other connection are left alone.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return
	}
	delete(r.conns, id)

	if e.account == "" {
		return
	}
	b := r.accounts[e.account]
	if b == nil {
		return
	}
	if b.primary == id {
		b.primary = ""
	}
	if b.monitor == id {
		b.monitor = ""
	}
	if b.primary == "" && b.monitor == "" {
		delete(r.accounts, e.account)
	}
}
