package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playhub/lobby/internal/packets"
)

type fakeConn struct{ id string }

func (f *fakeConn) ID() string                         { return f.id }
func (f *fakeConn) TrySend(packets.ServerMessage) bool { return true }

func register(r *Registry, id string) *fakeConn {
	c := &fakeConn{id: id}
	r.Register(c)
	return c
}

func TestIdentify_DuplicatePrimaryIsRejected(t *testing.T) {
	r := New()
	first := register(r, "c1")
	register(r, "c2")

	require.NoError(t, r.Identify("c1", "alice", Primary))
	assert.ErrorIs(t, r.Identify("c2", "alice", Primary), ErrAlreadyPrimary)

	// The existing session was not evicted.
	assert.Same(t, first, r.Resolve("alice").Primary)
	_, _, ok := r.AccountOf("c2")
	assert.False(t, ok)
}

func TestIdentify_MonitorCoexistsWithPrimary(t *testing.T) {
	r := New()
	primary := register(r, "c1")
	monitor := register(r, "c2")

	require.NoError(t, r.Identify("c1", "alice", Primary))
	require.NoError(t, r.Identify("c2", "alice", Monitor))

	b := r.Resolve("alice")
	assert.Same(t, primary, b.Primary)
	assert.Same(t, monitor, b.Monitor)

	// A newer monitor takes over.
	newer := register(r, "c3")
	require.NoError(t, r.Identify("c3", "alice", Monitor))
	assert.Same(t, newer, r.Resolve("alice").Monitor)

	// Unregistering the replaced monitor must not clear the newer one.
	r.Unregister("c2")
	assert.Same(t, newer, r.Resolve("alice").Monitor)
}

func TestIdentify_AccountIsImmutable(t *testing.T) {
	r := New()
	register(r, "c1")

	require.NoError(t, r.Identify("c1", "alice", Primary))
	require.NoError(t, r.Identify("c1", "alice", Primary), "re-identifying as the same account is a no-op")
	assert.ErrorIs(t, r.Identify("c1", "bob", Primary), ErrAccountMismatch)

	account, role, ok := r.AccountOf("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", account)
	assert.Equal(t, Primary, role)
}

func TestIdentify_Errors(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Identify("missing", "alice", Primary), ErrNotRegistered)

	register(r, "c1")
	assert.ErrorIs(t, r.Identify("c1", "alice", Role("admin")), ErrInvalidRole)
}

func TestIdentify_RoleSwitchVacatesPrimary(t *testing.T) {
	r := New()
	register(r, "c1")
	require.NoError(t, r.Identify("c1", "alice", Primary))
	require.NoError(t, r.Identify("c1", "alice", Monitor))

	b := r.Resolve("alice")
	assert.Nil(t, b.Primary)
	assert.NotNil(t, b.Monitor)

	register(r, "c2")
	assert.NoError(t, r.Identify("c2", "alice", Primary))
}

func TestIdentify_ConcurrentPrimaryLogins(t *testing.T) {
	r := New()
	const attempts = 50
	for i := 0; i < attempts; i++ {
		register(r, fmt.Sprintf("c%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			if err := r.Identify(id, "alice", Primary); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(fmt.Sprintf("c%d", i))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{"alice"}, r.Online())
}

func TestUnregister(t *testing.T) {
	r := New()
	register(r, "c1")
	register(r, "c2")
	require.NoError(t, r.Identify("c1", "alice", Primary))
	require.NoError(t, r.Identify("c2", "alice", Monitor))

	r.Unregister("c1")
	b := r.Resolve("alice")
	assert.Nil(t, b.Primary)
	assert.NotNil(t, b.Monitor, "the monitor connection is unaffected")
	assert.Empty(t, r.Online())

	_, ok := r.Lookup("c1")
	assert.False(t, ok)

	// The account can log in again from a fresh connection.
	register(r, "c3")
	assert.NoError(t, r.Identify("c3", "alice", Primary))

	r.Unregister("c2")
	r.Unregister("c3")
	r.Unregister("c3")
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, Binding{}, r.Resolve("alice"))
}

func TestParseRole(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    Role
		wantErr error
	}{
		"default": {input: "", want: Primary},
		"primary": {input: "primary", want: Primary},
		"monitor": {input: "monitor", want: Monitor},
		"invalid": {input: "observer", wantErr: ErrInvalidRole},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}
}
