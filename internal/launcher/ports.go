package launcher

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
)

var ErrNoFreePort = errors.New("no free port in range")

// PortPool hands out ports from an inclusive range. A port stays reserved from
// Acquire until Release, so two live game servers never share one.
type PortPool struct {
	min, max int
	probe    bool

	mu    sync.Mutex
	next  int
	inUse map[int]bool
}

// NewPortPool returns a pool over [min, max]. With probe set, each candidate is
// bound briefly before it's handed out and skipped if something else owns it.
func NewPortPool(min, max int, probe bool) (*PortPool, error) {
	if min <= 0 || max > 65535 || min > max {
		return nil, fmt.Errorf("invalid port range %d-%d", min, max)
	}
	return &PortPool{
		min:   min,
		max:   max,
		probe: probe,
		next:  min,
		inUse: make(map[int]bool),
	}, nil
}

// Acquire reserves the next free port, searching round-robin from just after
// the last port handed out.
func (p *PortPool) Acquire() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.max - p.min + 1
	for i := 0; i < size; i++ {
		port := p.next
		p.next++
		if p.next > p.max {
			p.next = p.min
		}

		if p.inUse[port] {
			continue
		}
		if p.probe && !portIsFree(port) {
			continue
		}
		p.inUse[port] = true
		return port, nil
	}
	return 0, fmt.Errorf("%w %d-%d", ErrNoFreePort, p.min, p.max)
}

// Release returns port to the pool. Releasing a port that isn't reserved is a no-op.
func (p *PortPool) Release(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inUse, port)
}

// Contains reports whether port is inside the pool's range.
func (p *PortPool) Contains(port int) bool {
	return port >= p.min && port <= p.max
}

// InUse returns the reserved ports in ascending order.
func (p *PortPool) InUse() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	ports := make([]int, 0, len(p.inUse))
	for port := range p.inUse {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

func portIsFree(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
