package transport

import (
	"sync"
	"time"

	"github.com/ametov/acctl/internal/protocol/frame"
)

// LoopbackBus is an in-memory CAN bus for tests and simulations. Every
// endpoint opened from the same bus receives frames sent by the others.
type LoopbackBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*loopEndpoint]struct{}
}

func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{endpoints: make(map[*loopEndpoint]struct{})}
}

var (
	loopMu     sync.Mutex
	loopByName = map[string]*LoopbackBus{}
)

// LoopbackByName returns the process-local shared bus for the given channel
// name, creating it on first use. Lets a simulator and a client opened from
// the same config meet on one bus.
func LoopbackByName(name string) *LoopbackBus {
	loopMu.Lock()
	defer loopMu.Unlock()
	bus, ok := loopByName[name]
	if !ok {
		bus = NewLoopbackBus()
		loopByName[name] = bus
	}
	return bus
}

// Endpoint attaches a new transport handle to the bus.
func (b *LoopbackBus) Endpoint() Transport {
	ep := &loopEndpoint{
		bus:    b,
		ch:     make(chan frame.Raw, 64),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ep.closed)
		return ep
	}
	b.endpoints[ep] = struct{}{}
	b.mu.Unlock()
	return ep
}

// Close closes the bus and detaches all endpoints.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		ep.closeNoLock()
	}
	b.endpoints = nil
	b.mu.Unlock()
	return nil
}

type loopEndpoint struct {
	bus    *LoopbackBus
	ch     chan frame.Raw
	mu     sync.Mutex
	dead   bool
	closed chan struct{}
}

// Send broadcasts the frame to all other endpoints on the same bus.
func (e *loopEndpoint) Send(f frame.Raw) error {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()

	// Snapshot targets under the bus lock; deliver without holding it.
	e.bus.mu.RLock()
	if e.bus.closed {
		e.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*loopEndpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.bus.mu.RUnlock()

	for _, t := range targets {
		select {
		case t.ch <- f:
		case <-t.closed:
		}
	}
	return nil
}

// Receive waits up to timeout for the next frame; timeout <= 0 polls.
// Shutdown is signaled through e.closed; e.ch itself is never closed so
// concurrent Sends targeting this endpoint stay safe during Close.
func (e *loopEndpoint) Receive(timeout time.Duration) (frame.Raw, bool, error) {
	if timeout <= 0 {
		select {
		case f := <-e.ch:
			return f, true, nil
		case <-e.closed:
			return frame.Raw{}, false, ErrClosed
		default:
			return frame.Raw{}, false, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-e.ch:
		return f, true, nil
	case <-e.closed:
		return frame.Raw{}, false, ErrClosed
	case <-timer.C:
		return frame.Raw{}, false, nil
	}
}

// Close detaches the endpoint from the bus and closes its channel.
func (e *loopEndpoint) Close() error {
	e.bus.mu.Lock()
	e.closeNoLock()
	e.bus.mu.Unlock()
	return nil
}

func (e *loopEndpoint) closeNoLock() {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return
	}
	e.dead = true
	close(e.closed)
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	e.mu.Unlock()
}
