// Package transport owns the physical bus boundary: send one raw frame,
// receive the next raw frame within a bounded wait, close. Implementations
// must tolerate concurrent send-while-receive.
package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ametov/acctl/internal/config"
	"github.com/ametov/acctl/internal/protocol/frame"
)

var (
	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport: closed")
	// ErrUnsupportedInterface is returned by Open for interface names with
	// no compiled-in adapter.
	ErrUnsupportedInterface = errors.New("transport: unsupported interface")
)

// Transport is a single shared bus handle, opened once per connection
// lifecycle.
type Transport interface {
	// Send transmits one frame. Safe to call while Receive is blocked.
	Send(f frame.Raw) error

	// Receive waits up to timeout for the next frame. ok=false with a nil
	// error means the wait timed out; a timeout <= 0 polls without blocking.
	Receive(timeout time.Duration) (f frame.Raw, ok bool, err error)

	Close() error
}

// Open dials the adapter selected by the bus config. The bitrate is passed
// to adapters that configure it themselves; socketcan interfaces carry their
// bitrate at the link level and ignore it.
func Open(bus config.BusConfig) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(bus.Interface)) {
	case "socketcan", "can":
		return dialSocketCAN(bus.Channel)
	case "loopback", "virtual":
		return LoopbackByName(bus.Channel).Endpoint(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInterface, bus.Interface)
	}
}
