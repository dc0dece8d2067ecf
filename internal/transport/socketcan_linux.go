//go:build linux

package transport

import (
	"context"
	"errors"
	"time"

	"github.com/notnil/canbus/canbus"

	"github.com/ametov/acctl/internal/protocol/frame"
)

// socketCAN adapts a Linux SocketCAN socket to the Transport contract. The
// interface bitrate is configured at the link level (ip link), not here.
type socketCAN struct {
	bus canbus.Bus
}

func dialSocketCAN(channel string) (Transport, error) {
	if channel == "" {
		channel = "can0"
	}
	bus, err := canbus.DialSocketCAN(channel)
	if err != nil {
		return nil, err
	}
	return &socketCAN{bus: bus}, nil
}

func (s *socketCAN) Send(f frame.Raw) error {
	cf := canbus.Frame{
		ID:       f.ID,
		Extended: f.Extended,
		Len:      uint8(len(f.Data)),
	}
	copy(cf.Data[:], f.Data)
	if err := s.bus.Send(context.Background(), cf); err != nil {
		if errors.Is(err, canbus.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (s *socketCAN) Receive(timeout time.Duration) (frame.Raw, bool, error) {
	if timeout <= 0 {
		timeout = time.Nanosecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cf, err := s.bus.Receive(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return frame.Raw{}, false, nil
		case errors.Is(err, canbus.ErrClosed):
			return frame.Raw{}, false, ErrClosed
		default:
			return frame.Raw{}, false, err
		}
	}
	data := make([]byte, cf.Len)
	copy(data, cf.Data[:cf.Len])
	return frame.Raw{ID: cf.ID, Extended: cf.Extended, Data: data}, true, nil
}

func (s *socketCAN) Close() error {
	return s.bus.Close()
}
