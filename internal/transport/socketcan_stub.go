//go:build !linux

package transport

import "fmt"

func dialSocketCAN(channel string) (Transport, error) {
	return nil, fmt.Errorf("%w: socketcan requires linux", ErrUnsupportedInterface)
}
