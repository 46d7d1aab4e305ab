package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoBindAddr is returned when neither the preferred address nor any
// fallback can be bound.
var ErrNoBindAddr = errors.New("no available bind address")

// Listen binds preferred, or the first free fallback when autoFallback is
// set. The listener is returned open so the address cannot be taken between
// selection and serving.
func Listen(preferred string, fallbacks []string, autoFallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !autoFallback {
			return nil, fmt.Errorf("bind %s: %w", preferred, err)
		}
		slog.Warn("Preferred bind address unavailable", "addr", preferred, "error", err)
	}

	for _, addr := range fallbacks {
		if addr == preferred {
			continue
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			slog.Debug("Fallback bind address unavailable", "addr", addr, "error", err)
			continue
		}
		return ln, nil
	}
	return nil, ErrNoBindAddr
}
