package server

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Server.
type Option func(*Server) error

// WithStore sets the user/session store. This option is required.
//
// Example:
//
//	store, _ := sqlstore.Open("users.db")
//	s, _ := server.NewServer(":8021", server.WithStore(store))
func WithStore(store UserStore) Option {
	return func(s *Server) error {
		if s.store != nil {
			return fmt.Errorf("store already set")
		}
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger. If not specified, slog.Default() is
// used.
//
// Example with debug logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":8021",
//	    server.WithStore(store),
//	    server.WithLogger(logger),
//	)
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithTokenTTL sets the auth token expiry window. Tokens use sliding
// renewal: each validated use refreshes the window. Defaults to
// DefaultTokenTTL (15 minutes).
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) error {
		if ttl <= 0 {
			return fmt.Errorf("token TTL must be positive")
		}
		s.tokenTTL = ttl
		return nil
	}
}

// WithBufferSize sets the data-channel chunk size in bytes. Defaults to
// proto.DefaultBufferSize (4096).
func WithBufferSize(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("buffer size must be positive")
		}
		s.bufferSize = n
		return nil
	}
}

// WithTransferTimeout bounds the wait for a peer on the data channel
// (the ephemeral-port accept for downloads, the dial for uploads) and
// each data-socket operation. Defaults to xfer.DefaultTimeout.
func WithTransferTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("transfer timeout must be positive")
		}
		s.transferTimeout = d
		return nil
	}
}

// WithMaxIdleTime sets how long a control connection may sit idle
// between commands before being closed. Defaults to 5 minutes.
func WithMaxIdleTime(d time.Duration) Option {
	return func(s *Server) error {
		s.maxIdleTime = d
		return nil
	}
}

// WithMaxConnections sets the maximum number of simultaneous control
// connections. If 0 (the default), there is no limit. Connections over
// the limit receive a 421 response and are closed.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		s.maxConnections = max
		return nil
	}
}

// WithMetricsCollector sets an optional metrics hook.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = mc
		return nil
	}
}

// WithBandwidthLimit caps each transfer's throughput in bytes per second.
// If 0 (the default), transfers are unpaced.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("bandwidth limit must not be negative")
		}
		s.bandwidthLimit = bytesPerSecond
		return nil
	}
}
