package ftpx

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithTimeout sets the timeout for control-channel round trips.
// Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithTransferTimeout sets the timeout for data-channel operations
// (waiting for the peer, and each socket read/write). Defaults to the
// control-channel timeout.
func WithTransferTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("transfer timeout must be positive")
		}
		c.transferTimeout = d
		return nil
	}
}

// WithBufferSize sets the chunk size announced for uploads. Defaults to
// proto.DefaultBufferSize (4096).
func WithBufferSize(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return fmt.Errorf("buffer size must be positive")
		}
		c.bufferSize = n
		return nil
	}
}

// WithTerminalWidth overrides the detected terminal width reported with
// list commands.
func WithTerminalWidth(w int) Option {
	return func(c *Client) error {
		if w <= 0 {
			return fmt.Errorf("terminal width must be positive")
		}
		c.termWidth = w
		return nil
	}
}

// WithProgress installs a callback observing data-channel transfers. It
// receives the running byte total after each chunk. Purely
// observational; it cannot affect the transfer.
//
// Example:
//
//	client, _ := ftpx.Dial(addr, ftpx.WithProgress(func(n int64) {
//	    fmt.Printf("\r%d bytes", n)
//	}))
func WithProgress(fn func(bytesTransferred int64)) Option {
	return func(c *Client) error {
		c.progress = fn
		return nil
	}
}

// WithLogger sets a logger for debug output. The default discards
// everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}
