package xfer

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ehsanmg/ftpx/internal/ratelimit"
	"github.com/ehsanmg/ftpx/proto"
)

// eofMarker terminates the byte stream on the data channel. It is written
// after the final payload chunk; the receiver uses the announced file size
// to tell payload bytes that happen to spell "EOF" from the marker itself.
var eofMarker = []byte("EOF")

const (
	// maxPortAttempts bounds the search for a free ephemeral port.
	maxPortAttempts = 100

	// DefaultTimeout applies to the data-channel accept and dial when the
	// caller does not set Config.Timeout. It keeps a session goroutine
	// from blocking forever on a peer that never shows up.
	DefaultTimeout = 30 * time.Second
)

// ErrBindExhausted is returned when no ephemeral port could be bound
// within the attempt budget. Callers report it as a local processing
// error, not a transfer failure.
var ErrBindExhausted = errors.New("xfer: could not bind an ephemeral port")

// ErrPeerTimeout is returned when the peer does not connect to the
// announced port within the configured timeout.
var ErrPeerTimeout = errors.New("xfer: peer did not connect in time")

// Config tunes one transfer. The zero value is usable.
type Config struct {
	// Timeout bounds the accept (sender) or dial (receiver) and each
	// socket operation. Zero selects DefaultTimeout.
	Timeout time.Duration

	// Progress, if non-nil, is called with the running byte total after
	// each chunk. Purely observational; errors in user callbacks cannot
	// affect the transfer.
	Progress func(bytesTransferred int64)

	// Limiter optionally paces the stream.
	Limiter *ratelimit.Limiter
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Sender owns the listening side of a data channel. Create one with
// NewSender, announce Descriptor() to the peer over the control channel,
// then call Send, which blocks until the file has been streamed or the
// transfer fails. Close releases the port if Send is never reached.
type Sender struct {
	ln   net.Listener
	path string
	desc proto.TransferDescriptor
}

// NewSender computes the transfer descriptor for path and binds an unused
// port on localIP. Ports are drawn at random from the non-privileged
// range, retrying up to a bounded attempt count; exhaustion yields
// ErrBindExhausted.
func NewSender(localIP, path string, bufferSize int) (*Sender, error) {
	desc, err := Describe(path, bufferSize)
	if err != nil {
		return nil, err
	}

	var ln net.Listener
	for attempt := 0; attempt < maxPortAttempts; attempt++ {
		port := 1024 + rand.Intn(65536-1024)
		ln, err = net.Listen("tcp", net.JoinHostPort(localIP, strconv.Itoa(port)))
		if err == nil {
			break
		}
		ln = nil
	}
	if ln == nil {
		return nil, fmt.Errorf("%w after %d attempts", ErrBindExhausted, maxPortAttempts)
	}

	desc.TransmitPort = ln.Addr().(*net.TCPAddr).Port
	return &Sender{ln: ln, path: path, desc: desc}, nil
}

// Descriptor returns the announced transfer metadata, including the bound
// port.
func (s *Sender) Descriptor() proto.TransferDescriptor { return s.desc }

// Port returns the bound ephemeral port.
func (s *Sender) Port() int { return s.desc.TransmitPort }

// Close releases the listening socket. Send closes it itself; Close is
// for the error paths where Send never runs.
func (s *Sender) Close() error { return s.ln.Close() }

// Send accepts exactly one inbound connection, streams the file in
// fixed-size chunks, writes the sentinel end marker, and closes both
// sockets. It blocks until the transfer completes or fails.
func (s *Sender) Send(cfg Config) error {
	defer s.ln.Close()

	type deadliner interface{ SetDeadline(time.Time) error }
	if d, ok := s.ln.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(cfg.timeout()))
	}

	conn, err := s.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return ErrPeerTimeout
		}
		return fmt.Errorf("xfer: accept: %w", err)
	}
	defer conn.Close()

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("xfer: open: %w", err)
	}
	defer f.Close()

	_ = conn.SetDeadline(time.Now().Add(cfg.timeout()))

	var w io.Writer = ratelimit.NewWriter(conn, cfg.Limiter)
	if cfg.Progress != nil {
		w = &progressWriter{w: w, callback: cfg.Progress}
	}

	buf := make([]byte, s.desc.BufferSize)
	var sent int64
	for sent < s.desc.FileSize {
		n, err := f.Read(buf)
		if n > 0 {
			// Refresh the deadline per chunk so slow links on large
			// files are not cut off mid-stream.
			_ = conn.SetDeadline(time.Now().Add(cfg.timeout()))
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("xfer: send: %w", werr)
			}
			sent += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("xfer: read: %w", err)
		}
	}

	if _, err := conn.Write(eofMarker); err != nil {
		return fmt.Errorf("xfer: send end marker: %w", err)
	}
	return nil
}

// progressWriter reports the running total after each write.
type progressWriter struct {
	w        io.Writer
	callback func(int64)
	total    int64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.total += int64(n)
	if n > 0 {
		pw.callback(pw.total)
	}
	return n, err
}
