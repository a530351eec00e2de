// Package server implements the ftpx server: a listening control socket,
// one session goroutine per connection, a command dispatcher enforcing
// the authenticated-session state machine, a per-user path sandbox, and
// the sender/receiver ends of the data channel.
//
// Lifecycle:
//  1. Create with NewServer() — a UserStore is required
//  2. Start with ListenAndServe() or Serve()
//  3. Stop with Shutdown(), which closes the listener and all sessions
//
// Basic example:
//
//	store, _ := sqlstore.Open("users.db")
//	s, err := server.NewServer(":8021", server.WithStore(store))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehsanmg/ftpx/proto"
	"github.com/ehsanmg/ftpx/xfer"
)

// ErrServerClosed is returned by Serve and ListenAndServe after a call
// to Shutdown.
var ErrServerClosed = errors.New("ftpx: server closed")

// Server is the ftpx protocol server.
type Server struct {
	addr string

	// store backs authentication and session persistence.
	store UserStore

	// auth issues and validates session tokens.
	auth *authGateway

	logger *slog.Logger

	// tokenTTL is the sliding expiry window for auth tokens.
	tokenTTL time.Duration

	// bufferSize is the data-channel chunk size.
	bufferSize int

	// transferTimeout bounds data-channel accepts, dials and socket ops.
	transferTimeout time.Duration

	// maxIdleTime closes control connections idle between commands.
	maxIdleTime time.Duration

	// maxConnections caps simultaneous sessions; 0 means unlimited.
	maxConnections int

	// bandwidthLimit paces transfers in bytes/second; 0 means unpaced.
	bandwidthLimit int64

	metricsCollector MetricsCollector

	activeConns atomic.Int32

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	inShutdown atomic.Bool
}

// NewServer creates a server for the given address and options. The
// address is in the form ":port" or "host:port". A UserStore must be
// provided via WithStore.
//
// Defaults:
//   - Logger: slog.Default()
//   - TokenTTL: 15 minutes, sliding
//   - BufferSize: 4096 bytes
//   - TransferTimeout: 30 seconds
//   - MaxIdleTime: 5 minutes
//   - MaxConnections: 0 (unlimited)
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:            addr,
		logger:          slog.Default(),
		tokenTTL:        DefaultTokenTTL,
		bufferSize:      proto.DefaultBufferSize,
		transferTimeout: xfer.DefaultTimeout,
		maxIdleTime:     5 * time.Minute,
		conns:           make(map[net.Conn]struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("store is required (use WithStore option)")
	}

	auth, err := newAuthGateway(s.store, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	s.auth = auth

	return s, nil
}

// ListenAndServe starts the server on the configured address and blocks
// until the server stops or an error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("ftpx server listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// Serve accepts incoming connections on l, handling each in its own
// goroutine. It blocks until the listener is closed or Shutdown is
// called. The accept loop never blocks on a single session's work.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// Shutdown stops the server: it closes the listener and all active
// control connections.
func (s *Server) Shutdown() error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := s.conns
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for conn := range conns {
		conn.Close()
	}
	return err
}

func (s *Server) handleConnection(conn net.Conn) {
	if s.maxConnections > 0 && int(s.activeConns.Load()) >= s.maxConnections {
		if s.metricsCollector != nil {
			s.metricsCollector.RecordConnection(false, "limit_reached")
		}
		// Best effort; the peer may already be gone.
		_ = proto.WriteResponse(conn, &proto.Response{
			Accept: false,
			Status: proto.StatusServiceNotAvailable,
		})
		conn.Close()
		return
	}

	if !s.trackConnection(conn, true) {
		conn.Close()
		return
	}
	s.activeConns.Add(1)
	defer func() {
		s.activeConns.Add(-1)
		s.trackConnection(conn, false)
	}()

	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(true, "accepted")
	}

	newSession(s, conn).serve()
}

// trackConnection returns false if the server is shutting down.
func (s *Server) trackConnection(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inShutdown.Load() {
		conn.Close()
		return false
	}

	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
	return true
}
