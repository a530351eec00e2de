package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ehsanmg/ftpx/proto"
)

// session is the per-connection state. It is owned by exactly one
// goroutine: command handling within a session is strictly sequential,
// including any data-channel round-trip, so none of these fields need
// locking.
type session struct {
	server *Server
	conn   net.Conn

	sessionID string
	remoteIP  string // for logs and data-channel dials
	peerAddr  string // full ip:port, bound into the auth token

	// Authenticated-session state. user is nil until login succeeds.
	authenticated bool
	token         string
	user          *User
	currentDir    string
}

// generateSessionID returns a unique 8-character id for log correlation.
func generateSessionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%08x", b)
}

func newSession(server *Server, conn net.Conn) *session {
	peerAddr := conn.RemoteAddr().String()
	remoteIP, _, err := net.SplitHostPort(peerAddr)
	if err != nil {
		remoteIP = peerAddr
	}

	return &session{
		server:    server,
		conn:      conn,
		sessionID: generateSessionID(),
		remoteIP:  remoteIP,
		peerAddr:  peerAddr,
	}
}

// serve runs the session loop: read one framed request, dispatch it to
// completion (including any data-channel transfer), answer, repeat.
// It returns when the peer disconnects, quits, or a fatal read/write
// error occurs; the connection closes on the way out.
func (s *session) serve() {
	defer s.close()

	s.server.logger.Info("session_started",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
	)

	for {
		if s.server.maxIdleTime > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.maxIdleTime))
		}

		req, err := proto.ReadRequest(s.conn)
		if err != nil {
			var malformed *proto.MalformedEnvelopeError
			if errors.As(err, &malformed) {
				// Protocol error, not connection-fatal: answer and
				// keep the session alive.
				s.reply(&proto.Response{Accept: false, Status: proto.StatusSyntaxError})
				continue
			}
			if err != io.EOF {
				s.server.logger.Warn("read error",
					"session_id", s.sessionID,
					"remote_ip", s.remoteIP,
					"error", err,
				)
			}
			return
		}

		_ = s.conn.SetReadDeadline(time.Time{})

		if req.Command == proto.CmdQuit {
			// Teardown is the response.
			return
		}

		s.dispatch(req)
	}
}

func (s *session) close() {
	s.conn.Close()

	user := ""
	if s.user != nil {
		user = s.user.Username
	}
	s.server.logger.Info("session_closed",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", user,
	)
}

// reply writes one framed response envelope. Write failures end the
// session on the next read, so they are only logged here.
func (s *session) reply(resp *proto.Response) {
	if err := proto.WriteResponse(s.conn, resp); err != nil {
		s.server.logger.Warn("write error",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"error", err,
		)
	}
}

func (s *session) replyStatus(accept bool, status proto.Status) {
	s.reply(&proto.Response{Accept: accept, Status: status})
}

// replyError reports a failure with a descriptive payload.
func (s *session) replyError(status proto.Status, msg string) {
	s.reply(&proto.Response{
		Accept: false,
		Status: status,
		Data:   proto.Payload(msg),
	})
}
