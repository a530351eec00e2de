package ftpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/ehsanmg/ftpx/proto"
)

// Client is an ftpx control-channel connection.
//
// A Client is safe for use from multiple goroutines, but commands are
// serialized: the protocol allows one in-flight command per session.
type Client struct {
	// conn is the control channel.
	conn net.Conn

	// host is the server host, used to dial data channels for downloads.
	host string

	// timeout bounds each control-channel round trip.
	timeout time.Duration

	// transferTimeout bounds data-channel accepts/dials and socket ops.
	transferTimeout time.Duration

	// bufferSize is the data-channel chunk size announced on uploads.
	bufferSize int

	// termWidth is reported with list commands so the server can size
	// the column listing.
	termWidth int

	// progress, if set, observes data-channel transfers.
	progress func(bytesTransferred int64)

	logger *slog.Logger

	mu sync.Mutex

	// Session state, maintained from server responses.
	token      string
	accessRoot string
	currentDir string
}

// Dial connects to an ftpx server at addr ("host:port").
//
// Example:
//
//	client, err := ftpx.Dial("localhost:8021", ftpx.WithTimeout(10*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
func Dial(addr string, options ...Option) (*Client, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	c := &Client{
		host:       host,
		timeout:    30 * time.Second,
		bufferSize: proto.DefaultBufferSize,
		termWidth:  detectTerminalWidth(),
		logger:     slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1})),
	}
	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.transferTimeout == 0 {
		c.transferTimeout = c.timeout
	}

	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn
	return c, nil
}

// detectTerminalWidth reads the width of the attached terminal, falling
// back to 80 columns when stdout is not a terminal.
func detectTerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// roundTrip sends one request envelope and reads one response envelope.
func (c *Client) roundTrip(cmd proto.Command, args proto.Args, data json.RawMessage) (*proto.Response, error) {
	req := &proto.Request{
		AuthToken:  c.token,
		Command:    cmd,
		Args:       args,
		CurrentDir: c.currentDir,
		Data:       data,
	}

	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	c.logger.Debug("request", "command", cmd.String(), "args", []string(args))

	if err := proto.WriteRequest(c.conn, req); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd, err)
	}
	resp, err := proto.ReadResponse(c.conn)
	if err != nil {
		return nil, fmt.Errorf("receive %s response: %w", cmd, err)
	}
	return resp, nil
}

// readResponse reads one more framed response, used for the second
// response of an upload exchange.
func (c *Client) readResponse(cmd proto.Command) (*proto.Response, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	resp, err := proto.ReadResponse(c.conn)
	if err != nil {
		return nil, fmt.Errorf("receive %s response: %w", cmd, err)
	}
	return resp, nil
}

// check converts a rejected response into a ProtocolError.
func check(cmd proto.Command, resp *proto.Response) error {
	if resp.Accept {
		return nil
	}
	perr := &ProtocolError{Command: cmd.String(), Status: resp.Status}
	if len(resp.Data) > 0 {
		var detail string
		if json.Unmarshal(resp.Data, &detail) == nil {
			perr.Detail = detail
		}
	}
	return perr
}

// Login authenticates the session. On success the client adopts the
// issued auth token and the account's access root as its working
// directory.
//
// Logging in again (as any user) replaces the session's token; the
// server invalidates the user's previous token at the same time.
func (c *Client) Login(username, password string) error {
	if strings.Contains(username, "@") {
		return fmt.Errorf("username must not contain '@'")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(proto.CmdLogin, proto.Args{username + "@" + password}, nil)
	if err != nil {
		return err
	}
	if err := check(proto.CmdLogin, resp); err != nil {
		return err
	}

	var lr proto.LoginResponse
	if err := json.Unmarshal(resp.Data, &lr); err != nil {
		return fmt.Errorf("login response payload: %w", err)
	}
	c.token = lr.AuthToken
	c.accessRoot = lr.AccessPath
	c.currentDir = lr.AccessPath

	c.logger.Info("logged_in", "user", username, "access_root", lr.AccessPath)
	return nil
}

// Token returns the session's auth token, empty before login.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// CurrentDir returns the session's working directory as last confirmed
// by the server.
func (c *Client) CurrentDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentDir
}

// Quit announces the session end and closes the control connection. The
// server answers quit with a plain teardown, so no response is read.
func (c *Client) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	_ = proto.WriteRequest(c.conn, &proto.Request{
		AuthToken:  c.token,
		Command:    proto.CmdQuit,
		CurrentDir: c.currentDir,
	})
	return c.conn.Close()
}
