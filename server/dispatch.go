package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ehsanmg/ftpx/internal/ratelimit"
	"github.com/ehsanmg/ftpx/proto"
	"github.com/ehsanmg/ftpx/xfer"
)

// dispatch runs one command to completion and sends its response(s).
// The protocol state machine lives here: login is valid in any state,
// everything else requires a validated token. A panic or unclassified
// error inside a handler becomes a local-processing-error response, so
// no request goes unanswered.
func (s *session) dispatch(req *proto.Request) {
	start := time.Now()
	success := false

	defer func() {
		if r := recover(); r != nil {
			s.server.logger.Error("handler panic",
				"session_id", s.sessionID,
				"command", req.Command.String(),
				"panic", fmt.Sprint(r),
			)
			s.replyError(proto.StatusLocalError, fmt.Sprint(r))
		}
		if s.server.metricsCollector != nil {
			s.server.metricsCollector.RecordCommand(req.Command.String(), success, time.Since(start))
		}
	}()

	s.server.logger.Debug("command_received",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"command", req.Command.String(),
	)

	if req.Command == proto.CmdLogin {
		success = s.handleLogin(req)
		return
	}

	// Authentication precondition: every other command revalidates the
	// envelope token. Sliding expiry means this also renews the window.
	user, err := s.server.auth.validate(req.AuthToken)
	if err != nil {
		if !errors.Is(err, errTokenInvalid) {
			s.server.logger.Error("token validation failed",
				"session_id", s.sessionID,
				"error", err,
			)
		}
		s.authenticated = false
		s.replyStatus(false, proto.StatusNotLoggedIn)
		return
	}
	root, err := filepath.EvalSymlinks(user.AccessPath)
	if err != nil {
		s.replyError(proto.StatusLocalError, fmt.Sprintf("access root: %v", err))
		return
	}
	user.AccessPath = root

	s.authenticated = true
	s.token = req.AuthToken
	s.user = user

	// The client tracks its own working directory and echoes it in every
	// request. It must be present and must not point outside the jail.
	// Containment is checked on the physical path: a symlink inside the
	// jail pointing outside must not smuggle the working directory out.
	if req.CurrentDir == "" {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return
	}
	cwd, err := canonicalize(filepath.Clean(req.CurrentDir))
	if err != nil {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return
	}
	if !withinRoot(cwd, user.AccessPath) {
		s.server.logger.Warn("sandbox_escape_rejected",
			"session_id", s.sessionID,
			"user", user.Username,
			"raw_path", req.CurrentDir,
		)
		s.replyStatus(false, proto.StatusPermissionDenied)
		return
	}
	s.currentDir = cwd

	switch req.Command {
	case proto.CmdCd:
		success = s.handleCd(req)
	case proto.CmdPwd:
		success = s.handlePwd(req)
	case proto.CmdList:
		success = s.handleList(req)
	case proto.CmdMkdir:
		success = s.handleMkdir(req)
	case proto.CmdRmdir:
		success = s.handleRmdir(req)
	case proto.CmdRm:
		success = s.handleRm(req)
	case proto.CmdRename:
		success = s.handleRename(req)
	case proto.CmdUpload:
		success = s.handleUpload(req)
	case proto.CmdDownload:
		success = s.handleDownload(req)
	default:
		// help and resume are recognized codes with no server-side
		// implementation, same as any unmapped command.
		s.replyStatus(false, proto.StatusCommandNotImpl)
	}
}

// statusForFSError maps filesystem errors to their dedicated status
// codes. Anything unclassified is a local processing error.
func statusForFSError(err error) proto.Status {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return proto.StatusFileUnavailable
	case errors.Is(err, fs.ErrPermission):
		return proto.StatusPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return proto.StatusFileExists
	default:
		return proto.StatusLocalError
	}
}

// replyFSError sends the mapped status for err, attaching the error text
// only for local processing errors.
func (s *session) replyFSError(err error) {
	status := statusForFSError(err)
	if status == proto.StatusLocalError {
		s.replyError(status, err.Error())
		return
	}
	s.replyStatus(false, status)
}

// resolveArg resolves one user-supplied path and answers on failure.
// The boolean reports whether the caller may proceed.
func (s *session) resolveArg(raw string) (string, bool) {
	path, err := resolvePath(raw, s.currentDir, s.user.AccessPath)
	if err != nil {
		if errors.Is(err, errOutsideRoot) {
			s.server.logger.Warn("sandbox_escape_rejected",
				"session_id", s.sessionID,
				"user", s.user.Username,
				"raw_path", raw,
			)
			s.replyStatus(false, proto.StatusPermissionDenied)
		} else {
			s.replyStatus(false, proto.StatusSyntaxErrorParams)
		}
		return "", false
	}
	return path, true
}

// requirePerm answers with PermissionDenied when the flag is unset.
func (s *session) requirePerm(ok bool) bool {
	if !ok {
		s.replyStatus(false, proto.StatusPermissionDenied)
	}
	return ok
}

func (s *session) handleLogin(req *proto.Request) bool {
	if len(req.Args) < 1 {
		s.replyStatus(false, proto.StatusSyntaxError)
		return false
	}
	// Credential argument is "username@password", exactly one separator.
	parts := strings.Split(req.Args[0], "@")
	if len(parts) != 2 || parts[0] == "" {
		s.replyStatus(false, proto.StatusSyntaxError)
		return false
	}
	username, password := parts[0], parts[1]

	token, user, err := s.server.auth.login(username, password, s.peerAddr)
	if err == nil {
		// The access root is the jail boundary for everything that
		// follows; canonicalize it once so containment checks compare
		// physical paths.
		var root string
		if root, err = filepath.EvalSymlinks(user.AccessPath); err == nil {
			user.AccessPath = root
		} else {
			err = fmt.Errorf("access root: %w", err)
		}
	}
	if err != nil {
		s.server.logger.Warn("authentication_failed",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", username,
			"reason", err.Error(),
		)
		if s.server.metricsCollector != nil {
			s.server.metricsCollector.RecordAuthentication(false, username)
		}
		if errors.Is(err, errInvalidCredentials) {
			s.replyStatus(false, proto.StatusNotLoggedIn)
		} else {
			s.replyError(proto.StatusLocalError, err.Error())
		}
		return false
	}

	s.authenticated = true
	s.token = token
	s.user = user
	s.currentDir = user.AccessPath

	s.server.logger.Info("authentication_success",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", username,
	)
	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordAuthentication(true, username)
	}

	s.reply(&proto.Response{
		Accept: true,
		Status: proto.StatusUserLoggedIn,
		Data: proto.Payload(proto.LoginResponse{
			AccessPath: user.AccessPath,
			AuthToken:  token,
		}),
	})
	return true
}

func (s *session) handleCd(req *proto.Request) bool {
	raw := s.currentDir
	if len(req.Args) > 0 {
		raw = req.Args[0]
	}
	path, ok := s.resolveArg(raw)
	if !ok {
		return false
	}
	if !pathIsDir(path) {
		s.replyStatus(false, proto.StatusPathNotDirectory)
		return false
	}

	s.currentDir = path
	s.reply(&proto.Response{
		Accept: true,
		Status: proto.StatusChangeDirectoryAccepted,
		Data:   proto.Payload(proto.CdResponse{CurrentDirectory: path}),
	})
	return true
}

func (s *session) handlePwd(req *proto.Request) bool {
	s.reply(&proto.Response{
		Accept: true,
		Status: proto.StatusCommandOK,
		Data:   proto.Payload(proto.PwdResponse{DirectoryPath: s.currentDir}),
	})
	return true
}

func (s *session) handleList(req *proto.Request) bool {
	if !s.requirePerm(s.user.Perms.Read) {
		return false
	}

	raw := s.currentDir
	if len(req.Args) > 0 && req.Args[0] != "" {
		raw = req.Args[0]
	}
	path, ok := s.resolveArg(raw)
	if !ok {
		return false
	}
	if !pathIsDir(path) {
		s.replyStatus(false, proto.StatusPathNotDirectory)
		return false
	}

	width := 80
	var lr proto.ListRequest
	if len(req.Data) > 0 && json.Unmarshal(req.Data, &lr) == nil && lr.TerminalWidth > 0 {
		width = lr.TerminalWidth
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.replyFSError(err)
		return false
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)

	s.reply(&proto.Response{
		Accept: true,
		Status: proto.StatusCommandOK,
		Data:   proto.Payload(formatColumns(names, width)),
	})
	return true
}

// formatColumns lays names out in columns sized to the widest entry,
// fitted to the client's reported terminal width. Widths count runes,
// not bytes, so multibyte names keep the columns aligned.
func formatColumns(names []string, width int) string {
	if len(names) == 0 {
		return ""
	}

	maxLen := 0
	for _, name := range names {
		if n := utf8.RuneCountInString(name); n > maxLen {
			maxLen = n
		}
	}
	cols := width / (maxLen + 2)
	if cols < 1 {
		cols = 1
	}

	var b strings.Builder
	for i, name := range names {
		b.WriteString(name)
		for pad := maxLen - utf8.RuneCountInString(name) + 2; pad > 0; pad-- {
			b.WriteByte(' ')
		}
		if (i+1)%cols == 0 {
			b.WriteByte('\n')
		}
	}
	if len(names)%cols != 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *session) handleMkdir(req *proto.Request) bool {
	if !s.requirePerm(s.user.Perms.Write) {
		return false
	}
	if len(req.Args) < 1 {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return false
	}
	path, ok := s.resolveArg(req.Args[0])
	if !ok {
		return false
	}
	if pathExists(path) {
		s.replyStatus(false, proto.StatusFileExists)
		return false
	}

	// Multi-segment arguments create intermediate directories.
	var err error
	if strings.ContainsRune(req.Args[0], '/') {
		err = os.MkdirAll(path, 0o755)
	} else {
		err = os.Mkdir(path, 0o755)
	}
	if err != nil {
		s.replyFSError(err)
		return false
	}

	s.replyStatus(true, proto.StatusCommandOK)
	return true
}

func (s *session) handleRmdir(req *proto.Request) bool {
	if !s.requirePerm(s.user.Perms.Write) {
		return false
	}
	if len(req.Args) < 1 {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return false
	}
	path, ok := s.resolveArg(req.Args[0])
	if !ok {
		return false
	}
	if !pathIsDir(path) {
		s.replyStatus(false, proto.StatusPathNotDirectory)
		return false
	}
	if path == s.user.AccessPath {
		// Never let a user remove their own jail.
		s.replyStatus(false, proto.StatusPermissionDenied)
		return false
	}

	var rr proto.RmdirRequest
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &rr); err != nil {
			s.replyStatus(false, proto.StatusSyntaxErrorParams)
			return false
		}
	}

	var err error
	if rr.Method == "r" {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		s.replyFSError(err)
		return false
	}

	s.replyStatus(true, proto.StatusCommandOK)
	return true
}

func (s *session) handleRm(req *proto.Request) bool {
	if !s.requirePerm(s.user.Perms.Write) {
		return false
	}
	if len(req.Args) < 1 {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return false
	}
	path, ok := s.resolveArg(req.Args[0])
	if !ok {
		return false
	}
	if !pathIsFile(path) {
		s.replyStatus(false, proto.StatusFileUnavailable)
		return false
	}
	if err := os.Remove(path); err != nil {
		s.replyFSError(err)
		return false
	}

	s.replyStatus(true, proto.StatusCommandOK)
	return true
}

func (s *session) handleRename(req *proto.Request) bool {
	if !s.requirePerm(s.user.Perms.Write) {
		return false
	}
	if len(req.Args) < 2 {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return false
	}
	oldPath, ok := s.resolveArg(req.Args[0])
	if !ok {
		return false
	}
	newPath, ok := s.resolveArg(req.Args[1])
	if !ok {
		return false
	}
	if !pathExists(oldPath) {
		s.replyStatus(false, proto.StatusFileUnavailable)
		return false
	}
	if pathExists(newPath) {
		s.replyStatus(false, proto.StatusFileExists)
		return false
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		s.replyFSError(err)
		return false
	}

	s.replyStatus(true, proto.StatusCommandOK)
	return true
}

// handleDownload plays the sender role: announce a descriptor with the
// bound ephemeral port, then stream the file. The single response is the
// descriptor; the client judges the transfer by the digest.
func (s *session) handleDownload(req *proto.Request) bool {
	if !s.requirePerm(s.user.Perms.Read) {
		return false
	}
	if len(req.Args) < 1 {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return false
	}
	path, ok := s.resolveArg(req.Args[0])
	if !ok {
		return false
	}
	if !pathIsFile(path) {
		s.replyStatus(false, proto.StatusFileUnavailable)
		return false
	}

	localIP, _, err := net.SplitHostPort(s.conn.LocalAddr().String())
	if err != nil {
		s.replyError(proto.StatusLocalError, err.Error())
		return false
	}

	sender, err := xfer.NewSender(localIP, path, s.server.bufferSize)
	if err != nil {
		s.replyFSError(err) // bind exhaustion falls through to 451
		return false
	}

	s.reply(&proto.Response{
		Accept: true,
		Status: proto.StatusCommandOK,
		Data:   proto.Payload(sender.Descriptor()),
	})

	desc := sender.Descriptor()
	start := time.Now()
	if err := sender.Send(xfer.Config{
		Timeout: s.server.transferTimeout,
		Limiter: ratelimit.New(s.server.bandwidthLimit),
	}); err != nil {
		// The descriptor response is already out; the client sees the
		// failure on the data channel or via the digest.
		s.server.logger.Warn("download failed",
			"session_id", s.sessionID,
			"user", s.user.Username,
			"file", path,
			"error", err,
		)
		return false
	}

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer("download", desc.FileSize, time.Since(start))
	}
	s.server.logger.Info("download_complete",
		"session_id", s.sessionID,
		"user", s.user.Username,
		"file", path,
		"bytes", desc.FileSize,
	)
	return true
}

// handleUpload plays the receiver role: accept the client's descriptor,
// acknowledge, dial the client's announced port, then report the
// transfer outcome in a second response.
func (s *session) handleUpload(req *proto.Request) bool {
	if !s.requirePerm(s.user.Perms.Write) {
		return false
	}

	var desc proto.TransferDescriptor
	if len(req.Data) == 0 || json.Unmarshal(req.Data, &desc) != nil || desc.TransmitPort == 0 {
		s.replyStatus(false, proto.StatusSyntaxErrorParams)
		return false
	}

	destDir := s.currentDir
	if len(req.Args) > 1 && req.Args[1] != "" {
		dir, ok := s.resolveArg(req.Args[1])
		if !ok {
			return false
		}
		if !pathIsDir(dir) {
			s.replyStatus(false, proto.StatusPathNotDirectory)
			return false
		}
		destDir = dir
	}

	// Only the basename of the announced path matters; the sender's
	// directory layout is its own business.
	name := filepath.Base(filepath.ToSlash(desc.FilePath))
	if name == "." || name == "/" || name == "" {
		s.replyStatus(false, proto.StatusFileNameNotAllowed)
		return false
	}
	destPath := filepath.Join(destDir, name)

	s.replyStatus(true, proto.StatusCommandOK)

	start := time.Now()
	err := xfer.Receive(s.remoteIP, desc, destPath, xfer.Config{
		Timeout: s.server.transferTimeout,
		Limiter: ratelimit.New(s.server.bandwidthLimit),
	})
	if err != nil {
		s.server.logger.Warn("upload failed",
			"session_id", s.sessionID,
			"user", s.user.Username,
			"file", name,
			"error", err,
		)
		s.replyStatus(false, proto.StatusActionNotTaken)
		return false
	}

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer("upload", desc.FileSize, time.Since(start))
	}
	s.server.logger.Info("upload_complete",
		"session_id", s.sessionID,
		"user", s.user.Username,
		"file", name,
		"bytes", desc.FileSize,
	)
	s.replyStatus(true, proto.StatusFileActionOK)
	return true
}
