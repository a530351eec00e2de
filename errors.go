package ftpx

import (
	"fmt"

	"github.com/ehsanmg/ftpx/proto"
)

// ProtocolError is a command rejected by the server, carrying the status
// code from the response envelope.
type ProtocolError struct {
	// Command is the command that failed (e.g. "mkdir").
	Command string

	// Status is the numeric status code from the response.
	Status proto.Status

	// Detail is the optional descriptive payload from the response
	// (populated for local-processing errors).
	Detail string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ftpx: %s failed: %s (code %d): %s",
			e.Command, e.Status.Message(), e.Status, e.Detail)
	}
	return fmt.Sprintf("ftpx: %s failed: %s (code %d)", e.Command, e.Status.Message(), e.Status)
}

// IsNotLoggedIn reports whether the server rejected the command for a
// missing, invalid or expired auth token.
func (e *ProtocolError) IsNotLoggedIn() bool {
	return e.Status == proto.StatusNotLoggedIn
}

// IsPermissionDenied reports whether the command was refused by the
// sandbox or the user's permission flags.
func (e *ProtocolError) IsPermissionDenied() bool {
	return e.Status == proto.StatusPermissionDenied
}

// IsNotFound reports whether the target file was unavailable.
func (e *ProtocolError) IsNotFound() bool {
	return e.Status == proto.StatusFileUnavailable || e.Status == proto.StatusActionNotTaken
}

// IsNotDirectory reports whether a path that had to be a directory was
// not one.
func (e *ProtocolError) IsNotDirectory() bool {
	return e.Status == proto.StatusPathNotDirectory
}

// IsExists reports whether the target already existed.
func (e *ProtocolError) IsExists() bool {
	return e.Status == proto.StatusFileExists
}
