// Package proto defines the wire protocol shared by the ftpx client and
// server: request/response envelopes, the command and status tables,
// message framing for the control channel, and the transfer descriptor
// exchanged before a data-channel transfer.
//
// Envelopes are UTF-8 JSON objects. The codec itself is stream-agnostic;
// framing (length prefixes) is layered separately, see ReadMessage and
// WriteMessage.
package proto

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MalformedEnvelopeError wraps any decode failure of an envelope. Callers
// map it to a syntax-error response rather than closing the connection.
type MalformedEnvelopeError struct {
	Err error
}

func (e *MalformedEnvelopeError) Error() string {
	return fmt.Sprintf("malformed envelope: %v", e.Err)
}

func (e *MalformedEnvelopeError) Unwrap() error { return e.Err }

// Args holds positional command arguments. On the wire it is a JSON
// object keyed by sequential decimal strings starting at "0", preserving
// argument order:
//
//	["old.txt", "new.txt"]  <->  {"0":"old.txt","1":"new.txt"}
type Args []string

// MarshalJSON implements json.Marshaler.
func (a Args) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, arg := range a {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, strconv.Itoa(i))
		buf = append(buf, ':')
		quoted, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		buf = append(buf, quoted...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON implements json.Unmarshaler. Keys must be sequential
// integers starting at 0; gaps or non-numeric keys are rejected.
func (a *Args) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) == 0 {
		*a = nil
		return nil
	}
	out := make([]string, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("non-numeric argument key %q", k)
		}
		if i < 0 || i >= len(out) {
			return fmt.Errorf("argument index %d out of range", i)
		}
		out[i] = v
	}
	*a = out
	return nil
}

// Request is the envelope sent from client to server over the control
// channel. Data carries a command-specific payload (a TransferDescriptor
// for upload, a ListRequest for list, and so on).
type Request struct {
	AuthToken  string          `json:"auth_token"`
	Command    Command         `json:"command"`
	Args       Args            `json:"command_args"`
	CurrentDir string          `json:"current_dir"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Response is the envelope sent from server to client. Accept=false
// always pairs with a failure-family status code, Accept=true with a
// success-family code.
type Response struct {
	Accept bool            `json:"accept"`
	Status Status          `json:"status_code"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// EncodeRequest serializes the request envelope.
func EncodeRequest(r *Request) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest parses a request envelope. The command code must be
// present and known; anything else fails with MalformedEnvelopeError.
func DecodeRequest(b []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, &MalformedEnvelopeError{Err: err}
	}
	if !r.Command.Valid() {
		return nil, &MalformedEnvelopeError{Err: fmt.Errorf("unknown command code %d", r.Command)}
	}
	return &r, nil
}

// EncodeResponse serializes the response envelope.
func EncodeResponse(r *Response) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResponse parses a response envelope.
func DecodeResponse(b []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, &MalformedEnvelopeError{Err: err}
	}
	return &r, nil
}

// Payload marshals a command-specific payload for the Data field.
func Payload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// All payload types are plain structs and strings; a marshal
		// failure here is a programming error.
		panic(err)
	}
	return b
}

// ListRequest is the payload of a list command: the client-reported
// terminal width used to size the column listing.
type ListRequest struct {
	TerminalWidth int `json:"terminal_width"`
}

// RmdirRequest is the payload of an rmdir command. Method is "n" for
// an empty directory, "r" for recursive removal.
type RmdirRequest struct {
	Method string `json:"method"`
}

// LoginResponse is the payload of a successful login response.
type LoginResponse struct {
	AccessPath string `json:"access_path"`
	AuthToken  string `json:"auth_token"`
}

// CdResponse is the payload of a successful cd response.
type CdResponse struct {
	CurrentDirectory string `json:"current_directory"`
}

// PwdResponse is the payload of a pwd response.
type PwdResponse struct {
	DirectoryPath string `json:"directory_path"`
}
