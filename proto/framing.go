package proto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single framed control-channel message. Envelopes
// carry metadata only (file bytes travel on the data channel), so 1 MiB is
// generous.
const MaxMessageSize = 1 << 20

// The control channel is a byte stream; writes may coalesce or fragment.
// Every message is therefore preceded by a 4-byte big-endian length so
// the receiver can reassemble exactly one envelope per ReadMessage call.

// WriteMessage frames and writes one message to w.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit %d", len(payload), MaxMessageSize)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads exactly one framed message from r. It returns io.EOF
// only when the stream ends cleanly between messages; a stream that ends
// mid-message yields io.ErrUnexpectedEOF.
func ReadMessage(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit %d", n, MaxMessageSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteRequest encodes and frames a request envelope onto w.
func WriteRequest(w io.Writer, req *Request) error {
	b, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return WriteMessage(w, b)
}

// ReadRequest reads and decodes one framed request envelope from r.
func ReadRequest(r io.Reader) (*Request, error) {
	b, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	return DecodeRequest(b)
}

// WriteResponse encodes and frames a response envelope onto w.
func WriteResponse(w io.Writer, resp *Response) error {
	b, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return WriteMessage(w, b)
}

// ReadResponse reads and decodes one framed response envelope from r.
func ReadResponse(r io.Reader) (*Response, error) {
	b, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(b)
}
