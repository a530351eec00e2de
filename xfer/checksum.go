// Package xfer implements the out-of-band data channel: an ephemeral TCP
// socket carrying raw file bytes between a Sender and a Receiver, with a
// sentinel end marker and SHA-256 integrity verification.
//
// The roles are symmetric. For a download the server is the Sender and
// the client the Receiver; for an upload the client is the Sender. The
// sender binds an unused port, announces it over the control channel
// inside a proto.TransferDescriptor, and blocks accepting exactly one
// inbound connection.
package xfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/ehsanmg/ftpx/proto"
)

// FileChecksum returns the hex-encoded SHA-256 digest of the file's
// contents. Both sides of a transfer use this fixed algorithm.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Describe computes the transfer descriptor for a file about to be sent.
// bufferSize <= 0 selects proto.DefaultBufferSize. The path must name a
// regular file.
func Describe(path string, bufferSize int) (proto.TransferDescriptor, error) {
	if bufferSize <= 0 {
		bufferSize = proto.DefaultBufferSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return proto.TransferDescriptor{}, err
	}
	if !info.Mode().IsRegular() {
		return proto.TransferDescriptor{}, fmt.Errorf("%s is not a regular file", path)
	}

	sum, err := FileChecksum(path)
	if err != nil {
		return proto.TransferDescriptor{}, err
	}

	return proto.TransferDescriptor{
		FilePath:   path,
		FileSize:   info.Size(),
		BufferSize: bufferSize,
		Checksum:   sum,
	}, nil
}
