package xfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ehsanmg/ftpx/internal/ratelimit"
	"github.com/ehsanmg/ftpx/proto"
)

// ErrChecksumMismatch is returned when every byte arrived but the
// recomputed digest differs from the announced checksum.
var ErrChecksumMismatch = errors.New("xfer: checksum mismatch")

// ErrTruncated is returned when the connection closed before the
// announced file size was received, or the stream did not end with the
// sentinel marker.
var ErrTruncated = errors.New("xfer: stream ended before end marker")

// Receive connects to the sender at host:desc.TransmitPort and writes the
// incoming stream to destPath. The announced file size bounds the payload;
// any bytes past it must be the sentinel end marker. After the channel
// closes the digest of the written file is recomputed and compared to
// desc.Checksum.
//
// On any failure the partial destination file is removed, so a failed
// transfer never leaves a half-written file behind.
func Receive(host string, desc proto.TransferDescriptor, destPath string, cfg Config) (err error) {
	addr := net.JoinHostPort(host, strconv.Itoa(desc.TransmitPort))
	conn, err := net.DialTimeout("tcp", addr, cfg.timeout())
	if err != nil {
		return fmt.Errorf("xfer: connect %s: %w", addr, err)
	}
	defer conn.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("xfer: create: %w", err)
	}

	defer func() {
		f.Close()
		if err != nil {
			os.Remove(destPath)
		}
	}()

	bufSize := desc.BufferSize
	if bufSize <= 0 {
		bufSize = proto.DefaultBufferSize
	}

	r := ratelimit.NewReader(conn, cfg.Limiter)

	buf := make([]byte, bufSize)
	var written int64
	var tail []byte // bytes received past the announced size
	for {
		_ = conn.SetDeadline(time.Now().Add(cfg.timeout()))
		n, rerr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if remaining := desc.FileSize - written; remaining > 0 {
				payload := chunk
				if int64(len(payload)) > remaining {
					payload = chunk[:remaining]
				}
				if _, werr := f.Write(payload); werr != nil {
					return fmt.Errorf("xfer: write: %w", werr)
				}
				written += int64(len(payload))
				if cfg.Progress != nil {
					cfg.Progress(written)
				}
				chunk = chunk[len(payload):]
			}
			tail = append(tail, chunk...)
			if len(tail) > len(eofMarker) {
				return fmt.Errorf("xfer: %d unexpected trailing bytes", len(tail))
			}
			if written == desc.FileSize && bytes.Equal(tail, eofMarker) {
				break
			}
		}
		if rerr == io.EOF {
			return ErrTruncated
		}
		if rerr != nil {
			return fmt.Errorf("xfer: receive: %w", rerr)
		}
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("xfer: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("xfer: close: %w", err)
	}

	sum, err := FileChecksum(destPath)
	if err != nil {
		return fmt.Errorf("xfer: verify: %w", err)
	}
	if sum != desc.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}
