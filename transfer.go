package ftpx

import (
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"

	"github.com/ehsanmg/ftpx/proto"
	"github.com/ehsanmg/ftpx/xfer"
)

// Upload sends a local file to the server, storing it under its base
// name in remoteDir (or in the session's working directory when
// remoteDir is empty).
//
// The client plays the data-channel sender: it binds an ephemeral port,
// announces it in the request's transfer descriptor, streams the file
// once the server has acknowledged, and finally reads the server's
// verdict, which reflects the server-side digest check.
func (c *Client) Upload(localPath, remoteDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	localIP, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		return fmt.Errorf("local address: %w", err)
	}

	sender, err := xfer.NewSender(localIP, localPath, c.bufferSize)
	if err != nil {
		return fmt.Errorf("prepare upload: %w", err)
	}

	args := proto.Args{localPath}
	if remoteDir != "" {
		args = append(args, remoteDir)
	}

	resp, err := c.roundTrip(proto.CmdUpload, args, proto.Payload(sender.Descriptor()))
	if err != nil {
		sender.Close()
		return err
	}
	if err := check(proto.CmdUpload, resp); err != nil {
		sender.Close()
		return err
	}

	if err := sender.Send(xfer.Config{
		Timeout:  c.transferTimeout,
		Progress: c.progress,
	}); err != nil {
		// The server still writes its verdict after a failed transfer;
		// drain it so the next command does not read a stale envelope.
		_, _ = c.readResponse(proto.CmdUpload)
		return fmt.Errorf("upload %s: %w", localPath, err)
	}

	// Second response: the server's verdict after its digest check.
	final, err := c.readResponse(proto.CmdUpload)
	if err != nil {
		return err
	}
	return check(proto.CmdUpload, final)
}

// Download fetches a remote file into localDir, keeping its base name.
// The received bytes are verified against the server's announced
// SHA-256 digest; on any failure the partial local file is removed.
func (c *Client) Download(remotePath, localDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(proto.CmdDownload, proto.Args{remotePath}, nil)
	if err != nil {
		return err
	}
	if err := check(proto.CmdDownload, resp); err != nil {
		return err
	}

	var desc proto.TransferDescriptor
	if err := json.Unmarshal(resp.Data, &desc); err != nil {
		return fmt.Errorf("download response payload: %w", err)
	}
	if desc.TransmitPort == 0 {
		return fmt.Errorf("download response missing transmit port")
	}

	destPath := filepath.Join(localDir, filepath.Base(filepath.ToSlash(desc.FilePath)))
	if err := xfer.Receive(c.host, desc, destPath, xfer.Config{
		Timeout:  c.transferTimeout,
		Progress: c.progress,
	}); err != nil {
		return fmt.Errorf("download %s: %w", remotePath, err)
	}
	return nil
}
