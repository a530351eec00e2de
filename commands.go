package ftpx

import (
	"encoding/json"
	"fmt"

	"github.com/ehsanmg/ftpx/proto"
)

// Cd changes the session's working directory and returns the new
// absolute path as confirmed by the server.
func (c *Client) Cd(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(proto.CmdCd, proto.Args{path}, nil)
	if err != nil {
		return "", err
	}
	if err := check(proto.CmdCd, resp); err != nil {
		return "", err
	}

	var cr proto.CdResponse
	if err := json.Unmarshal(resp.Data, &cr); err != nil {
		return "", fmt.Errorf("cd response payload: %w", err)
	}
	c.currentDir = cr.CurrentDirectory
	return cr.CurrentDirectory, nil
}

// Pwd returns the session's working directory as reported by the server.
func (c *Client) Pwd() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(proto.CmdPwd, nil, nil)
	if err != nil {
		return "", err
	}
	if err := check(proto.CmdPwd, resp); err != nil {
		return "", err
	}

	var pr proto.PwdResponse
	if err := json.Unmarshal(resp.Data, &pr); err != nil {
		return "", fmt.Errorf("pwd response payload: %w", err)
	}
	return pr.DirectoryPath, nil
}

// List returns a column-formatted listing of path (or of the working
// directory when path is empty), laid out for this client's terminal
// width.
func (c *Client) List(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var args proto.Args
	if path != "" {
		args = proto.Args{path}
	}
	data := proto.Payload(proto.ListRequest{TerminalWidth: c.termWidth})

	resp, err := c.roundTrip(proto.CmdList, args, data)
	if err != nil {
		return "", err
	}
	if err := check(proto.CmdList, resp); err != nil {
		return "", err
	}

	var listing string
	if err := json.Unmarshal(resp.Data, &listing); err != nil {
		return "", fmt.Errorf("list response payload: %w", err)
	}
	return listing, nil
}

// Mkdir creates a directory. Multi-segment paths ("a/b/c") create the
// intermediate directories too.
func (c *Client) Mkdir(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(proto.CmdMkdir, proto.Args{path}, nil)
	if err != nil {
		return err
	}
	return check(proto.CmdMkdir, resp)
}

// Rmdir removes a directory. With recursive set, the directory's
// contents are removed as well; otherwise the directory must be empty.
func (c *Client) Rmdir(path string, recursive bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	method := "n"
	if recursive {
		method = "r"
	}
	data := proto.Payload(proto.RmdirRequest{Method: method})

	resp, err := c.roundTrip(proto.CmdRmdir, proto.Args{path}, data)
	if err != nil {
		return err
	}
	return check(proto.CmdRmdir, resp)
}

// Remove deletes a single remote file.
func (c *Client) Remove(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(proto.CmdRm, proto.Args{path}, nil)
	if err != nil {
		return err
	}
	return check(proto.CmdRm, resp)
}

// Rename renames a file or directory within the sandbox.
func (c *Client) Rename(oldPath, newPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(proto.CmdRename, proto.Args{oldPath, newPath}, nil)
	if err != nil {
		return err
	}
	return check(proto.CmdRename, resp)
}
