package server

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// errBadPath is returned when a raw path cannot be resolved at all. The
// dispatcher maps it to a syntax error.
var errBadPath = errors.New("unresolvable path")

// errOutsideRoot is returned when a resolved path escapes the session's
// access root. The dispatcher maps it to StatusPermissionDenied, not
// "not found": an attacker probing outside the jail learns nothing
// about what exists there.
var errOutsideRoot = errors.New("path escapes access root")

// resolvePath normalizes a user-supplied path against the session's
// current directory and confines it to the access root.
//
// Rules, in order:
//   - surrounding quotes and whitespace are stripped
//   - "~" (and a "~/" prefix) means the access root, not the process
//     owner's home directory
//   - a bare filename (no separator, not one of the special tokens
//     ".", "..", "-", "/") is taken relative to currentDir
//   - any other relative path is joined to currentDir
//   - the result is cleaned and symlinks are followed to a canonical
//     physical path, resolving through the deepest existing ancestor so
//     that not-yet-created targets (mkdir, upload) still canonicalize
//
// Every resolved path must be a descendant of accessRoot; anything else
// fails with errOutsideRoot regardless of whether it exists.
func resolvePath(raw, currentDir, accessRoot string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `'"`)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errBadPath
	}

	switch {
	case raw == "~":
		raw = accessRoot
	case strings.HasPrefix(raw, "~/"):
		raw = filepath.Join(accessRoot, raw[2:])
	case !filepath.IsAbs(raw):
		raw = filepath.Join(currentDir, raw)
	}

	path, err := canonicalize(filepath.Clean(raw))
	if err != nil {
		return "", errBadPath
	}

	if !withinRoot(path, accessRoot) {
		return "", errOutsideRoot
	}
	return path, nil
}

// canonicalize follows symlinks to a physical path. For paths that do
// not exist yet it canonicalizes the deepest existing ancestor and
// re-appends the missing suffix.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	suffix := ""
	for dir := path; ; {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		suffix = filepath.Join(filepath.Base(dir), suffix)

		resolved, err = filepath.EvalSymlinks(parent)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		dir = parent
	}
}

// withinRoot reports whether path equals root or lies beneath it. Both
// arguments must already be canonical.
func withinRoot(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimRight(root, string(filepath.Separator))+string(filepath.Separator))
}

// pathExists reports whether the path exists at all.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// pathIsDir reports whether the path exists and is a directory.
func pathIsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// pathIsFile reports whether the path exists and is a regular file.
func pathIsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
