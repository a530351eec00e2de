package server

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// sandboxRoot returns a canonical temp directory with a subdirectory and
// a file inside it.
func sandboxRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestResolvePath(t *testing.T) {
	t.Parallel()
	root := sandboxRoot(t)

	cases := []struct {
		name       string
		raw        string
		currentDir string
		want       string
	}{
		{"tilde is the access root", "~", filepath.Join(root, "docs"), root},
		{"tilde prefix", "~/docs", root, filepath.Join(root, "docs")},
		{"bare filename from cwd", "a.txt", filepath.Join(root, "docs"), filepath.Join(root, "docs", "a.txt")},
		{"relative path from cwd", "docs/a.txt", root, filepath.Join(root, "docs", "a.txt")},
		{"absolute path", filepath.Join(root, "docs"), root, filepath.Join(root, "docs")},
		{"dot", ".", filepath.Join(root, "docs"), filepath.Join(root, "docs")},
		{"dotdot within root", "..", filepath.Join(root, "docs"), root},
		{"quoted argument", `"docs"`, root, filepath.Join(root, "docs")},
		{"single quoted", "'docs'", root, filepath.Join(root, "docs")},
		{"not yet existing target", "docs/newdir", root, filepath.Join(root, "docs", "newdir")},
		{"nested missing target", "docs/x/y", root, filepath.Join(root, "docs", "x", "y")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolvePath(tc.raw, tc.currentDir, root)
			if err != nil {
				t.Fatalf("resolvePath(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("resolvePath(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestResolvePathRejectsEscape(t *testing.T) {
	t.Parallel()
	root := sandboxRoot(t)

	cases := []struct {
		name string
		raw  string
		cwd  string
	}{
		{"dotdot past root", "..", root},
		{"deep dotdot", "../../../../etc/passwd", filepath.Join(root, "docs")},
		{"absolute outside", "/etc/passwd", root},
		{"tilde then dotdot", "~/..", root},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolvePath(tc.raw, tc.cwd, root)
			if !errors.Is(err, errOutsideRoot) {
				t.Errorf("resolvePath(%q) = %v, want errOutsideRoot", tc.raw, err)
			}
		})
	}
}

func TestResolvePathRejectsEmpty(t *testing.T) {
	t.Parallel()
	root := sandboxRoot(t)

	for _, raw := range []string{"", "   ", `""`} {
		if _, err := resolvePath(raw, root, root); !errors.Is(err, errBadPath) {
			t.Errorf("resolvePath(%q) = %v, want errBadPath", raw, err)
		}
	}
}

func TestResolvePathSymlinkEscape(t *testing.T) {
	t.Parallel()
	root := sandboxRoot(t)

	// A symlink inside the root pointing outside must be caught once
	// resolved to its physical target.
	outside := t.TempDir()
	link := filepath.Join(root, "sneaky")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := resolvePath("sneaky", root, root); !errors.Is(err, errOutsideRoot) {
		t.Errorf("symlink escape resolved to %v, want errOutsideRoot", err)
	}
	if _, err := resolvePath("sneaky/file.txt", root, root); !errors.Is(err, errOutsideRoot) {
		t.Errorf("path through escaping symlink = %v, want errOutsideRoot", err)
	}
}

func TestWithinRoot(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path, root string
		want       bool
	}{
		{"/srv/files", "/srv/files", true},
		{"/srv/files/a", "/srv/files", true},
		{"/srv/files/a/b", "/srv/files", true},
		{"/srv/filesX", "/srv/files", false},
		{"/srv", "/srv/files", false},
		{"/etc/passwd", "/srv/files", false},
	}
	for _, tc := range cases {
		if got := withinRoot(tc.path, tc.root); got != tc.want {
			t.Errorf("withinRoot(%q, %q) = %v, want %v", tc.path, tc.root, got, tc.want)
		}
	}
}

func TestPathPredicates(t *testing.T) {
	t.Parallel()
	root := sandboxRoot(t)

	dir := filepath.Join(root, "docs")
	file := filepath.Join(dir, "a.txt")
	missing := filepath.Join(root, "nope")

	if !pathExists(dir) || !pathExists(file) || pathExists(missing) {
		t.Error("pathExists misclassified")
	}
	if !pathIsDir(dir) || pathIsDir(file) || pathIsDir(missing) {
		t.Error("pathIsDir misclassified")
	}
	if pathIsFile(dir) || !pathIsFile(file) || pathIsFile(missing) {
		t.Error("pathIsFile misclassified")
	}
}
