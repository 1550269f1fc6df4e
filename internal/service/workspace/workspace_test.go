package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	write(t, root, "README.md", "# hi\n")
	write(t, root, "src/main.go", "package main\n")
	write(t, root, "src/deep/a/b/c.txt", "c")
	write(t, root, ".secret", "x")
	write(t, root, "node_modules/pkg/index.js", "module.exports = 1")
	write(t, root, "notes.txt", "one\ntwo\nthree\nfour")

	ws, err := New(root)
	require.NoError(t, err)
	return ws
}

func names(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestWorkspace_Resolve(t *testing.T) {
	ws := newWorkspace(t)

	tests := []struct {
		path    string
		wantErr bool
	}{
		{".", false},
		{"src/main.go", false},
		{"src/../README.md", false},
		{"../etc/passwd", true},
		{"src/../../x", true},
		{"/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := ws.Resolve(tt.path)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrOutsideWorkspace))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkspace_ResolveSymlinkEscape(t *testing.T) {
	ws := newWorkspace(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(ws.Root(), "escape")); err != nil {
		t.Skip("symlinks not supported")
	}

	_, err := ws.Resolve("escape")
	assert.True(t, errors.Is(err, ErrOutsideWorkspace))
}

func TestWorkspace_Tree(t *testing.T) {
	ws := newWorkspace(t)

	tree, err := ws.Tree(".", 2, false)
	require.NoError(t, err)
	assert.Equal(t, "workspace", tree.Name)
	assert.Equal(t, ".", tree.Path)
	assert.Equal(t, []string{"README.md", "node_modules", "notes.txt", "src"}, names(tree.Children))

	for _, c := range tree.Children {
		switch c.Name {
		case "node_modules":
			assert.True(t, c.IsDirectory)
			assert.Empty(t, c.Children)
		case "src":
			require.Len(t, c.Children, 2)
			deep := c.Children[0]
			assert.Equal(t, "deep", deep.Name)
			assert.Nil(t, deep.Children, "depth limit reached")
		case "README.md":
			require.NotNil(t, c.Size)
			assert.Equal(t, int64(5), *c.Size)
		}
	}

	hidden, err := ws.Tree(".", 1, true)
	require.NoError(t, err)
	assert.Contains(t, names(hidden.Children), ".secret")
}

func TestWorkspace_TreeErrors(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.Tree(".", 0, false)
	assert.True(t, errors.Is(err, core.ErrInvalid))
	_, err = ws.Tree(".", 11, false)
	assert.True(t, errors.Is(err, core.ErrInvalid))
	_, err = ws.Tree("missing", 3, false)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestWorkspace_List(t *testing.T) {
	ws := newWorkspace(t)

	top, err := ws.List(".", false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"node_modules", "src", "notes.txt", "README.md"}, names(top))

	goFiles, err := ws.List(".", true, "*.go")
	require.NoError(t, err)
	require.Len(t, goFiles, 1)
	assert.Equal(t, "src/main.go", goFiles[0].Path)

	single, err := ws.List("notes.txt", false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, names(single))

	_, err = ws.List(".", false, "[")
	assert.True(t, errors.Is(err, core.ErrInvalid))
}

func TestWorkspace_Stats(t *testing.T) {
	ws := newWorkspace(t)

	st, err := ws.Stats()
	require.NoError(t, err)
	// README.md, notes.txt, src/main.go, src/deep/a/b/c.txt
	assert.Equal(t, 4, st.TotalFiles)
	// src, src/deep, src/deep/a, src/deep/a/b
	assert.Equal(t, 4, st.TotalDirectories)
	assert.Equal(t, int64(5+13+1+18), st.TotalSizeBytes)
	assert.Equal(t, ws.Root(), st.WorkspacePath)
}

func TestWorkspace_Read(t *testing.T) {
	ws := newWorkspace(t)

	tests := []struct {
		name       string
		start, end int
		want       string
		lines      int
	}{
		{"whole file", 0, 0, "one\ntwo\nthree\nfour", 4},
		{"middle", 2, 3, "two\nthree\n", 2},
		{"from line", 3, 0, "three\nfour", 2},
		{"until line", 0, 1, "one\n", 1},
		{"past end", 9, 0, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ws.Read("notes.txt", tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Content)
			assert.Equal(t, tt.lines, c.Lines)
		})
	}

	_, err := ws.Read("src", 0, 0)
	assert.True(t, errors.Is(err, ErrNotAFile))
	_, err = ws.Read("nope.txt", 0, 0)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = ws.Read("../x", 0, 0)
	assert.True(t, errors.Is(err, ErrOutsideWorkspace))
}
