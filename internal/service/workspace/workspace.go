// Package workspace exposes a read-only view of the agent's working directory.
package workspace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

var (
	ErrOutsideWorkspace = errors.New("path is outside workspace")
	ErrNotAFile         = errors.New("not a file")
)

const (
	DefaultTreeDepth = 3
	MaxTreeDepth     = 10
)

// skipped directories are listed in trees but never descended into.
var skipped = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	".git":         true,
	"venv":         true,
	".venv":        true,
}

type File struct {
	Path        string    `json:"path" yaml:"path"`
	Name        string    `json:"name" yaml:"name"`
	IsDirectory bool      `json:"is_directory" yaml:"is_directory"`
	Size        *int64    `json:"size,omitempty" yaml:"size,omitempty"`
	ModifiedAt  time.Time `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
	Children    []File    `json:"children,omitempty" yaml:"children,omitempty"`
}

type Stats struct {
	TotalFiles       int    `json:"total_files"`
	TotalDirectories int    `json:"total_directories"`
	TotalSizeBytes   int64  `json:"total_size_bytes"`
	WorkspacePath    string `json:"workspace_path"`
}

type Content struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Lines   int    `json:"lines"`
}

type Workspace struct {
	root string
}

// New resolves root to an absolute, symlink-free path, creating it if missing.
func New(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Workspace{root: resolved}, nil
}

func (w *Workspace) Root() string { return w.root }

// Resolve maps a workspace-relative path to an absolute one inside the root.
func (w *Workspace) Resolve(rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideWorkspace)
	}
	p := filepath.Join(w.root, rel)
	if !w.contains(p) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideWorkspace)
	}
	// a symlink inside the tree may still point outside it
	if target, err := filepath.EvalSymlinks(p); err == nil && !w.contains(target) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideWorkspace)
	}
	return p, nil
}

func (w *Workspace) contains(p string) bool {
	r, err := filepath.Rel(w.root, p)
	return err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

func (w *Workspace) rel(p string) string {
	r, err := filepath.Rel(w.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}

func (w *Workspace) stat(rel string) (string, os.FileInfo, error) {
	p, err := w.Resolve(rel)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, fmt.Errorf("path %q: %w", rel, core.ErrNotFound)
	}
	return p, info, err
}

func (w *Workspace) fileOf(p string, info os.FileInfo) File {
	f := File{
		Path:        w.rel(p),
		Name:        info.Name(),
		IsDirectory: info.IsDir(),
		ModifiedAt:  info.ModTime().UTC(),
	}
	if p == w.root {
		f.Name = "workspace"
	}
	if !info.IsDir() {
		size := info.Size()
		f.Size = &size
	}
	return f
}

// Tree walks rel down to maxDepth levels.
func (w *Workspace) Tree(rel string, maxDepth int, includeHidden bool) (*File, error) {
	if maxDepth < 1 || maxDepth > MaxTreeDepth {
		return nil, fmt.Errorf("%w: max_depth must be between 1 and %d", core.ErrInvalid, MaxTreeDepth)
	}
	p, info, err := w.stat(rel)
	if err != nil {
		return nil, err
	}
	f := w.tree(p, info, maxDepth, includeHidden, 0)
	return &f, nil
}

func (w *Workspace) tree(p string, info os.FileInfo, maxDepth int, includeHidden bool, depth int) File {
	f := w.fileOf(p, info)
	if !info.IsDir() || depth >= maxDepth {
		return f
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return f
	}
	f.Children = []File{}
	for _, e := range entries {
		name := e.Name()
		if !includeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		child := filepath.Join(p, name)
		if skipped[name] {
			f.Children = append(f.Children, File{Path: w.rel(child), Name: name, IsDirectory: true, Children: []File{}})
			continue
		}
		ci, err := e.Info()
		if err != nil {
			continue
		}
		f.Children = append(f.Children, w.tree(child, ci, maxDepth, includeHidden, depth+1))
	}
	return f
}

// List returns the entries of rel, directories first. Hidden entries are skipped.
// pattern is a filepath.Match glob applied to the entry name.
func (w *Workspace) List(rel string, recursive bool, pattern string) ([]File, error) {
	p, info, err := w.stat(rel)
	if err != nil {
		return nil, err
	}
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q", core.ErrInvalid, pattern)
		}
	}
	if !info.IsDir() {
		return []File{w.fileOf(p, info)}, nil
	}

	files := []File{}
	match := func(name string) bool {
		if pattern == "" {
			return true
		}
		ok, _ := filepath.Match(pattern, name)
		return ok
	}

	if recursive {
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil || path == p {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if match(d.Name()) {
				if fi, err := d.Info(); err == nil {
					files = append(files, w.fileOf(path, fi))
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") || !match(e.Name()) {
				continue
			}
			if fi, err := e.Info(); err == nil {
				files = append(files, w.fileOf(filepath.Join(p, e.Name()), fi))
			}
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].IsDirectory != files[j].IsDirectory {
			return files[i].IsDirectory
		}
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
	return files, nil
}

func (w *Workspace) Stats() (*Stats, error) {
	st := &Stats{WorkspacePath: w.root}
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == w.root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || skipped[name] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			st.TotalDirectories++
			return nil
		}
		if fi, err := d.Info(); err == nil && fi.Mode().IsRegular() {
			st.TotalFiles++
			st.TotalSizeBytes += fi.Size()
		}
		return nil
	})
	return st, err
}

// Read returns the file content, optionally limited to a 1-indexed inclusive line range.
// Zero means "unbounded" on either side.
func (w *Workspace) Read(rel string, startLine, endLine int) (*Content, error) {
	if startLine < 0 || endLine < 0 {
		return nil, fmt.Errorf("%w: line numbers start at 1", core.ErrInvalid)
	}
	p, info, err := w.stat(rel)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q: %w", rel, ErrNotAFile)
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sb strings.Builder
	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		line, err := r.ReadString('\n')
		if line != "" && n >= max(startLine, 1) && (endLine == 0 || n <= endLine) {
			sb.WriteString(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			break
		}
		if endLine != 0 && n >= endLine {
			break
		}
	}

	content := strings.ToValidUTF8(sb.String(), "�")
	return &Content{Path: rel, Content: content, Lines: countLines(content)}, nil
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
