package api

import (
	"fmt"
	"net/http"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/workspace"
)

func (s *Server) handleWorkspaceTree(w http.ResponseWriter, r *http.Request) {
	depth, err := queryInt(r, "max_depth", workspace.DefaultTreeDepth, 1, workspace.MaxTreeDepth)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tree, err := s.deps.Workspace.Tree(queryPath(r), depth, queryBool(r, "include_hidden", false))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleWorkspaceFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.deps.Workspace.List(queryPath(r), queryBool(r, "recursive", false), r.URL.Query().Get("pattern"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if files == nil {
		files = []workspace.File{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleWorkspaceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Workspace.Stats()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.fail(w, r, fmt.Errorf("%w: path is required", core.ErrInvalid))
		return
	}
	start, err := queryInt(r, "start_line", 0, 1, 1<<31-1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	end, err := queryInt(r, "end_line", 0, 1, 1<<31-1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	content, err := s.deps.Workspace.Read(path, start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func queryPath(r *http.Request) string {
	if p := r.URL.Query().Get("path"); p != "" {
		return p
	}
	return "."
}
