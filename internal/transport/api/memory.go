package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sandevgo/tuskrelay/internal/core"
)

func memoryFilter(r *http.Request) (core.MemoryFilter, error) {
	var f core.MemoryFilter
	if t := r.URL.Query().Get("type"); t != "" {
		mt, err := core.ParseMemoryType(t)
		if err != nil {
			return f, err
		}
		f.Type = mt
	}
	var err error
	if f.Limit, err = queryInt(r, "limit", 100, 1, 500); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0, 0, 1<<31-1); err != nil {
		return f, err
	}
	return f, nil
}

func blocksOrEmpty(b []core.MemoryBlock) []core.MemoryBlock {
	if b == nil {
		return []core.MemoryBlock{}
	}
	return b
}

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	filter, err := memoryFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	blocks, err := s.deps.Memory.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blocksOrEmpty(blocks))
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var b core.MemoryBlock
	if err := decodeBody(w, r, &b); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.deps.Memory.Create(r.Context(), b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpsertMemory(w http.ResponseWriter, r *http.Request) {
	var b core.MemoryBlock
	if err := decodeBody(w, r, &b); err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := s.deps.Memory.Upsert(r.Context(), b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleBulkMemory(w http.ResponseWriter, r *http.Request) {
	var blocks []core.MemoryBlock
	if err := decodeBody(w, r, &blocks); err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := s.deps.Memory.BulkUpsert(r.Context(), blocks)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created":  len(saved),
		"memories": blocksOrEmpty(saved),
	})
}

func (s *Server) handleSearchMemory(w http.ResponseWriter, r *http.Request) {
	filter, err := memoryFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	blocks, err := s.deps.Memory.Search(r.Context(), r.URL.Query().Get("q"), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blocksOrEmpty(blocks))
}

func (s *Server) handleMemoryContext(w http.ResponseWriter, r *http.Request) {
	labels := s.opts.MemoryLabels
	if raw := r.URL.Query().Get("labels"); raw != "" {
		labels = strings.Split(raw, ",")
	}
	mc, err := s.deps.Memory.BuildContext(r.Context(), labels)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Memory.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var patch core.MemoryPatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.deps.Memory.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Memory.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
