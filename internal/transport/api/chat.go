package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/relay"
)

type chatRequest struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversation_id,omitempty"`
	SessionID      string   `json:"session_id,omitempty"`
	IncludeMemory  *bool    `json:"include_memory,omitempty"`
	ResetSession   bool     `json:"reset_session,omitempty"`
	MemoryLabels   []string `json:"memory_labels,omitempty"`
}

func (c chatRequest) turn() relay.Turn {
	include := true
	if c.IncludeMemory != nil {
		include = *c.IncludeMemory
	}
	return relay.Turn{
		ConversationID: c.ConversationID,
		Message:        c.Message,
		ResumeToken:    c.SessionID,
		ResetSession:   c.ResetSession,
		IncludeMemory:  include,
		MemoryLabels:   c.MemoryLabels,
	}
}

func (c chatRequest) validate() error {
	if strings.TrimSpace(c.Message) == "" {
		return fmt.Errorf("%w: message is required", core.ErrInvalid)
	}
	return nil
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	// Client disconnect cancels r.Context(), which stops the upstream process.
	out := s.deps.Relay.Run(r.Context(), req.turn(), newSSESink(w))
	if out.Err != nil {
		s.logger.Debug().Err(out.Err).Str("conversation_id", out.ConversationID).Msg("chat turn ended with error")
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50, 1, 500)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	list, err := s.deps.Conversations.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []core.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.deps.Conversations.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Conversations.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleExportConversation(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	exp, ok := exporters[format]
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: unsupported export format %q", core.ErrInvalid, format))
		return
	}

	conv, err := s.deps.Conversations.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	body, err := exp.export(conv)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exp.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="conversation-%s.%s"`, conv.ID, exp.ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
