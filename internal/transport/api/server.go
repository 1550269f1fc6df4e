// Package api exposes the relay over HTTP: the SSE chat stream, a websocket
// channel and the REST surfaces for conversations, memory and the workspace.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/memory"
	"github.com/sandevgo/tuskrelay/internal/service/pricing"
	"github.com/sandevgo/tuskrelay/internal/service/relay"
	"github.com/sandevgo/tuskrelay/internal/service/workspace"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

type Deps struct {
	Relay         *relay.Relay
	Conversations core.ConversationRepository
	Memory        *memory.Service
	Workspace     *workspace.Workspace
	// Pricing is optional; /models/free answers 503 without it.
	Pricing *pricing.Policy
}

type Options struct {
	ListenAddr   string
	CORSOrigins  []string
	AllowedTools []string
	MemoryLabels []string
}

type Server struct {
	deps     Deps
	opts     Options
	logger   zerolog.Logger
	router   *mux.Router
	srv      *http.Server
	upgrader websocket.Upgrader
}

func NewServer(ctx context.Context, deps Deps, opts Options) *Server {
	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: log.FromCtx(ctx).With().Str("component", "api").Logger(),
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "Content-Disposition"},
	})

	s.router.Use(s.withLogger, accessLog, recoverer)
	s.registerRoutes()

	s.srv = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           c.Handler(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Name() string { return "http server" }

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/tools", s.handleTools).Methods(http.MethodGet)
	r.HandleFunc("/models/free", s.handleFreeModels).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebsocket)

	chat := r.PathPrefix("/chat").Subrouter()
	chat.HandleFunc("/stream", s.handleChatStream).Methods(http.MethodPost)
	chat.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	chat.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	chat.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	chat.HandleFunc("/conversations/{id}/export", s.handleExportConversation).Methods(http.MethodGet)

	mem := r.PathPrefix("/memory").Subrouter()
	mem.HandleFunc("", s.handleListMemory).Methods(http.MethodGet)
	mem.HandleFunc("/", s.handleListMemory).Methods(http.MethodGet)
	mem.HandleFunc("", s.handleCreateMemory).Methods(http.MethodPost)
	mem.HandleFunc("/", s.handleCreateMemory).Methods(http.MethodPost)
	mem.HandleFunc("/upsert", s.handleUpsertMemory).Methods(http.MethodPost)
	mem.HandleFunc("/bulk", s.handleBulkMemory).Methods(http.MethodPost)
	mem.HandleFunc("/search", s.handleSearchMemory).Methods(http.MethodGet)
	mem.HandleFunc("/context", s.handleMemoryContext).Methods(http.MethodGet)
	mem.HandleFunc("/{id}", s.handleGetMemory).Methods(http.MethodGet)
	mem.HandleFunc("/{id}", s.handleUpdateMemory).Methods(http.MethodPut, http.MethodPatch)
	mem.HandleFunc("/{id}", s.handleDeleteMemory).Methods(http.MethodDelete)

	ws := r.PathPrefix("/workspace").Subrouter()
	ws.HandleFunc("/tree", s.handleWorkspaceTree).Methods(http.MethodGet)
	ws.HandleFunc("/files", s.handleWorkspaceFiles).Methods(http.MethodGet)
	ws.HandleFunc("/stats", s.handleWorkspaceStats).Methods(http.MethodGet)
	ws.HandleFunc("/file", s.handleWorkspaceFile).Methods(http.MethodGet)
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server stopped: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return len(s.opts.CORSOrigins) == 0
}
