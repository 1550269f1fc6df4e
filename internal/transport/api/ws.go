package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/sandevgo/tuskrelay/internal/service/relay"
	"github.com/sandevgo/tuskrelay/internal/service/workspace"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const wsWriteTimeout = 10 * time.Second

type wsRequest struct {
	Action string `json:"action"`
	Path   string `json:"path,omitempty"`
	chatRequest
}

// wsClient is a relay.Sink writing one JSON text message per event.
type wsClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Send(_ context.Context, e event.Event) error {
	b, err := e.Wire()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *wsClient) sendError(ctx context.Context, kind, msg string) error {
	return c.Send(ctx, event.New(event.Error, event.Data{"error": msg, "type": kind}))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.FromCtx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &wsClient{id: uuid.NewString(), conn: conn}
	logger := log.FromCtx(r.Context()).With().Str("client_id", client.id).Logger()
	ctx, cancel := context.WithCancel(logger.WithContext(r.Context()))
	defer cancel()

	if err := client.Send(ctx, event.New(event.Connected, event.Data{"client_id": client.id})); err != nil {
		return
	}
	logger.Info().Msg("websocket client connected")
	defer logger.Info().Msg("websocket client disconnected")

	conv := &wsConversation{frames: readFrames(ctx, conn)}
	for {
		raw, ok := conv.next()
		if !ok {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			if client.sendError(ctx, "invalid_request", fmt.Sprintf("malformed message: %v", err)) != nil {
				return
			}
			continue
		}

		if req.Action == "chat" {
			err = s.chatTurn(ctx, client, &req, conv)
		} else {
			err = s.dispatch(ctx, client, &req)
		}
		if err != nil {
			if errors.Is(err, relay.ErrClientGone) {
				return
			}
			if client.sendError(ctx, "request_failed", err.Error()) != nil {
				return
			}
		}
	}
}

// readFrames pumps incoming messages into a channel that closes once the
// connection fails or ctx is done.
func readFrames(ctx context.Context, conn *websocket.Conn) <-chan []byte {
	frames := make(chan []byte)
	go func() {
		defer close(frames)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.FromCtx(ctx).Debug().Err(err).Msg("websocket read failed")
				}
				return
			}
			select {
			case frames <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames
}

// wsConversation is the per-connection state: the conversation the next chat
// continues and the frames that arrived while a turn was running.
type wsConversation struct {
	frames  <-chan []byte
	pending [][]byte
	id      string
	gone    bool
}

func (c *wsConversation) next() ([]byte, bool) {
	if len(c.pending) > 0 {
		raw := c.pending[0]
		c.pending = c.pending[1:]
		return raw, true
	}
	if c.gone {
		return nil, false
	}
	raw, ok := <-c.frames
	return raw, ok
}

// chatTurn runs one turn while still reading the socket: pings are answered
// right away, other requests wait for the turn, and a closed connection
// cancels it.
func (s *Server) chatTurn(ctx context.Context, client *wsClient, req *wsRequest, conv *wsConversation) error {
	if req.ConversationID == "" {
		req.ConversationID = conv.id
	}
	if err := req.validate(); err != nil {
		return err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan relay.Outcome, 1)
	go func() {
		done <- s.deps.Relay.Run(turnCtx, req.turn(), client)
	}()

	frames := conv.frames
	for {
		select {
		case out := <-done:
			conv.id = out.ConversationID
			if conv.gone || errors.Is(out.Err, relay.ErrClientGone) {
				return relay.ErrClientGone
			}
			return nil

		case raw, ok := <-frames:
			if !ok {
				log.FromCtx(ctx).Info().Msg("client left during a turn, cancelling it")
				conv.gone = true
				frames = nil
				cancel()
				continue
			}
			var next wsRequest
			if json.Unmarshal(raw, &next) == nil && next.Action == "ping" {
				if client.Send(ctx, event.New(event.Pong, nil)) != nil {
					cancel()
				}
				continue
			}
			conv.pending = append(conv.pending, raw)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, client *wsClient, req *wsRequest) error {
	switch req.Action {
	case "get_memory":
		labels := req.MemoryLabels
		if len(labels) == 0 {
			labels = s.opts.MemoryLabels
		}
		mc, err := s.deps.Memory.BuildContext(ctx, labels)
		if err != nil {
			return err
		}
		return client.Send(ctx, event.New(event.MemoryContext, event.Data{
			"context":     mc.Text,
			"labels":      mc.Labels,
			"block_count": mc.Blocks,
			"tokens":      mc.Tokens,
		}))

	case "list_files":
		path := req.Path
		if path == "" {
			path = "."
		}
		tree, err := s.deps.Workspace.Tree(path, workspace.DefaultTreeDepth, false)
		if err != nil {
			return err
		}
		return client.Send(ctx, event.New(event.FileTree, event.Data{"tree": tree}))

	case "ping":
		return client.Send(ctx, event.New(event.Pong, nil))

	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
}
