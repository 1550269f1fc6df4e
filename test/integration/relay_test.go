package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/sandevgo/tuskrelay/internal/service/memory"
	"github.com/sandevgo/tuskrelay/internal/service/relay"
	"github.com/sandevgo/tuskrelay/internal/storage/sqlite"
	"github.com/sandevgo/tuskrelay/internal/upstream"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/test"
)

// TestRelay_RealCLI runs two turns against the real CLI and OpenRouter and checks
// that the second one resumes the first session.
func TestRelay_RealCLI(t *testing.T) {
	cli := test.RequireCLI(t)
	key := test.RequireAPIKey(t)

	ctx, flushLog := log.NewContextWithLogger(context.Background(), log.Options{Debug: true})
	defer flushLog()

	model := os.Getenv("OPENROUTER_MODEL")
	if model == "" {
		model = "google/gemma-3-27b-it:free"
	}
	baseURL := os.Getenv("OPENROUTER_BASE_URL")
	if baseURL == "" {
		baseURL = config.DefaultOpenRouterBaseURL
	}

	dir := t.TempDir()
	db, err := sqlite.NewDB(ctx, filepath.Join(dir, "relay.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	r := relay.New(relay.Deps{
		Upstream: upstream.NewAdapter(upstream.Config{
			CLIPath:         cli,
			BaseURL:         baseURL,
			AuthToken:       key,
			Model:           model,
			PermissionMode:  "dontAsk",
			PartialMessages: true,
		}),
		Conversations: sqlite.NewConversationsRepo(db),
		Prompt:        memory.NewSysPrompt(dir, "Answer in one short sentence."),
	}, relay.Options{
		Model:       model,
		WorkDir:     dir,
		TurnTimeout: 2 * time.Minute,
	})

	var kinds []event.Kind
	sink := relay.SinkFunc(func(ctx context.Context, e event.Event) error {
		kinds = append(kinds, e.Kind)
		return nil
	})

	first := r.Run(ctx, relay.Turn{Message: "Remember the number 42."}, sink)
	if first.Err != nil {
		t.Fatalf("first turn failed: %v", first.Err)
	}
	if first.SessionID == "" {
		t.Fatal("expected a session id from the CLI")
	}
	if kinds[len(kinds)-1] != event.Done {
		t.Fatalf("expected done last, got %v", kinds)
	}

	second := r.Run(ctx, relay.Turn{ConversationID: first.ConversationID, Message: "Which number?"}, sink)
	if second.Err != nil {
		t.Fatalf("second turn failed: %v", second.Err)
	}
	t.Logf("answer: %s", second.Text)

	conv, err := sqlite.NewConversationsRepo(db).Get(ctx, first.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(conv.Messages))
	}
}
