package archive

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	mirror := filepath.Join(dir, "chat-stream.log")
	s, err := Open(filepath.Join(dir, "transcripts.bolt"), mirror)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mirror
}

func record(conv string, kinds ...event.Kind) event.Record {
	var tr event.Transcript
	for _, k := range kinds {
		tr.Append(event.New(k, nil))
	}
	return tr.Record(conv)
}

func TestStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	s, mirror := newStore(t)

	require.NoError(t, s.Save(ctx, record("c1", event.ThinkingStart, event.Done)))
	require.NoError(t, s.Save(ctx, record("c1", event.ThinkingStart, event.Error)))
	require.NoError(t, s.Save(ctx, record("c2", event.Done)))

	recs, err := s.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, event.Done, recs[0].Events[1].Kind)
	assert.Equal(t, event.Error, recs[1].Events[1].Kind)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c2", latest.ConversationID)

	raw, err := os.ReadFile(mirror)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "c2", onDisk["conversation_id"])
	assert.Contains(t, onDisk, "saved_at")
	assert.Contains(t, onDisk, "events")
}

func TestStore_MissingConversation(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.List(context.Background(), "nope")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = s.Latest(context.Background())
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Save(ctx, record("c1", event.Done)))
	require.NoError(t, s.Delete(ctx, "c1"))
	require.NoError(t, s.Delete(ctx, "c1"))

	_, err := s.List(ctx, "c1")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
