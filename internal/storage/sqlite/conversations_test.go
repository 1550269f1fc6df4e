package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgs(pairs ...string) []core.ChatMessage {
	out := make([]core.ChatMessage, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, core.ChatMessage{Role: core.Role(pairs[i]), Content: pairs[i+1]})
	}
	return out
}

func ptr(s string) *string { return &s }

func TestConversationsRepo_GetMissing(t *testing.T) {
	repo := NewConversationsRepo(newTestDB(t))

	_, err := repo.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestConversationsRepo_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationsRepo(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, "c1", msgs("user", "hello", "assistant", "hi"), ptr("sess-1")))

	c, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Title)
	assert.Equal(t, "sess-1", c.ResumeToken)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, core.RoleUser, c.Messages[0].Role)
	assert.Equal(t, "hi", c.Messages[1].Content)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestConversationsRepo_NilTokenKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationsRepo(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, "c1", msgs("user", "a", "assistant", "b"), ptr("sess-1")))
	require.NoError(t, repo.Upsert(ctx, "c1", msgs("user", "a", "assistant", "b", "user", "c", "assistant", ""), nil))

	c, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", c.ResumeToken)
	assert.Len(t, c.Messages, 4)
	assert.Equal(t, "", c.Messages[3].Content)

	require.NoError(t, repo.Upsert(ctx, "c1", c.Messages, ptr("sess-2")))
	c, err = repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", c.ResumeToken)
}

func TestConversationsRepo_TitleIsStable(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationsRepo(newTestDB(t))
	long := strings.Repeat("word ", 40)

	require.NoError(t, repo.Upsert(ctx, "c1", msgs("user", long), nil))
	require.NoError(t, repo.Upsert(ctx, "c1", msgs("user", "other"), nil))

	c, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(c.Title, "…"))
	assert.Equal(t, titleMaxRunes+1, len([]rune(c.Title)))
}

func TestConversationsRepo_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationsRepo(newTestDB(t))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, repo.Upsert(ctx, "old", msgs("user", "1"), nil))
	require.NoError(t, repo.Upsert(ctx, "new", msgs("user", "1", "assistant", "2"), nil))

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, 2, list[0].MessageCount)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "old", page[0].ID)

	require.NoError(t, repo.Delete(ctx, "old"))
	assert.True(t, errors.Is(repo.Delete(ctx, "old"), core.ErrNotFound))
}
