package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlocksRepo_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBlocksRepo(newTestDB(t))
	block := core.MemoryBlock{Type: core.MemoryPreferences, Key: "editor", Value: "vim"}

	first, err := repo.Upsert(ctx, block)
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, block)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	all, err := repo.List(ctx, core.MemoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "vim", all[0].Value)

	block.Value = "helix"
	block.Metadata = map[string]any{"source": "chat"}
	third, err := repo.Upsert(ctx, block)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "helix", third.Value)
	assert.Equal(t, "chat", third.Metadata["source"])
}

func TestMemoryBlocksRepo_CreateConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBlocksRepo(newTestDB(t))
	block := core.MemoryBlock{Type: core.MemoryKnowledge, Key: "city", Value: "Lisbon"}

	_, err := repo.Create(ctx, block)
	require.NoError(t, err)
	_, err = repo.Create(ctx, block)
	assert.True(t, errors.Is(err, core.ErrConflict))

	// same key under another type is a different block
	block.Type = core.MemoryPersona
	_, err = repo.Create(ctx, block)
	assert.NoError(t, err)
}

func TestMemoryBlocksRepo_Validation(t *testing.T) {
	repo := NewMemoryBlocksRepo(newTestDB(t))

	_, err := repo.Create(context.Background(), core.MemoryBlock{Type: "mood", Key: "x"})
	assert.True(t, errors.Is(err, core.ErrInvalid))
	_, err = repo.Upsert(context.Background(), core.MemoryBlock{Type: core.MemoryPersona})
	assert.True(t, errors.Is(err, core.ErrInvalid))
}

func TestMemoryBlocksRepo_UpdateGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBlocksRepo(newTestDB(t))

	created, err := repo.Create(ctx, core.MemoryBlock{Type: core.MemoryKnowledge, Key: "pet", Value: "cat"})
	require.NoError(t, err)

	v := "dog"
	updated, err := repo.Update(ctx, created.ID, core.MemoryPatch{Value: &v})
	require.NoError(t, err)
	assert.Equal(t, "dog", updated.Value)
	assert.Nil(t, updated.Metadata)

	_, err = repo.Update(ctx, "missing", core.MemoryPatch{Value: &v})
	assert.True(t, errors.Is(err, core.ErrNotFound))

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestMemoryBlocksRepo_ListAndSearch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBlocksRepo(newTestDB(t))

	seed := []core.MemoryBlock{
		{Type: core.MemoryKnowledge, Key: "language", Value: "Go"},
		{Type: core.MemoryKnowledge, Key: "discount", Value: "100% off"},
		{Type: core.MemoryPreferences, Key: "tone", Value: "Terse answers"},
	}
	for _, b := range seed {
		_, err := repo.Upsert(ctx, b)
		require.NoError(t, err)
	}

	knowledge, err := repo.List(ctx, core.MemoryFilter{Type: core.MemoryKnowledge})
	require.NoError(t, err)
	assert.Len(t, knowledge, 2)

	limited, err := repo.List(ctx, core.MemoryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	tests := []struct {
		query string
		want  int
	}{
		{"terse", 1},
		{"LANG", 1},
		{"%", 1},
		{"_", 0},
		{"zzz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := repo.Search(ctx, tt.query, core.MemoryFilter{Limit: 10})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	prefs, err := repo.Search(ctx, "e", core.MemoryFilter{Type: core.MemoryPreferences})
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "tone", prefs[0].Key)
}

func TestMemoryBlocksRepo_BulkUpsertIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewMemoryBlocksRepo(db)

	_, err := db.ExecContext(ctx, `
		CREATE TRIGGER reject_broken BEFORE INSERT ON memory_blocks
		WHEN NEW.key = 'broken'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	_, err = repo.BulkUpsert(ctx, []core.MemoryBlock{
		{Type: core.MemoryPersona, Key: "name", Value: "Ada"},
		{Type: core.MemoryPersona, Key: "broken", Value: "x"},
	})
	require.Error(t, err)

	all, err := repo.List(ctx, core.MemoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "earlier blocks of a failed batch are rolled back")

	saved, err := repo.BulkUpsert(ctx, []core.MemoryBlock{
		{Type: core.MemoryPersona, Key: "name", Value: "Ada"},
		{Type: core.MemoryKnowledge, Key: "lang", Value: "Go"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotEmpty(t, saved[0].ID)
	assert.Equal(t, "Go", saved[1].Value)
}
