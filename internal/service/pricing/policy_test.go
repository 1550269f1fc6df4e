package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	models []core.Model
	err    error
	calls  int
}

func (f *fakeCatalog) Models(ctx context.Context) ([]core.Model, error) {
	f.calls++
	return f.models, f.err
}

func model(id string, ctxLen int, prompt, completion core.Price) core.Model {
	return core.Model{ID: id, ContextLength: ctxLen, Pricing: core.ModelPricing{Prompt: prompt, Completion: completion}}
}

func TestPolicy_EnsureFree(t *testing.T) {
	cat := &fakeCatalog{models: []core.Model{
		model("free/model", 128000, "0", "0"),
		model("paid/model", 128000, "0.000001", "0"),
		{ID: "slugged:free", CanonicalSlug: "slugged", Pricing: core.ModelPricing{Prompt: "0", Completion: "0"}},
	}}
	p := NewPolicy(cat, DefaultTTL)
	ctx := context.Background()

	m, err := p.EnsureFree(ctx, "free/model")
	require.NoError(t, err)
	assert.Equal(t, "free/model", m.ID)

	_, err = p.EnsureFree(ctx, "paid/model")
	var notFree *ModelNotFreeError
	require.True(t, errors.As(err, &notFree))
	assert.Contains(t, notFree.Error(), "prompt=0.000001")

	_, err = p.EnsureFree(ctx, "missing/model")
	var notFound *ModelNotFoundError
	assert.True(t, errors.As(err, &notFound))

	m, err = p.EnsureFree(ctx, "slugged")
	require.NoError(t, err)
	assert.Equal(t, "slugged:free", m.ID)

	assert.Equal(t, 1, cat.calls)
}

func TestPolicy_FreeModelsSorted(t *testing.T) {
	cat := &fakeCatalog{models: []core.Model{
		model("b", 8000, "0", "0"),
		model("a", 8000, "0", "0"),
		model("big", 200000, "0", "0"),
		model("paid", 1000000, "1", "1"),
	}}

	free, err := NewPolicy(cat, DefaultTTL).FreeModels(context.Background(), false)
	require.NoError(t, err)

	var ids []string
	for _, m := range free {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"big", "a", "b"}, ids)
}

func TestPolicy_CacheTTL(t *testing.T) {
	cat := &fakeCatalog{models: []core.Model{model("m", 1, "0", "0")}}
	p := NewPolicy(cat, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = p.Models(ctx, false)
	_, _ = p.Models(ctx, false)
	assert.Equal(t, 1, cat.calls)

	_, _ = p.Models(ctx, true)
	assert.Equal(t, 2, cat.calls)

	now = now.Add(2 * time.Minute)
	_, _ = p.Models(ctx, false)
	assert.Equal(t, 3, cat.calls)
}

func TestPolicy_CatalogError(t *testing.T) {
	p := NewPolicy(&fakeCatalog{err: errors.New("offline")}, DefaultTTL)

	_, err := p.EnsureFree(context.Background(), "m")
	assert.ErrorContains(t, err, "offline")
}
