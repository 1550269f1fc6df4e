// Package pricing enforces that the relay only talks to zero-priced models.
package pricing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
)

const DefaultTTL = 300 * time.Second

type ModelNotFoundError struct {
	ModelID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q was not found in the OpenRouter catalogue", e.ModelID)
}

type ModelNotFreeError struct {
	ModelID string
	Pricing core.ModelPricing
}

func (e *ModelNotFreeError) Error() string {
	var parts []string
	for _, p := range []struct {
		name  string
		price core.Price
	}{{"prompt", e.Pricing.Prompt}, {"completion", e.Pricing.Completion}, {"request", e.Pricing.Request}} {
		if p.price != "" {
			parts = append(parts, p.name+"="+string(p.price))
		}
	}
	return fmt.Sprintf("model %q is not free, pricing: %s", e.ModelID, strings.Join(parts, ", "))
}

// Policy caches the catalogue for ttl and answers pricing questions from it.
type Policy struct {
	catalog core.ModelCatalog
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	cache   []core.Model
	expires time.Time
}

func NewPolicy(catalog core.ModelCatalog, ttl time.Duration) *Policy {
	if ttl < 0 {
		ttl = 0
	}
	return &Policy{catalog: catalog, ttl: ttl, now: time.Now}
}

// Models returns the cached catalogue, refreshing it when stale or forced.
func (p *Policy) Models(ctx context.Context, force bool) ([]core.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !force && p.cache != nil && p.now().Before(p.expires) {
		return p.cache, nil
	}
	models, err := p.catalog.Models(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	p.cache = models
	p.expires = p.now().Add(p.ttl)
	return models, nil
}

// FreeModels lists zero-priced models, longest context first, then by id.
func (p *Policy) FreeModels(ctx context.Context, force bool) ([]core.Model, error) {
	models, err := p.Models(ctx, force)
	if err != nil {
		return nil, err
	}
	var free []core.Model
	for _, m := range models {
		if m.IsFree() {
			free = append(free, m)
		}
	}
	slices.SortFunc(free, func(a, b core.Model) int {
		if a.ContextLength != b.ContextLength {
			return b.ContextLength - a.ContextLength
		}
		return strings.Compare(a.ID, b.ID)
	})
	return free, nil
}

// Lookup matches by id or canonical slug.
func (p *Policy) Lookup(ctx context.Context, modelID string) (*core.Model, error) {
	models, err := p.Models(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if m.ID == modelID || m.CanonicalSlug == modelID {
			return &m, nil
		}
	}
	return nil, &ModelNotFoundError{ModelID: modelID}
}

func (p *Policy) EnsureFree(ctx context.Context, modelID string) (*core.Model, error) {
	m, err := p.Lookup(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !m.IsFree() {
		return nil, &ModelNotFreeError{ModelID: m.ID, Pricing: m.Pricing}
	}
	return m, nil
}
