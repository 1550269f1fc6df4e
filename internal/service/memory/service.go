// Package memory manages memory blocks and renders them into agent context.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
	PerTypeInContext = 20
)

type Service struct {
	repo      core.MemoryRepository
	tokens    *TokenCounter
	maxTokens int
}

type Option func(*Service)

func WithTokenCounter(c *TokenCounter) Option {
	return func(s *Service) { s.tokens = c }
}

func NewService(repo core.MemoryRepository, maxTokens int, opts ...Option) *Service {
	s := &Service{repo: repo, tokens: NewTokenCounter(), maxTokens: maxTokens}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func (s *Service) Create(ctx context.Context, b core.MemoryBlock) (*core.MemoryBlock, error) {
	return s.repo.Create(ctx, b)
}

func (s *Service) Get(ctx context.Context, id string) (*core.MemoryBlock, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, patch core.MemoryPatch) (*core.MemoryBlock, error) {
	return s.repo.Update(ctx, id, patch)
}

func (s *Service) Upsert(ctx context.Context, b core.MemoryBlock) (*core.MemoryBlock, error) {
	out, err := s.repo.Upsert(ctx, b)
	if err != nil {
		return nil, err
	}
	log.FromCtx(ctx).Debug().Str("type", string(b.Type)).Str("key", b.Key).Msg("memory upserted")
	return out, nil
}

// BulkUpsert validates every block, then writes them in one transaction.
func (s *Service) BulkUpsert(ctx context.Context, blocks []core.MemoryBlock) ([]core.MemoryBlock, error) {
	for i, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	out, err := s.repo.BulkUpsert(ctx, blocks)
	if err != nil {
		return nil, err
	}
	log.FromCtx(ctx).Debug().Int("count", len(out)).Msg("memory bulk upserted")
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, filter core.MemoryFilter) ([]core.MemoryBlock, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}

func (s *Service) Search(ctx context.Context, query string, filter core.MemoryFilter) ([]core.MemoryBlock, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", core.ErrInvalid)
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.Search(ctx, query, filter)
}

// Context is the memory section injected into the agent's system prompt.
type Context struct {
	Text   string   `json:"context"`
	Labels []string `json:"labels"`
	Blocks int      `json:"block_count"`
	Tokens int      `json:"tokens"`
}

// BuildContext renders blocks of the types named by labels, up to PerTypeInContext
// per type, stopping once the token budget is spent. Labels that are not memory
// types are ignored. An empty label set selects every type.
func (s *Service) BuildContext(ctx context.Context, labels []string) (*Context, error) {
	types := selectTypes(labels)
	out := &Context{Labels: labels}

	var sb strings.Builder
	for _, t := range types {
		blocks, err := s.repo.List(ctx, core.MemoryFilter{Type: t, Limit: PerTypeInContext})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s memory: %w", t, err)
		}
		if len(blocks) == 0 {
			continue
		}

		section := "### " + title(string(t)) + "\n"
		if !s.fits(sb.String(), section) {
			break
		}
		sb.WriteString(section)
		for _, b := range blocks {
			line := fmt.Sprintf("- **%s**: %s\n", b.Key, b.Value)
			if !s.fits(sb.String(), line) {
				break
			}
			sb.WriteString(line)
			out.Blocks++
		}
		sb.WriteString("\n")
	}

	out.Text = strings.TrimRight(sb.String(), "\n")
	out.Tokens = s.tokens.Count(out.Text)
	return out, nil
}

func (s *Service) fits(current, next string) bool {
	if s.maxTokens <= 0 {
		return true
	}
	return s.tokens.Count(current+next) <= s.maxTokens
}

func selectTypes(labels []string) []core.MemoryType {
	if len(labels) == 0 {
		return core.MemoryTypes
	}
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[strings.ToLower(strings.TrimSpace(l))] = true
	}
	var out []core.MemoryType
	for _, t := range core.MemoryTypes {
		if want[string(t)] {
			out = append(out, t)
		}
	}
	return out
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
