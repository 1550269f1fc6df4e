package core

import (
	"bytes"
	"context"
	"strconv"
)

// Price is a USD amount that the catalogue sends either as a JSON string or number.
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = ""
	case len(b) > 0 && b[0] == '"':
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*p = Price(s)
	default:
		*p = Price(b)
	}
	return nil
}

// IsZero treats missing and unparsable-as-nonzero amounts the same way the
// catalogue does: only an explicit zero (or absence) is free.
func (p Price) IsZero() bool {
	if p == "" {
		return true
	}
	f, err := strconv.ParseFloat(string(p), 64)
	return err == nil && f == 0
}

type ModelPricing struct {
	Prompt     Price `json:"prompt"`
	Completion Price `json:"completion"`
	Request    Price `json:"request,omitempty"`
}

func (p ModelPricing) IsFree() bool {
	return p.Prompt.IsZero() && p.Completion.IsZero() && p.Request.IsZero()
}

type Model struct {
	ID            string       `json:"id"`
	CanonicalSlug string       `json:"canonical_slug,omitempty"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	ContextLength int          `json:"context_length"`
	Provider      string       `json:"provider,omitempty"`
	Pricing       ModelPricing `json:"pricing"`
}

func (m Model) IsFree() bool {
	return m.Pricing.IsFree()
}

type ModelCatalog interface {
	Models(ctx context.Context) ([]Model, error)
}
