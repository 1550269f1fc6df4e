package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sandevgo/tuskrelay/internal/core"
)

type modelEntry struct {
	core.Model
	TopProvider struct {
		Name          string `json:"name"`
		ContextLength int    `json:"context_length"`
	} `json:"top_provider"`
}

// Models lists the catalogue visible to this key (honours account provider filters).
func (c *Client) Models(ctx context.Context) ([]core.Model, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/models/user", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data []modelEntry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	if payload.Data == nil {
		return nil, errors.New("openrouter: malformed response, missing data array")
	}

	models := make([]core.Model, 0, len(payload.Data))
	for _, e := range payload.Data {
		m := e.Model
		if m.ID == "" {
			m.ID = m.CanonicalSlug
		}
		if m.ID == "" {
			continue
		}
		if m.ContextLength == 0 {
			m.ContextLength = e.TopProvider.ContextLength
		}
		m.Provider = e.TopProvider.Name
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, errors.New("openrouter: response did not include any models")
	}
	return models, nil
}
