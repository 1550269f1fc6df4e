package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/providers/openrouter"
	"github.com/sandevgo/tuskrelay/internal/service/pricing"
	"github.com/stretchr/testify/assert"
)

const catalogue = `{"data":[
	{"id":"free/model:free","pricing":{"prompt":"0","completion":"0"},"context_length":32000},
	{"id":"paid/model","pricing":{"prompt":"0.000001","completion":"0.000002"},"context_length":32000}
]}`

func TestVerifyModel(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		model       string
		requireFree bool
		wantErr     bool
	}{
		{"catalogue down with free requirement", http.StatusInternalServerError, "free/model:free", true, true},
		{"catalogue down without free requirement", http.StatusInternalServerError, "free/model:free", false, false},
		{"free model", http.StatusOK, "free/model:free", true, false},
		{"paid model", http.StatusOK, "paid/model", true, true},
		{"paid model allowed", http.StatusOK, "paid/model", false, false},
		{"unknown model", http.StatusOK, "missing/model", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != http.StatusOK {
					http.Error(w, `{"error":"upstream unavailable"}`, tt.status)
					return
				}
				_, _ = w.Write([]byte(catalogue))
			}))
			defer ts.Close()

			policy := pricing.NewPolicy(openrouter.NewClient(ts.URL+"/api", "sk-test"), pricing.DefaultTTL)
			cfg := &config.OpenRouterConfig{Model: tt.model, RequireFree: tt.requireFree}

			err := verifyModel(context.Background(), policy, cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
