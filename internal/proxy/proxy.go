// Package proxy forwards agent CLI traffic to OpenRouter while pinning the model.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const maxBodySize = 32 << 20

type Options struct {
	ListenAddr string
	Target     string
	APIKey     string
	Model      string
}

// Proxy rewrites the "model" field of JSON POST bodies and swaps any client
// credential for the real API key.
type Proxy struct {
	opts   Options
	logger zerolog.Logger
	rp     *httputil.ReverseProxy
	srv    *http.Server
}

func New(ctx context.Context, opts Options) (*Proxy, error) {
	target, err := url.Parse(opts.Target)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q", opts.Target)
	}
	if opts.Model == "" {
		return nil, errors.New("proxy model is empty")
	}

	p := &Proxy{
		opts:   opts,
		logger: log.FromCtx(ctx).With().Str("component", "proxy").Logger(),
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			p.setCredentials(pr.Out.Header)
		},
		// streamed completions must reach the CLI as they arrive
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Error().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	p.srv = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return p, nil
}

func (p *Proxy) setCredentials(h http.Header) {
	if h.Get("Authorization") != "" {
		h.Set("Authorization", "Bearer "+p.opts.APIKey)
	}
	if h.Get("X-Api-Key") != "" {
		h.Set("X-Api-Key", p.opts.APIKey)
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.Body != nil {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if rewritten, original, ok := RewriteModel(body, p.opts.Model); ok {
			if original != p.opts.Model {
				p.logger.Debug().Str("from", original).Str("to", p.opts.Model).Msg("model rewritten")
			}
			body = rewritten
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		r.Header.Del("Content-Length")
	}
	p.rp.ServeHTTP(w, r)
}

// RewriteModel replaces the top-level "model" of a JSON object. It reports false,
// leaving body alone, when body is not a JSON object or has no model field.
func RewriteModel(body []byte, model string) ([]byte, string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body, "", false
	}
	raw, ok := fields["model"]
	if !ok {
		return body, "", false
	}
	var original string
	_ = json.Unmarshal(raw, &original)

	encoded, err := json.Marshal(model)
	if err != nil {
		return body, "", false
	}
	fields["model"] = encoded
	out, err := json.Marshal(fields)
	if err != nil {
		return body, "", false
	}
	return out, original, true
}

func (p *Proxy) Name() string { return "model proxy" }

func (p *Proxy) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", p.srv.Addr, err)
	}
	p.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("target", p.opts.Target).
		Str("model", p.opts.Model).
		Msg("model proxy listening")

	if err := p.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("proxy stopped: %w", err)
	}
	return nil
}

func (p *Proxy) Shutdown(ctx context.Context) error {
	return p.srv.Shutdown(ctx)
}
