package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorage_Load_MissingDirectory(t *testing.T) {
	t.Parallel()
	fs := NewFileStorage("/nonexistent/path/config.json")

	if _, err := fs.Load(context.Background()); err == nil {
		t.Fatal("expected error when directory does not exist")
	}
}

func TestFileStorage_Load_CreatesDefault(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	fs := NewFileStorage(path)

	cfg, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.MCPServers) != 0 {
		t.Errorf("expected empty config, got %d servers", len(cfg.MCPServers))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not written: %v", err)
	}
}

func TestFileStorage_Load_NullMCPServers(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	if err := os.WriteFile(path, []byte(`{"mcpServers": null}`), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	cfg, err := NewFileStorage(path).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MCPServers == nil {
		t.Fatal("expected MCPServers to be initialized, got nil")
	}
}

func TestFileStorage_Load_InvalidJSON(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"truncated":     `{"mcpServers": {`,
		"servers array": `{"mcpServers": []}`,
		"args string":   `{"mcpServers": {"x": {"command": "a", "args": "b"}}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mcp_config.json")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("setup failed: %v", err)
			}
			if _, err := NewFileStorage(path).Load(context.Background()); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestFileStorage_Save_FilePermissions(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	fs := NewFileStorage(path)

	cfg := &Config{MCPServers: map[string]ServerConfig{"test": {Command: "echo"}}}
	if err := fs.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600, got %o", perm)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestFileStorage_Save_SpecialCharacters(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	fs := NewFileStorage(path)
	ctx := context.Background()

	want := ServerConfig{
		Command: "/opt/my tools/server",
		Args:    []string{"--name=\"quoted\"", "ключ", "tab\there"},
		Env:     map[string]string{"TOKEN": "a&b<c>"},
	}
	if err := fs.Save(ctx, &Config{MCPServers: map[string]ServerConfig{"odd name": want}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := cfg.MCPServers["odd name"]
	if got.Command != want.Command || got.Env["TOKEN"] != want.Env["TOKEN"] {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	for i := range want.Args {
		if got.Args[i] != want.Args[i] {
			t.Errorf("arg %d: got %q, want %q", i, got.Args[i], want.Args[i])
		}
	}
}

func TestFileStorage_Ensure(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	fs := NewFileStorage(path)
	ctx := context.Background()

	other := ServerConfig{Type: TransportHTTP, URL: "https://search.example/mcp"}
	if err := fs.Save(ctx, &Config{MCPServers: map[string]ServerConfig{"search": other}}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	mem := MemoryServer("/usr/local/bin/relay", "/home/u/.tuskrelay")
	changed, err := fs.Ensure(ctx, MemoryServerName, mem)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !changed {
		t.Error("expected first Ensure to change the file")
	}

	changed, err = fs.Ensure(ctx, MemoryServerName, mem)
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if changed {
		t.Error("expected second Ensure to be a no-op")
	}

	cfg, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MCPServers["search"].URL != other.URL {
		t.Error("existing server entry was lost")
	}
	if got := cfg.MCPServers[MemoryServerName]; got.Command != "/usr/local/bin/relay" || got.Args[0] != "mcp" {
		t.Errorf("unexpected memory entry: %+v", got)
	}

	if _, err := fs.Ensure(ctx, "broken", ServerConfig{}); err == nil {
		t.Error("expected error for server without command or url")
	}
}

func TestServerConfig_GetTransport(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     ServerConfig
		want    TransportType
		wantErr bool
	}{
		{name: "command", cfg: ServerConfig{Command: "npx"}, want: TransportStdio},
		{name: "url", cfg: ServerConfig{URL: "http://x"}, want: TransportHTTP},
		{name: "explicit sse", cfg: ServerConfig{Type: TransportSSE, URL: "http://x"}, want: TransportSSE},
		{name: "sse without url", cfg: ServerConfig{Type: TransportSSE, Command: "x"}, wantErr: true},
		{name: "stdio without command", cfg: ServerConfig{Type: TransportStdio}, wantErr: true},
		{name: "unknown", cfg: ServerConfig{Type: "grpc", URL: "x"}, wantErr: true},
		{name: "empty", cfg: ServerConfig{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.GetTransport()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
