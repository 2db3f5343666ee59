package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hitoshi/hnsearch/internal/config"
	"github.com/hitoshi/hnsearch/internal/hnapi"
	"github.com/hitoshi/hnsearch/internal/metrics"
)

// restoreDefaultLogger はInitが差し替えたグローバルロガーをテスト後に戻す。
func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	cfg, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil || log == nil {
		t.Fatal("expected non-nil config and logger")
	}
	if cfg.StoreBackend != config.BackendMemory {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, config.BackendMemory)
	}

	// LOG_LEVEL=warnのためInfoは出力されない
	slog.Default().Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info log should be filtered, got %s", buf.String())
	}

	slog.Default().Warn("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithInvalidConfig_ReturnsError(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)
	t.Setenv("COMMIT_MODE", "onblur")

	var buf bytes.Buffer
	cfg, _, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for invalid COMMIT_MODE, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestOpenStorage_Memory(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendMemory}

	store, err := openStorage(cfg, discardLogger())
	if err != nil {
		t.Fatalf("openStorage() error = %v", err)
	}
	defer store.Close()

	if store.kv == nil {
		t.Error("expected non-nil kv store")
	}
	if store.health != nil {
		t.Error("memory backend should not have a health checker")
	}
}

func TestOpenStorage_Bolt(t *testing.T) {
	cfg := &config.Config{
		StoreBackend: config.BackendBolt,
		BoltPath:     filepath.Join(t.TempDir(), "hnsearch.db"),
	}

	store, err := openStorage(cfg, discardLogger())
	if err != nil {
		t.Fatalf("openStorage() error = %v", err)
	}
	defer store.Close()

	if store.kv == nil {
		t.Fatal("expected bolt kv store")
	}
}

func TestOpenStorage_BoltUnavailable_DegradesToMemory(t *testing.T) {
	cfg := &config.Config{
		StoreBackend: config.BackendBolt,
		BoltPath:     filepath.Join(t.TempDir(), "missing", "dir", "hnsearch.db"),
	}

	store, err := openStorage(cfg, discardLogger())
	if err != nil {
		t.Fatalf("openStorage() error = %v", err)
	}
	if store.kv != nil {
		t.Error("expected nil kv store when bolt cannot be opened")
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestBuildFetcher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
		check   func(t *testing.T, f interface{})
	}{
		{
			name: "static",
			cfg:  config.Config{SourceFormat: config.SourceStatic},
			check: func(t *testing.T, f interface{}) {
				if _, ok := f.(*hnapi.StaticSource); !ok {
					t.Errorf("fetcher = %T, want *hnapi.StaticSource", f)
				}
			},
		},
		{
			name: "algolia",
			cfg:  config.Config{SourceFormat: config.SourceAlgolia, HNAPIEndpoint: config.DefaultEndpoint},
			check: func(t *testing.T, f interface{}) {
				if _, ok := f.(*hnapi.Client); !ok {
					t.Errorf("fetcher = %T, want *hnapi.Client", f)
				}
			},
		},
		{
			name: "rss",
			cfg:  config.Config{SourceFormat: config.SourceRSS, HNAPIEndpoint: "https://hnrss.org/newest?q="},
			check: func(t *testing.T, f interface{}) {
				if _, ok := f.(*hnapi.Client); !ok {
					t.Errorf("fetcher = %T, want *hnapi.Client", f)
				}
			},
		},
		{
			name:    "loopback endpoint rejected",
			cfg:     config.Config{SourceFormat: config.SourceAlgolia, HNAPIEndpoint: "http://127.0.0.1/search?query="},
			wantErr: true,
		},
		{
			name:    "localhost endpoint rejected",
			cfg:     config.Config{SourceFormat: config.SourceAlgolia, HNAPIEndpoint: "http://localhost/search?query="},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := buildFetcher(&tt.cfg, discardLogger(), metrics.Nop{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildFetcher() error = %v", err)
			}
			tt.check(t, f)
		})
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	got := maskDatabaseURL("postgres://user:secret@db:5432/hnsearch")
	if got != "postgres://u***@..." {
		t.Errorf("maskDatabaseURL() = %q", got)
	}
	if got := maskDatabaseURL("short"); got != "***" {
		t.Errorf("maskDatabaseURL(short) = %q, want ***", got)
	}
}
