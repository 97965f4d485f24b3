package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/lens/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Endpoint.URL != DefaultEndpoint {
		t.Errorf("Endpoint.URL = %q, want %q", cfg.Endpoint.URL, DefaultEndpoint)
	}
	if cfg.Connection.SendPolicy != SendPolicyQueue {
		t.Errorf("SendPolicy = %q, want %q", cfg.Connection.SendPolicy, SendPolicyQueue)
	}
	if cfg.UI.Port != DefaultPort {
		t.Errorf("UI.Port = %d, want %d", cfg.UI.Port, DefaultPort)
	}
	if cfg.GalleryCapacity() != DefaultGalleryCapacity {
		t.Errorf("GalleryCapacity = %d, want %d", cfg.GalleryCapacity(), DefaultGalleryCapacity)
	}
	if !cfg.MetricsEnabled() {
		t.Error("metrics should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	if !errors.Is(err, errors.New("L030")) {
		t.Fatalf("Load(missing) = %v, want L030", err)
	}

	configJSON := `{
  "endpoint": {"url": "ws://127.0.0.1:9000/ws"},
  "connection": {"sendPolicy": "reject", "dialTimeout": "2s"},
  "gallery": {"capacity": 0},
  "ui": {"port": 8080},
  "archive": {"kind": "disk"},
  "metrics": {"enabled": false}
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Endpoint.URL != "ws://127.0.0.1:9000/ws" {
		t.Errorf("Endpoint.URL = %q", cfg.Endpoint.URL)
	}
	if cfg.Connection.SendPolicy != SendPolicyReject {
		t.Errorf("SendPolicy = %q", cfg.Connection.SendPolicy)
	}
	if cfg.DialTimeout() != 2*time.Second {
		t.Errorf("DialTimeout = %v", cfg.DialTimeout())
	}
	if cfg.GalleryCapacity() != 0 {
		t.Errorf("explicit capacity 0 should be kept, got %d", cfg.GalleryCapacity())
	}
	if cfg.Archive.Dir != "received" {
		t.Errorf("Archive.Dir default = %q", cfg.Archive.Dir)
	}
	if cfg.MetricsEnabled() {
		t.Error("metrics should be disabled")
	}
	if cfg.Connection.MaxQueue != DefaultMaxQueue {
		t.Errorf("MaxQueue default = %d", cfg.Connection.MaxQueue)
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path = %q", cfg.Path())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(tmpDir)
	if errors.CodeOf(err) != "L031" {
		t.Fatalf("Load(invalid) = %v, want L031", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Endpoint.URL != DefaultEndpoint {
		t.Errorf("Endpoint.URL = %q", cfg.Endpoint.URL)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := New()
	cfg.Endpoint.URL = "wss://lens.example.com/ws"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Endpoint.URL != cfg.Endpoint.URL {
		t.Errorf("Endpoint.URL = %q", loaded.Endpoint.URL)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LENS_ENDPOINT":         "ws://10.0.0.5:81/ws",
		"LENS_SEND_POLICY":      "reject",
		"LENS_UI_PORT":          "4000",
		"LENS_GALLERY_CAPACITY": "7",
		"LENS_REDIS_ADDR":       "redis:6379",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := New()
	cfg.Endpoint.Discover = true
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Endpoint.URL != "ws://10.0.0.5:81/ws" || cfg.Endpoint.Discover {
		t.Errorf("endpoint = %+v, want explicit URL and discovery off", cfg.Endpoint)
	}
	if cfg.Connection.SendPolicy != SendPolicyReject {
		t.Errorf("SendPolicy = %q", cfg.Connection.SendPolicy)
	}
	if cfg.UI.Port != 4000 {
		t.Errorf("UI.Port = %d", cfg.UI.Port)
	}
	if cfg.GalleryCapacity() != 7 {
		t.Errorf("GalleryCapacity = %d", cfg.GalleryCapacity())
	}
	if cfg.Archive.Kind != ArchiveRedis || cfg.Archive.RedisAddr != "redis:6379" {
		t.Errorf("archive = %+v", cfg.Archive)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := New()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "LENS_UI_PORT" {
			return "eighty", true
		}
		return "", false
	})
	if errors.CodeOf(err) != "L032" {
		t.Fatalf("ApplyEnv = %v, want L032", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"http scheme", func(c *Config) { c.Endpoint.URL = "http://host/ws" }, "endpoint.url"},
		{"no host", func(c *Config) { c.Endpoint.URL = "ws:///ws" }, "endpoint.url"},
		{"discover skips url check", func(c *Config) { c.Endpoint.URL = "bogus"; c.Endpoint.Discover = true }, ""},
		{"bad policy", func(c *Config) { c.Connection.SendPolicy = "drop" }, "sendPolicy"},
		{"bad duration", func(c *Config) { c.Connection.DialTimeout = "soon" }, "dialTimeout"},
		{"negative capacity", func(c *Config) { n := -1; c.Gallery.Capacity = &n }, "gallery.capacity"},
		{"bad port", func(c *Config) { c.UI.Port = 70000 }, "Port"},
		{"s3 without bucket", func(c *Config) { c.Archive.Kind = ArchiveS3 }, "bucket"},
		{"redis without addr", func(c *Config) { c.Archive.Kind = ArchiveRedis }, "redisAddr"},
		{"unknown archive", func(c *Config) { c.Archive.Kind = "ftp" }, "archive.kind"},
		{"bad ttl", func(c *Config) { c.Archive.TTL = "forever" }, "archive.ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var le *errors.LensError
			if !errors.As(err, &le) || le.Code != "L032" {
				t.Fatalf("Validate() = %v, want L032", err)
			}
			if !strings.Contains(le.Detail, tt.wantErr) {
				t.Errorf("Detail = %q, want mention of %q", le.Detail, tt.wantErr)
			}
		})
	}
}

func TestUIAddress(t *testing.T) {
	cfg := New()
	cfg.UI.Host = "0.0.0.0"
	cfg.UI.Port = 8081
	if cfg.UIAddress() != "0.0.0.0:8081" {
		t.Errorf("UIAddress = %q", cfg.UIAddress())
	}
	if cfg.UIURL() != "http://0.0.0.0:8081" {
		t.Errorf("UIURL = %q", cfg.UIURL())
	}
}
