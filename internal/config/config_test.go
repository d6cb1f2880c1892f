package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.ServerAddr != ":8090" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.Widget.DeliveredAfter != 500*time.Millisecond || cfg.Widget.SeenAfter != time.Second {
		t.Errorf("status timings = %v/%v", cfg.Widget.DeliveredAfter, cfg.Widget.SeenAfter)
	}
	if cfg.Widget.SimulatedLatencyMin != time.Second || cfg.Widget.SimulatedLatencyMax != 2*time.Second {
		t.Errorf("latency = %v..%v", cfg.Widget.SimulatedLatencyMin, cfg.Widget.SimulatedLatencyMax)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	path := filepath.Join(t.TempDir(), "widget.yaml")
	yaml := "server_addr: \":9000\"\napi_base_url: \"https://api.example.com/\"\nstore_backend: redis\nseen_after_ms: 1500\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_ADDR", ":9100")

	cfg := Load()
	if cfg.ServerAddr != ":9100" {
		t.Errorf("env must win over yaml, got %q", cfg.ServerAddr)
	}
	if cfg.Widget.APIBaseURL != "https://api.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.Widget.APIBaseURL)
	}
	if cfg.StoreBackend != StoreRedis {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.Widget.SeenAfter != 1500*time.Millisecond {
		t.Errorf("SeenAfter = %v", cfg.Widget.SeenAfter)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("STORE_BACKEND", "cassandra")
	t.Setenv("SEEN_AFTER_MS", "100")

	cfg := Load()
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.Widget.SeenAfter != cfg.Widget.DeliveredAfter {
		t.Errorf("seen must not precede delivered: %v < %v", cfg.Widget.SeenAfter, cfg.Widget.DeliveredAfter)
	}
}
