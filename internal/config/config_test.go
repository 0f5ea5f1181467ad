package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
tcp_bind_addr: "0.0.0.0"
tcp_port: 9000
md_multicast_group: "239.0.0.1"
md_port: 9001
md_interface: "eth0"
md_ttl: 1
snapshot_interval_ms: 1000
max_book_depth: 10
heartbeat_timeout_sec: 30
ring_capacity: 4096
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write sample config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.TCPPort != 9000 || cfg.MDPort != 9001 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty config")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatalf("expected an error loading a missing file")
	}
}
