package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_MissingFileUsesDefaults tests that a missing config file is not
// an error.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Remote.Kind != RemoteHTTP {
		t.Errorf("Remote.Kind = %q, want %q", cfg.Remote.Kind, RemoteHTTP)
	}
	if cfg.Sync.Interval != 60*time.Second {
		t.Errorf("Sync.Interval = %v, want 60s", cfg.Sync.Interval)
	}
	if cfg.Sync.FetchLimit != 500 {
		t.Errorf("Sync.FetchLimit = %d, want 500", cfg.Sync.FetchLimit)
	}
	if cfg.DBPath == "" {
		t.Error("DBPath not defaulted")
	}
}

// TestLoad_FileValues tests reading settings from a YAML file.
func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `owner: student-1
db_path: /tmp/study.db
remote:
  kind: turso
  database_url: libsql://study.turso.io
  auth_token: secret
sync:
  interval: 2m
  fetch_limit: 50
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Owner != "student-1" {
		t.Errorf("Owner = %q, want 'student-1'", cfg.Owner)
	}
	if cfg.Remote.Kind != RemoteTurso {
		t.Errorf("Remote.Kind = %q, want %q", cfg.Remote.Kind, RemoteTurso)
	}
	if cfg.Remote.DatabaseURL != "libsql://study.turso.io" {
		t.Errorf("DatabaseURL = %q", cfg.Remote.DatabaseURL)
	}
	if cfg.Sync.Interval != 2*time.Minute {
		t.Errorf("Sync.Interval = %v, want 2m", cfg.Sync.Interval)
	}
	if cfg.Sync.FetchLimit != 50 {
		t.Errorf("Sync.FetchLimit = %d, want 50", cfg.Sync.FetchLimit)
	}
}

// TestLoad_EnvOverridesFile tests environment precedence.
func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("owner: from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	t.Setenv("STUDYSYNC_OWNER", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Owner != "from-env" {
		t.Errorf("Owner = %q, want 'from-env'", cfg.Owner)
	}
}

// TestLoad_RejectsUnknownRemoteKind tests validation.
func TestLoad_RejectsUnknownRemoteKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("remote:\n  kind: carrier-pigeon\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("unknown remote kind accepted")
	}
}

// TestWriteDefault_RoundTrip tests that the starter file loads back clean.
func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of starter file failed: %v", err)
	}
	if cfg.Sync.Interval != 60*time.Second {
		t.Errorf("Sync.Interval = %v, want 60s", cfg.Sync.Interval)
	}

	// Refuses to overwrite.
	if err := WriteDefault(path); err == nil {
		t.Error("second WriteDefault() overwrote existing file")
	}
}

// TestProbeTarget tests the probe URL derivation.
func TestProbeTarget(t *testing.T) {
	cfg := &Config{
		Remote: RemoteConfig{Kind: RemoteHTTP, BaseURL: "https://sync.example.com/"},
	}
	if got := cfg.ProbeTarget(); got != "https://sync.example.com/api/v1/health" {
		t.Errorf("ProbeTarget() = %q", got)
	}

	cfg.Sync.ProbeURL = "https://probe.example.com/ping"
	if got := cfg.ProbeTarget(); got != "https://probe.example.com/ping" {
		t.Errorf("explicit probe URL ignored: %q", got)
	}

	turso := &Config{Remote: RemoteConfig{Kind: RemoteTurso}}
	if got := turso.ProbeTarget(); got != "" {
		t.Errorf("ProbeTarget() for turso = %q, want empty", got)
	}
}
