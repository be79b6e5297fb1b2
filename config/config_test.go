package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nanodb.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
	if cfg.LoginRequired() {
		t.Error("Expected login to be disabled by default")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/nanodb
log_level: debug
history: true
strict_match: true
identity:
  name: Ann
  email: ann@example.com
s3:
  region: eu-north-1
server:
  port: 9000
  jwt_secret: secret
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.DataDir != "/var/lib/nanodb" || !cfg.History || !cfg.StrictMatch {
		t.Errorf("Unexpected storage settings: %+v", cfg)
	}
	if cfg.Identity.Name != "Ann" || cfg.S3.Region != "eu-north-1" {
		t.Errorf("Unexpected nested settings: %+v", cfg)
	}
	if cfg.Server.Port != 9000 || cfg.Server.JWTSecret != "secret" {
		t.Errorf("Unexpected server settings: %+v", cfg.Server)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Burst != 20 {
		t.Errorf("Expected default burst 20, got %d", cfg.Server.Burst)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := Load(missing, true); err != nil {
		t.Errorf("Expected optional missing file to be ignored, got %v", err)
	}
	if _, err := Load(missing, false); err == nil {
		t.Error("Expected error for required missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []string{
		"log_level: loud\n",
		"server:\n  port: 70000\n",
		"server:\n  rate_limit: 5\n  burst: 0\n",
		"admin:\n  password_hash: plaintext\n",
		"server:\n  tls_cert: cert.pem\n",
		"data_dir: [not, a, string]\n",
	}

	for _, content := range tests {
		if _, err := Load(writeConfig(t, content), false); err == nil {
			t.Errorf("Expected error for %q", content)
		}
	}

	_, err := Load(writeConfig(t, "log_level: loud\n"), false)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestCheckLogin(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	cfg := Default()
	cfg.Admin.PasswordHash = hash
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected config with hash to be valid, got %v", err)
	}

	if !cfg.CheckLogin("admin", "s3cret") {
		t.Error("Expected correct login to succeed")
	}
	if cfg.CheckLogin("admin", "wrong") {
		t.Error("Expected wrong password to fail")
	}
	if cfg.CheckLogin("root", "s3cret") {
		t.Error("Expected wrong user to fail")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelInfo, true)

	logger.Debug("hidden")
	logger.Info("Opened table", "table", "shop.users", "empty", "")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected debug to be filtered, got %q", out)
	}
	if !strings.Contains(out, "Opened table") || !strings.Contains(out, "table=shop.users") {
		t.Errorf("Expected info line with attribute, got %q", out)
	}
	if strings.Contains(out, "empty=") {
		t.Errorf("Expected empty attribute to be dropped, got %q", out)
	}
}
