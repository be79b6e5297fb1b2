// Package config loads nanodb settings from an optional YAML file. Binaries
// apply their command-line flags on top of the loaded values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/jibon-roy/nano-db/core"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// DataDir is the persistence root. Empty means in memory.
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	// History commits every write to a git repository under DataDir.
	History bool `yaml:"history"`
	// StrictMatch selects the field matcher instead of substring matching.
	StrictMatch bool          `yaml:"strict_match"`
	Identity    core.Identity `yaml:"identity"`
	Admin       Admin         `yaml:"admin"`
	S3          S3            `yaml:"s3"`
	Server      Server        `yaml:"server"`
}

// Admin is the login required by the shell and by AUTH PASSWORD. Login is
// disabled while PasswordHash is empty.
type Admin struct {
	User         string `yaml:"user"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

type S3 struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type Server struct {
	Port int `yaml:"port"`
	// JWTSecret enables AUTH JWT and makes authentication mandatory.
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
	// RateLimit is the number of commands per second allowed on one
	// connection; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	// TLSCert and TLSKey are PEM files; set both to serve TLS.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

func Default() Config {
	return Config{
		DataDir:  ".",
		LogLevel: "info",
		Identity: core.Identity{
			Name:  "nanodb",
			Email: "nanodb@localhost",
		},
		Admin: Admin{User: "admin"},
		Server: Server{
			Port:      7070,
			RateLimit: 100,
			Burst:     20,
		},
	}
}

// Load reads path over Default(). A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.History && c.DataDir == "" {
		return fmt.Errorf("%w: history needs a data_dir", ErrInvalidConfig)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("%w: server.burst must be at least 1", ErrInvalidConfig)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("%w: server.tls_cert and server.tls_key must be set together", ErrInvalidConfig)
	}
	if c.Admin.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Admin.PasswordHash)); err != nil {
			return fmt.Errorf("%w: admin.password_hash is not a bcrypt hash: %w", ErrInvalidConfig, err)
		}
		if c.Admin.User == "" {
			return fmt.Errorf("%w: admin.user is empty", ErrInvalidConfig)
		}
	}
	return nil
}

// LoginRequired reports whether an admin password is configured.
func (c *Config) LoginRequired() bool {
	return c.Admin.PasswordHash != ""
}

// CheckLogin compares user and password with the configured admin.
func (c *Config) CheckLogin(user, password string) bool {
	if !c.LoginRequired() || user != c.Admin.User {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Admin.PasswordHash), []byte(password)) == nil
}

// HashPassword returns a bcrypt hash for admin.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
}
