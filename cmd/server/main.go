package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	nanodb "github.com/jibon-roy/nano-db"
	"github.com/jibon-roy/nano-db/config"
)

// Version is set at build time via -ldflags
var Version = "0.1.0"

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "nanodb-server: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	configPath := flag.String("config", "nanodb.yaml", "YAML config file")
	port := flag.Int("port", 0, "TCP port to listen on (overrides server.port)")
	baseDir := flag.String("baseDir", "", "Base directory for persistence (overrides data_dir)")
	memory := flag.Bool("memory", false, "Keep everything in memory")
	history := flag.Bool("history", false, "Record every write as a git commit")
	strict := flag.Bool("strict", false, "Match whole field values instead of substrings")
	tlsCert := flag.String("tlsCert", "", "TLS certificate file (PEM)")
	tlsKey := flag.String("tlsKey", "", "TLS private key file (PEM)")
	jwtSecret := flag.String("jwtSecret", "", "Shared secret for AUTH JWT")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nanoDB server version %s\n", Version)
		return nil
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Load(*configPath, !set["config"])
	if err != nil {
		return err
	}
	if set["port"] {
		cfg.Server.Port = *port
	}
	if set["baseDir"] {
		cfg.DataDir = *baseDir
	}
	if *memory {
		cfg.DataDir = ""
	}
	if set["history"] {
		cfg.History = *history
	}
	if set["strict"] {
		cfg.StrictMatch = *strict
	}
	if *tlsCert != "" {
		cfg.Server.TLSCert = *tlsCert
	}
	if *tlsKey != "" {
		cfg.Server.TLSKey = *tlsKey
	}
	if *jwtSecret != "" {
		cfg.Server.JWTSecret = *jwtSecret
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(level))

	instance, err := nanodb.OpenConfig(cfg)
	if err != nil {
		return err
	}
	if cfg.DataDir == "" {
		slog.Info("Using memory persistence")
	} else {
		slog.Info("Using file persistence", "dataDir", cfg.DataDir, "history", cfg.History)
	}

	server := newServerFromConfig(instance, &cfg)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if cfg.Server.TLSCert != "" {
		err = server.StartTLS(addr, cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		err = server.Start(addr)
	}
	if err != nil {
		return err
	}
	slog.Info("nanoDB server ready", "version", Version, "auth", server.auth.Required())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down")
	if err := server.Stop(); err != nil {
		slog.Warn("Listener close failed", "err", err)
	}
	slog.Info("Server stopped")
	return nil
}

// newServerFromConfig wires authentication and rate limiting from cfg.
func newServerFromConfig(instance *nanodb.Instance, cfg *config.Config) *Server {
	auth := &AuthConfig{
		JWTSecret: cfg.Server.JWTSecret,
		Issuer:    cfg.Server.Issuer,
		Audience:  cfg.Server.Audience,
	}
	if cfg.LoginRequired() {
		auth.CheckPassword = cfg.CheckLogin
	}

	server := NewServerWithAuth(instance, cfg.Identity, auth)
	return server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst)
}
